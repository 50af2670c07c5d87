package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/session"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

// Deps are the collaborators a pipeline orchestrates.
type Deps struct {
	Engine  engine.Engine
	Fetcher Fetcher

	// Font configuration for the sessions built per invocation.
	FontPaths         []string
	IgnoreSystemFonts bool

	// Logger receives per-run logging. nil means no logging.
	Logger *zap.Logger
}

// Invocation binds one pipeline execution: argument values plus the
// execution context forwarded to the Fetcher.
type Invocation struct {
	Args  map[string]any
	Actor string
	Scope string
}

// Document is the successful result of one pipeline run.
type Document struct {
	Format    Format            `json:"format"`
	Data      []byte            `json:"data"`
	PageCount int               `json:"page_count"`
	Warnings  []diag.Diagnostic `json:"warnings"`
}

// Pipeline is a compiled, immutable render spec. Build one with Compile
// and run it any number of times.
type Pipeline struct {
	spec RenderSpec
	deps Deps
	log  *zap.Logger
}

// Compile validates the spec's option combination and returns a runnable
// pipeline. Incoherent combinations are rejected here with a *ConfigError
// so they never reach invocation time.
func Compile(spec RenderSpec, deps Deps) (*Pipeline, error) {
	var problems []string

	if spec.Name == "" {
		problems = append(problems, "name is required")
	}
	if !spec.Format.Valid() {
		problems = append(problems, fmt.Sprintf("unknown format %q", spec.Format))
	}
	if spec.Page != nil && spec.Format != FormatSVG {
		problems = append(problems, "page option is only meaningful for svg output")
	}
	if spec.PDF != nil && spec.Format != FormatPDF {
		problems = append(problems, "pdf options are only meaningful for pdf output")
	}

	switch {
	case spec.Template.Source == "" && spec.Template.Path == "":
		problems = append(problems, "template needs inline source or a file path")
	case spec.Template.Source != "" && spec.Template.Path != "":
		problems = append(problems, "template cannot have both inline source and a file path")
	}

	if f := spec.Fetch; f != nil {
		switch f.Kind {
		case FetchNone:
			// Declared but inert, same as nil.
		case FetchOne:
			if f.Limit != 0 || f.BatchSize != 0 {
				problems = append(problems, "limit and batch size apply only to many-cardinality fetches")
			}
		case FetchMany:
			if f.AllowMissing {
				problems = append(problems, "a many-cardinality fetch has no not-found condition")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown fetch cardinality %q", f.Kind))
		}
		if f.Kind == FetchOne || f.Kind == FetchMany {
			if deps.Fetcher == nil {
				problems = append(problems, "a fetcher is required for fetching specs")
			}
		}
	}

	seen := make(map[string]struct{}, len(spec.Args))
	for _, arg := range spec.Args {
		if _, dup := seen[arg.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate argument %q", arg.Name))
		}
		seen[arg.Name] = struct{}{}
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Spec: spec.Name, Problems: problems}
	}

	if spec.DataPath == "" {
		spec.DataPath = DefaultDataPath
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{spec: spec, deps: deps, log: log}, nil
}

// Name returns the spec's name.
func (p *Pipeline) Name() string { return p.spec.Name }

// Spec returns a copy of the compiled spec.
func (p *Pipeline) Spec() RenderSpec { return p.spec }

// Run executes the pipeline once: fetch, build a session, install the
// template and static inputs, inject data, compile, export. The steps are
// strictly ordered and short-circuit on the first failure.
func (p *Pipeline) Run(ctx context.Context, inv Invocation) (*Document, error) {
	runID := uuid.NewString()
	start := time.Now()
	log := p.log.With(zap.String("render", p.spec.Name), zap.String("run_id", runID))
	log.Debug("pipeline run started", zap.String("actor", inv.Actor))

	doc, err := p.run(ctx, inv)
	if err != nil {
		log.Warn("pipeline run failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	log.Info("pipeline run finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("pages", doc.PageCount),
		zap.Int("warnings", len(doc.Warnings)))
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, inv Invocation) (*Document, error) {
	if err := p.checkArgs(inv); err != nil {
		return nil, err
	}

	// Step 1: fetch. Runs before any session exists so that a missing
	// record under the default policy never pays for font discovery.
	var record any
	var haveRecord bool
	var records session.Cursor

	if f := p.spec.Fetch; f != nil && f.Kind != FetchNone {
		q := Query{
			Statement: f.Statement,
			Args:      inv.Args,
			Actor:     inv.Actor,
			Scope:     inv.Scope,
			Limit:     f.Limit,
		}
		switch f.Kind {
		case FetchOne:
			rec, ok, err := p.deps.Fetcher.FetchOne(ctx, q)
			if err != nil {
				return nil, err
			}
			if !ok {
				if !f.AllowMissing {
					return nil, &NotFoundError{Spec: p.spec.Name}
				}
				rec = nil
			}
			record, haveRecord = rec, true
		case FetchMany:
			cursor, err := p.deps.Fetcher.FetchMany(ctx, q)
			if err != nil {
				return nil, err
			}
			defer cursor.Close()
			records = cursor
		}
	}

	// Step 2: session construction, rooted at the template's root.
	sess, err := session.New(p.deps.Engine, session.Options{
		Root:              p.spec.Template.Root,
		FontPaths:         p.deps.FontPaths,
		IgnoreSystemFonts: p.deps.IgnoreSystemFonts,
		Logger:            p.log,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	// Step 3: template installation.
	markup := p.spec.Template.Source
	if p.spec.Template.Path != "" {
		path := filepath.Join(p.spec.Template.Root, p.spec.Template.Path)
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
		markup = string(content)
	}
	if err := sess.SetMarkup(markup); err != nil {
		return nil, err
	}

	// Step 4: static inputs.
	if len(p.spec.Template.Inputs) > 0 {
		if err := sess.SetInputs(p.spec.Template.Inputs); err != nil {
			return nil, err
		}
	}

	// Step 5: data injection.
	if err := p.inject(sess, record, haveRecord, records, inv); err != nil {
		return nil, err
	}

	// Step 6: compile, translating engine diagnostics.
	result, err := sess.Compile(ctx)
	if err != nil {
		if ce, ok := err.(*diag.CompileError); ok {
			return nil, &RenderError{Spec: p.spec.Name, Diagnostics: ce.Diagnostics}
		}
		return nil, err
	}

	// Step 7: export by format.
	var data []byte
	switch p.spec.Format {
	case FormatPDF:
		opts := engine.PDFOptions{}
		if p.spec.PDF != nil {
			opts = *p.spec.PDF
		}
		data, err = sess.ExportPDF(opts)
	case FormatSVG:
		page := 0
		if p.spec.Page != nil {
			page = *p.spec.Page
		}
		var text string
		text, err = sess.RenderSVG(page)
		data = []byte(text)
	case FormatHTML:
		var text string
		text, err = sess.ExportHTML(ctx)
		data = []byte(text)
	}
	if err != nil {
		return nil, err
	}

	return &Document{
		Format:    p.spec.Format,
		Data:      data,
		PageCount: result.PageCount,
		Warnings:  result.Warnings,
	}, nil
}

// checkArgs enforces the declared argument list against the invocation.
func (p *Pipeline) checkArgs(inv Invocation) error {
	for _, arg := range p.spec.Args {
		if !arg.Required {
			continue
		}
		if _, ok := inv.Args[arg.Name]; !ok {
			return fmt.Errorf("render %q: missing required argument %q", p.spec.Name, arg.Name)
		}
	}
	return nil
}

// inject writes the data virtual file: the fetched record or record
// stream, then the invocation arguments.
func (p *Pipeline) inject(sess *session.Session, record any, haveRecord bool, records session.Cursor, inv Invocation) error {
	args := inv.Args
	if args == nil {
		args = map[string]any{}
	}
	encodedArgs, err := typst.Encode(args, p.spec.Encoding)
	if err != nil {
		return fmt.Errorf("render %q: encoding arguments: %w", p.spec.Name, err)
	}
	argsLine := "#let " + varArgs + " = " + encodedArgs + "\n"

	switch {
	case records != nil:
		batchSize := 0
		if p.spec.Fetch != nil {
			batchSize = p.spec.Fetch.BatchSize
		}
		err := sess.WriteSequence(p.spec.DataPath, varRecords, records, session.StreamOptions{
			BatchSize: batchSize,
			Encoding:  p.spec.Encoding,
		})
		if err != nil {
			return err
		}
		return sess.AppendVirtualFile(p.spec.DataPath, []byte("\n"+argsLine))
	case haveRecord:
		encoded, err := typst.Encode(record, p.spec.Encoding)
		if err != nil {
			return fmt.Errorf("render %q: encoding record: %w", p.spec.Name, err)
		}
		content := "#let " + varRecord + " = " + encoded + "\n" + argsLine
		return sess.SetVirtualFile(p.spec.DataPath, []byte(content))
	default:
		return sess.SetVirtualFile(p.spec.DataPath, []byte(argsLine))
	}
}
