// Package enginetest provides a deterministic in-memory engine for tests.
// Page count follows the markup's #pagebreak() calls, markers in the markup
// trigger scripted failures and warnings, and every method can be
// overridden through a Func field.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
)

// Markers recognized in snapshot markup.
const (
	// ErrorMarker makes Compile and CompileHTML fail with one diagnostic.
	ErrorMarker = "#fail()"
	// WarningMarker adds one warning to a successful compile.
	WarningMarker = "#warn()"
)

// Engine is a fake engine.Engine.
type Engine struct {
	// Families is the font table handed to every World.
	Families []string

	// NewWorldFunc overrides NewWorld entirely when set.
	NewWorldFunc func(opts engine.Options) (engine.World, error)
}

// New returns a fake engine with a small default font table.
func New() *Engine {
	return &Engine{Families: []string{"Libertinus Serif", "New Computer Modern"}}
}

func (e *Engine) NewWorld(opts engine.Options) (engine.World, error) {
	if e.NewWorldFunc != nil {
		return e.NewWorldFunc(opts)
	}
	return &World{Opts: opts, Families: e.Families}, nil
}

// World is a fake engine.World recording every snapshot it compiles.
type World struct {
	Opts     engine.Options
	Families []string

	// CompileFunc and CompileHTMLFunc override the scripted behavior.
	CompileFunc     func(ctx context.Context, snap engine.Snapshot) (engine.Document, []diag.Diagnostic, error)
	CompileHTMLFunc func(ctx context.Context, snap engine.Snapshot) (string, error)

	mu        sync.Mutex
	Snapshots []engine.Snapshot
	Closed    bool
}

func (w *World) record(snap engine.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Snapshots = append(w.Snapshots, snap)
}

// CompileCount reports how many compile passes ran (paged and HTML).
func (w *World) CompileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Snapshots)
}

func (w *World) Compile(ctx context.Context, snap engine.Snapshot) (engine.Document, []diag.Diagnostic, error) {
	if w.CompileFunc != nil {
		return w.CompileFunc(ctx, snap)
	}
	w.record(snap)

	if strings.Contains(snap.Markup, ErrorMarker) {
		return nil, nil, diag.NewError("unknown function: fail")
	}

	var warnings []diag.Diagnostic
	if strings.Contains(snap.Markup, WarningMarker) {
		warnings = append(warnings, diag.Diagnostic{
			Severity: diag.Warning,
			Message:  "unused marker",
			Trace:    []diag.TraceItem{},
			Hints:    []string{},
		})
	}

	doc := &Document{
		Pages:       strings.Count(snap.Markup, "#pagebreak()") + 1,
		Fingerprint: fingerprint(snap),
	}
	return doc, warnings, nil
}

func (w *World) CompileHTML(ctx context.Context, snap engine.Snapshot) (string, error) {
	if w.CompileHTMLFunc != nil {
		return w.CompileHTMLFunc(ctx, snap)
	}
	w.record(snap)

	if strings.Contains(snap.Markup, ErrorMarker) {
		return "", diag.NewError("unknown function: fail")
	}
	return "<html><body>" + snap.Markup + "</body></html>", nil
}

func (w *World) FontFamilies() []string {
	out := make([]string, len(w.Families))
	copy(out, w.Families)
	return out
}

func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

// Document is a fake engine.Document whose renders embed the page number
// and a snapshot fingerprint, so different pages and different inputs
// produce different output.
type Document struct {
	Pages       int
	Fingerprint string
	Closed      bool
}

func (d *Document) PageCount() int { return d.Pages }

func (d *Document) RenderSVG(page int) (string, error) {
	return fmt.Sprintf("<svg><!-- page %d of %s --></svg>", page, d.Fingerprint), nil
}

func (d *Document) ExportPDF(opts engine.PDFOptions) ([]byte, error) {
	included := d.Pages
	if opts.Pages != "" {
		ranges, err := engine.ParsePageRanges(opts.Pages, d.Pages)
		if err != nil {
			return nil, diag.NewError("%v", err)
		}
		included = 0
		for page := 1; page <= d.Pages; page++ {
			if ranges.Contains(page) {
				included++
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%%PDF-fake %s pages=%d", d.Fingerprint, included)
	for _, std := range opts.Standards {
		fmt.Fprintf(&sb, " std=%s", std)
	}
	if opts.DocumentID != "" {
		fmt.Fprintf(&sb, " id=%s", opts.DocumentID)
	}
	return []byte(sb.String()), nil
}

func (d *Document) Close() error {
	d.Closed = true
	return nil
}

// fingerprint is a stable digest over the snapshot's contents.
func fingerprint(snap engine.Snapshot) string {
	h := len(snap.Markup)
	for path, content := range snap.Files {
		h += len(path) + len(content)
	}
	for key, value := range snap.Inputs {
		h += len(key) + len(value)
	}
	return fmt.Sprintf("snap-%d-%d", len(snap.Markup), h)
}
