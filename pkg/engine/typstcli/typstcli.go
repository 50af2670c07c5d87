// Package typstcli backs the engine boundary with the official `typst`
// command line binary. Each compile materializes the snapshot into a
// throwaway workspace directory, renders one SVG per page for page
// addressing, and parses the CLI's short diagnostic format back into
// structured diagnostics.
package typstcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
)

const mainFile = "main.typ"

// Engine locates the typst binary and creates Worlds bound to it.
type Engine struct {
	binary string
}

// New returns an Engine driving the given binary. An empty binary means
// "typst" resolved via PATH.
func New(binary string) *Engine {
	if binary == "" {
		binary = "typst"
	}
	return &Engine{binary: binary}
}

// NewWorld verifies the binary is runnable and performs font discovery
// once via `typst fonts`.
func (e *Engine) NewWorld(opts engine.Options) (engine.World, error) {
	families, err := listFonts(e.binary, opts)
	if err != nil {
		return nil, fmt.Errorf("typstcli: font discovery failed: %w", err)
	}
	return &world{binary: e.binary, opts: opts, families: families}, nil
}

type world struct {
	binary   string
	opts     engine.Options
	families []string
}

func (w *world) FontFamilies() []string {
	out := make([]string, len(w.families))
	copy(out, w.families)
	return out
}

func (w *world) Close() error { return nil }

// Compile renders the snapshot to one SVG file per page. The workspace is
// retained by the returned Document and removed on Close.
func (w *world) Compile(ctx context.Context, snap engine.Snapshot) (engine.Document, []diag.Diagnostic, error) {
	dir, err := w.materialize(snap)
	if err != nil {
		return nil, nil, err
	}

	args := append([]string{"compile", mainFile, "page-{n}.svg", "--format", "svg"}, w.compileFlags(dir, snap)...)
	warnings, err := w.run(ctx, dir, args)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page-*.svg"))
	if err != nil || len(pages) == 0 {
		os.RemoveAll(dir)
		return nil, nil, diag.NewError("compiler produced no pages")
	}

	doc := &document{
		binary:    w.binary,
		dir:       dir,
		pageCount: len(pages),
		flags:     w.compileFlags(dir, snap),
	}
	return doc, warnings, nil
}

// CompileHTML runs an independent HTML pass; the workspace is discarded
// before returning.
func (w *world) CompileHTML(ctx context.Context, snap engine.Snapshot) (string, error) {
	dir, err := w.materialize(snap)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	args := append([]string{"compile", mainFile, "out.html", "--format", "html", "--features", "html"}, w.compileFlags(dir, snap)...)
	if _, err := w.run(ctx, dir, args); err != nil {
		return "", err
	}

	html, err := os.ReadFile(filepath.Join(dir, "out.html"))
	if err != nil {
		return "", fmt.Errorf("typstcli: reading html output: %w", err)
	}
	return string(html), nil
}

// compileFlags returns the options shared by every compile invocation
// against the materialized workspace: root, fonts, inputs, diagnostics.
// These are options of the `compile` subcommand, so callers must place
// them after the subcommand and its positional arguments.
func (w *world) compileFlags(dir string, snap engine.Snapshot) []string {
	flags := []string{"--root", dir, "--diagnostic-format", "short"}
	for _, p := range w.opts.FontPaths {
		flags = append(flags, "--font-path", p)
	}
	if w.opts.IgnoreSystemFonts {
		flags = append(flags, "--ignore-system-fonts")
	}
	for key, value := range snap.Inputs {
		flags = append(flags, "--input", key+"="+value)
	}
	return flags
}

// materialize writes the snapshot into a fresh workspace. Entries of the
// configured root are symlinked in first so template imports resolve;
// virtual files are written after and shadow same-named root entries.
func (w *world) materialize(snap engine.Snapshot) (string, error) {
	dir, err := os.MkdirTemp("", "typstflow-*")
	if err != nil {
		return "", fmt.Errorf("typstcli: creating workspace: %w", err)
	}

	cleanup := func(err error) (string, error) {
		os.RemoveAll(dir)
		return "", err
	}

	if w.opts.Root != "" {
		entries, err := os.ReadDir(w.opts.Root)
		if err != nil {
			return cleanup(fmt.Errorf("typstcli: reading root %s: %w", w.opts.Root, err))
		}
		for _, entry := range entries {
			src := filepath.Join(w.opts.Root, entry.Name())
			if err := os.Symlink(src, filepath.Join(dir, entry.Name())); err != nil {
				return cleanup(fmt.Errorf("typstcli: linking %s: %w", src, err))
			}
		}
	}

	for path, content := range snap.Files {
		clean, err := safeRelPath(path)
		if err != nil {
			return cleanup(err)
		}
		dst := filepath.Join(dir, clean)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return cleanup(fmt.Errorf("typstcli: creating %s: %w", filepath.Dir(dst), err))
		}
		// Remove a root symlink shadowed by a virtual file.
		os.Remove(dst)
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return cleanup(fmt.Errorf("typstcli: writing %s: %w", dst, err))
		}
	}

	if err := os.WriteFile(filepath.Join(dir, mainFile), []byte(snap.Markup), 0o644); err != nil {
		return cleanup(fmt.Errorf("typstcli: writing markup: %w", err))
	}
	return dir, nil
}

// run executes the binary in dir and parses stderr. A nonzero exit becomes
// a *diag.CompileError; on success the parsed warnings are returned.
func (w *world) run(ctx context.Context, dir string, args []string) ([]diag.Diagnostic, error) {
	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diags := parseDiagnostics(stderr.String())
	if runErr != nil {
		if len(diags) == 0 {
			return nil, diag.NewError("typst invocation failed: %v", runErr)
		}
		return nil, &diag.CompileError{Diagnostics: diags}
	}
	return diags, nil
}

// safeRelPath rejects virtual file paths escaping the workspace.
func safeRelPath(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("typstcli: virtual file path escapes workspace: %s", path)
	}
	return clean, nil
}

type document struct {
	binary    string
	dir       string
	pageCount int
	flags     []string
}

func (d *document) PageCount() int { return d.pageCount }

func (d *document) RenderSVG(page int) (string, error) {
	svg, err := os.ReadFile(filepath.Join(d.dir, fmt.Sprintf("page-%d.svg", page+1)))
	if err != nil {
		return "", fmt.Errorf("typstcli: reading page %d: %w", page, err)
	}
	return string(svg), nil
}

// ExportPDF re-invokes the binary against the retained workspace. The
// document id option has no CLI counterpart and is accepted but ignored by
// this backend.
func (d *document) ExportPDF(opts engine.PDFOptions) ([]byte, error) {
	args := append([]string{"compile", mainFile, "out.pdf", "--format", "pdf"}, d.flags...)

	if opts.Pages != "" {
		ranges, err := engine.ParsePageRanges(opts.Pages, d.pageCount)
		if err != nil {
			return nil, &diag.CompileError{Diagnostics: diag.NewError("%v", err).Diagnostics}
		}
		args = append(args, "--pages", ranges.String())
	}
	for _, std := range opts.Standards {
		flag, err := cliStandard(std)
		if err != nil {
			return nil, err
		}
		args = append(args, "--pdf-standard", flag)
	}

	cmd := exec.Command(d.binary, args...)
	cmd.Dir = d.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		diags := parseDiagnostics(stderr.String())
		if len(diags) == 0 {
			return nil, diag.NewError("pdf export failed: %v", err)
		}
		return nil, &diag.CompileError{Diagnostics: diags}
	}

	pdf, err := os.ReadFile(filepath.Join(d.dir, "out.pdf"))
	if err != nil {
		return nil, fmt.Errorf("typstcli: reading pdf output: %w", err)
	}
	return pdf, nil
}

func (d *document) Close() error {
	return os.RemoveAll(d.dir)
}

func cliStandard(std engine.PDFStandard) (string, error) {
	switch std {
	case engine.PDF17:
		return "1.7", nil
	case engine.PDFA2b:
		return "a-2b", nil
	case engine.PDFA3b:
		return "a-3b", nil
	}
	return "", fmt.Errorf("typstcli: unknown PDF standard %q", std)
}

// listFonts runs `typst fonts`, one family per line.
func listFonts(binary string, opts engine.Options) ([]string, error) {
	args := []string{"fonts"}
	for _, p := range opts.FontPaths {
		args = append(args, "--font-path", p)
	}
	if opts.IgnoreSystemFonts {
		args = append(args, "--ignore-system-fonts")
	}

	out, err := exec.Command(binary, args...).Output()
	if err != nil {
		return nil, err
	}

	var families []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			families = append(families, line)
		}
	}
	return families, nil
}
