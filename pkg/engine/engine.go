// Package engine defines the boundary to the Typst compiler. The compiler
// itself is treated as an opaque black box: this package only names the
// operations a session needs (compile, page-addressed SVG, PDF and HTML
// export, font introspection) and the data crossing that boundary.
package engine

import (
	"context"

	"github.com/frankdugan3/typstflow/pkg/diag"
)

// Options configures a World at creation time. Font discovery happens once
// here and is amortized across every compile against the World.
type Options struct {
	// Root is the directory file imports resolve against.
	Root string

	// FontPaths are extra directories searched for font files.
	FontPaths []string

	// IgnoreSystemFonts skips the host's installed fonts.
	IgnoreSystemFonts bool
}

// Snapshot is the full compiler input for one compile pass: the main
// markup, the virtual file store, and the named inputs exposed to templates
// via sys.inputs.
type Snapshot struct {
	Markup string
	Files  map[string][]byte
	Inputs map[string]string
}

// Engine creates Worlds. Implementations wrap a concrete compiler backend.
type Engine interface {
	// NewWorld performs one-time setup, including font discovery. A
	// failure here is fatal to session creation.
	NewWorld(opts Options) (World, error)
}

// World is a configured compiler instance with a loaded font table.
type World interface {
	// Compile compiles the snapshot into a paged document. Compile
	// failures are returned as *diag.CompileError; warnings accompany a
	// successful document.
	Compile(ctx context.Context, snap Snapshot) (Document, []diag.Diagnostic, error)

	// CompileHTML runs an independent HTML compilation pass over the
	// snapshot. It neither requires nor produces a Document.
	CompileHTML(ctx context.Context, snap Snapshot) (string, error)

	// FontFamilies lists the family names discovered at creation. The
	// order is unspecified and an empty list is valid.
	FontFamilies() []string

	// Close releases fonts and any backend resources.
	Close() error
}

// Document is a compiled, page-addressable artifact.
type Document interface {
	// PageCount reports the number of rendered pages.
	PageCount() int

	// RenderSVG renders a single zero-based page as SVG text. The caller
	// guarantees 0 <= page < PageCount.
	RenderSVG(page int) (string, error)

	// ExportPDF serializes the document as PDF, honoring the options.
	ExportPDF(opts PDFOptions) ([]byte, error)

	// Close releases per-document resources.
	Close() error
}
