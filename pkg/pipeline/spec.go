// Package pipeline turns static render declarations into runnable
// pipelines. A RenderSpec is validated once, at declaration-processing
// time; the resulting Pipeline is immutable and executes the same
// fetch, inject, compile, export sequence for every invocation.
package pipeline

import (
	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

// DefaultDataPath is the virtual file fetched data is injected into when
// the spec does not name one.
const DefaultDataPath = "data.typ"

// Variable names bound inside the data virtual file.
const (
	varRecord  = "record"
	varRecords = "records"
	varArgs    = "args"
)

// Format is a supported output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatSVG  Format = "svg"
	FormatHTML Format = "html"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatSVG, FormatHTML:
		return true
	}
	return false
}

// FetchKind is the cardinality of a pipeline's data fetch.
type FetchKind string

const (
	FetchNone FetchKind = "none"
	FetchOne  FetchKind = "one"
	FetchMany FetchKind = "many"
)

// FetchSpec describes the optional data fetch preceding a render.
type FetchSpec struct {
	Kind FetchKind

	// Statement is passed opaquely to the Fetcher, e.g. a SQL query.
	Statement string

	// AllowMissing permits a `one` fetch to find no record, in which
	// case the template sees `record` bound to none and must guard with
	// `if record != none`. Meaningless for `many`: an empty list is
	// valid data, never a not-found condition.
	AllowMissing bool

	// Limit caps the number of records of a `many` fetch. Zero means
	// unlimited.
	Limit int

	// BatchSize overrides the streaming writer's batch size for a
	// `many` fetch. Zero means the default.
	BatchSize int
}

// TemplateSpec declares a template: a name, exactly one of inline markup
// or a source file path resolved against Root, and optional static inputs.
type TemplateSpec struct {
	Name string

	// Source is inline markup.
	Source string

	// Path is a source file resolved against Root.
	Path string

	// Root is the directory imports (and Path) resolve against.
	Root string

	// Inputs are static named inputs installed before every compile.
	Inputs map[string]string
}

// ArgSpec declares one invocation argument.
type ArgSpec struct {
	Name     string
	Required bool
}

// RenderSpec is the static declaration of one output-producing pipeline.
type RenderSpec struct {
	Name     string
	Template TemplateSpec
	Format   Format

	// Page is the zero-based page to render; meaningful only for svg.
	// nil means page 0.
	Page *int

	// PDF holds pdf-only export options.
	PDF *engine.PDFOptions

	// Fetch describes the optional data fetch. nil means no fetch.
	Fetch *FetchSpec

	// Args declares the invocation arguments.
	Args []ArgSpec

	// DataPath is the virtual file injected data is written to.
	// Empty means DefaultDataPath.
	DataPath string

	// Encoding is the context used for every value encode, e.g. the
	// report timezone or struct-key overrides.
	Encoding *typst.Context
}
