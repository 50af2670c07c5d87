package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errHeader  = color.New(color.FgRed, color.Bold)
	warnHeader = color.New(color.FgYellow, color.Bold)
	location   = color.New(color.FgCyan)
	hintLabel  = color.New(color.FgBlue, color.Bold)
	traceLabel = color.New(color.FgHiBlack)
)

// Fprint writes a human-readable, colored rendering of the diagnostic to w.
// Colors are suppressed automatically when w is not a terminal.
func Fprint(w io.Writer, d Diagnostic) {
	header := errHeader
	if d.Severity == Warning {
		header = warnHeader
	}
	header.Fprint(w, d.Severity.String())
	fmt.Fprintf(w, ": %s\n", d.Message)

	if d.Span != nil {
		location.Fprint(w, "  --> ")
		if d.Span.Line > 0 {
			fmt.Fprintf(w, "%d:%d", d.Span.Line, d.Span.Column)
		} else {
			fmt.Fprintf(w, "bytes %d..%d", d.Span.Start, d.Span.End)
		}
		fmt.Fprintln(w)
	}

	for _, item := range d.Trace {
		traceLabel.Fprint(w, "  trace: ")
		fmt.Fprint(w, item.Message)
		if item.Span != nil && item.Span.Line > 0 {
			fmt.Fprintf(w, " (%d:%d)", item.Span.Line, item.Span.Column)
		}
		fmt.Fprintln(w)
	}

	for _, hint := range d.Hints {
		hintLabel.Fprint(w, "  hint: ")
		fmt.Fprintln(w, hint)
	}
}

// FprintAll renders every diagnostic in the error, separated by blank lines
func FprintAll(w io.Writer, e *CompileError) {
	for i, d := range e.Diagnostics {
		if i > 0 {
			fmt.Fprintln(w)
		}
		Fprint(w, d)
	}
}
