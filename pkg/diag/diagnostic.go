package diag

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a compiler diagnostic
type Severity int

// Error is deliberately the zero value so a zero-valued Diagnostic never
// reads as a mere warning.
const (
	Error Severity = iota
	Warning
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	default:
		*s = Error // Default to Error if unknown
	}
	return nil
}

// Span locates a diagnostic inside the compiled markup. Start and End are
// byte offsets; Line and Column are 1-based and zero when the engine could
// not resolve them.
type Span struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// TraceItem is one frame of the engine's evaluation trace for a diagnostic
type TraceItem struct {
	Span    *Span  `json:"span,omitempty"`
	Message string `json:"message"`
}

// Diagnostic is a single structured compiler message
type Diagnostic struct {
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
	Span     *Span       `json:"span,omitempty"`
	Trace    []TraceItem `json:"trace"`
	Hints    []string    `json:"hints"`
}

// String renders the diagnostic in file:line:column style where possible
func (d Diagnostic) String() string {
	if d.Span != nil && d.Span.Line > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", d.Span.Line, d.Span.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// CompileError carries one or more diagnostics produced by the engine or by
// a session operation that requires a compiled document.
type CompileError struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Error implements the error interface
func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compile error"
	}
	if len(e.Diagnostics) == 1 {
		return "compile error: " + e.Diagnostics[0].Message
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "compile error (%d diagnostics):", len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

// Errors returns only the error-severity diagnostics
func (e *CompileError) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range e.Diagnostics {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// NewError creates a CompileError holding a single synthetic error
// diagnostic with no span. Used for failures that never reached the engine,
// such as exporting before a successful compile.
func NewError(format string, args ...interface{}) *CompileError {
	return &CompileError{
		Diagnostics: []Diagnostic{{
			Severity: Error,
			Message:  fmt.Sprintf(format, args...),
			Trace:    []TraceItem{},
			Hints:    []string{},
		}},
	}
}
