package diag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(Error)
	require.NoError(t, err)
	assert.Equal(t, `"error"`, string(data))

	data, err = json.Marshal(Warning)
	require.NoError(t, err)
	assert.Equal(t, `"warning"`, string(data))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"warning"`), &s))
	assert.Equal(t, Warning, s)

	// Unknown severities default to error.
	require.NoError(t, json.Unmarshal([]byte(`"mystery"`), &s))
	assert.Equal(t, Error, s)
}

func TestSeverityZeroValueIsError(t *testing.T) {
	var d Diagnostic
	assert.Equal(t, Error, d.Severity)
	assert.Equal(t, "error", d.Severity.String())
}

func TestDiagnosticJSONShape(t *testing.T) {
	d := Diagnostic{
		Severity: Error,
		Message:  "unknown variable: x",
		Span:     &Span{Start: 10, End: 11, Line: 2, Column: 3},
		Trace:    []TraceItem{{Message: "while evaluating template"}},
		Hints:    []string{"did you mean y?"},
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "error", decoded["severity"])
	assert.Equal(t, "unknown variable: x", decoded["message"])

	span := decoded["span"].(map[string]any)
	assert.Equal(t, float64(10), span["start"])
	assert.Equal(t, float64(2), span["line"])
}

func TestDiagnosticSpanOmittedWhenAbsent(t *testing.T) {
	data, err := json.Marshal(Diagnostic{Severity: Error, Message: "boom"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"span"`)
}

func TestCompileErrorMessage(t *testing.T) {
	err := NewError("page index %d out of bounds (document has %d pages)", 9, 2)
	assert.EqualError(t, err, "compile error: page index 9 out of bounds (document has 2 pages)")
	require.Len(t, err.Diagnostics, 1)
	assert.Equal(t, Error, err.Diagnostics[0].Severity)
	assert.Nil(t, err.Diagnostics[0].Span)

	multi := &CompileError{Diagnostics: []Diagnostic{
		{Severity: Error, Message: "first"},
		{Severity: Warning, Message: "second", Span: &Span{Line: 4, Column: 2}},
	}}
	assert.Contains(t, multi.Error(), "2 diagnostics")
	assert.Contains(t, multi.Error(), "first")
	assert.Contains(t, multi.Error(), "4:2: warning: second")
}

func TestCompileErrorErrors(t *testing.T) {
	e := &CompileError{Diagnostics: []Diagnostic{
		{Severity: Warning, Message: "w"},
		{Severity: Error, Message: "e"},
	}}
	errs := e.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "e", errs[0].Message)
}
