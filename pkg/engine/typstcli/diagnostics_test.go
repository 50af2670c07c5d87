package typstcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
)

func TestParseDiagnostics(t *testing.T) {
	stderr := `main.typ:3:5: error: unknown variable: recrods
hint: did you mean records?
main.typ:10:1: warning: unused import
error: cannot continue
`
	diags := parseDiagnostics(stderr)
	require.Len(t, diags, 3)

	assert.Equal(t, diag.Error, diags[0].Severity)
	assert.Equal(t, "unknown variable: recrods", diags[0].Message)
	require.NotNil(t, diags[0].Span)
	assert.Equal(t, 3, diags[0].Span.Line)
	assert.Equal(t, 5, diags[0].Span.Column)
	assert.Equal(t, []string{"did you mean records?"}, diags[0].Hints)

	assert.Equal(t, diag.Warning, diags[1].Severity)
	assert.Equal(t, "unused import", diags[1].Message)

	// A diagnostic without location has no span.
	assert.Equal(t, "cannot continue", diags[2].Message)
	assert.Nil(t, diags[2].Span)
}

func TestParseDiagnosticsIgnoresNoise(t *testing.T) {
	diags := parseDiagnostics("compiling...\n\nsome stray line\n")
	assert.Empty(t, diags)
}

func TestSafeRelPath(t *testing.T) {
	clean, err := safeRelPath("data.typ")
	require.NoError(t, err)
	assert.Equal(t, "data.typ", clean)

	_, err = safeRelPath("../escape.typ")
	assert.Error(t, err)

	_, err = safeRelPath("/etc/passwd")
	assert.Error(t, err)

	clean, err = safeRelPath("sub/../data.typ")
	require.NoError(t, err)
	assert.Equal(t, "data.typ", clean)
}

func TestCLIStandardMapping(t *testing.T) {
	for std, want := range map[string]string{"pdf_1_7": "1.7", "pdf_a_2b": "a-2b", "pdf_a_3b": "a-3b"} {
		parsed, err := engine.ParsePDFStandard(std)
		require.NoError(t, err)
		flag, err := cliStandard(parsed)
		require.NoError(t, err)
		assert.Equal(t, want, flag)
	}

	_, err := cliStandard(engine.PDFStandard("bogus"))
	assert.Error(t, err)
}
