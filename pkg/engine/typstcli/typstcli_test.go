package typstcli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankdugan3/typstflow/pkg/engine"
)

// stubScript records every invocation's argv and fakes just enough output
// for the adapter to proceed: a font line for `fonts`, and the expected
// output files for `compile`.
const stubScript = `#!/bin/sh
printf '%s\n' "$*" >> "$TYPSTCLI_TEST_LOG"
case "$1" in
fonts)
	echo "Libertinus Serif"
	;;
compile)
	case "$3" in
	*.svg) : > page-1.svg ;;
	*) : > "$3" ;;
	esac
	;;
esac
exit 0
`

func newStubEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "argv.log")
	binary := filepath.Join(dir, "typst-stub")
	require.NoError(t, os.WriteFile(binary, []byte(stubScript), 0o755))
	t.Setenv("TYPSTCLI_TEST_LOG", logPath)
	return New(binary), logPath
}

func recordedArgv(t *testing.T, logPath string) []string {
	t.Helper()
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

// The root, diagnostic, font, and input options belong to the compile
// subcommand, so they must appear after `compile` and its positionals;
// the binary rejects them in the global position.
func TestInvocationPlacesFlagsAfterSubcommand(t *testing.T) {
	eng, logPath := newStubEngine(t)

	world, err := eng.NewWorld(engine.Options{
		FontPaths:         []string{"/srv/fonts"},
		IgnoreSystemFonts: true,
	})
	require.NoError(t, err)
	defer world.Close()
	assert.Equal(t, []string{"Libertinus Serif"}, world.FontFamilies())

	ctx := context.Background()
	doc, warnings, err := world.Compile(ctx, engine.Snapshot{
		Markup: "= Hi",
		Inputs: map[string]string{"brand": "acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	defer doc.Close()

	_, err = doc.ExportPDF(engine.PDFOptions{
		Pages:     "1",
		Standards: []engine.PDFStandard{engine.PDFA2b},
	})
	require.NoError(t, err)

	_, err = world.CompileHTML(ctx, engine.Snapshot{Markup: "= Hi"})
	require.NoError(t, err)

	lines := recordedArgv(t, logPath)
	require.Len(t, lines, 4)

	fonts := lines[0]
	assert.True(t, strings.HasPrefix(fonts, "fonts "), fonts)
	assert.Contains(t, fonts, "--font-path /srv/fonts")
	assert.Contains(t, fonts, "--ignore-system-fonts")

	compile := lines[1]
	assert.True(t, strings.HasPrefix(compile, "compile main.typ page-{n}.svg --format svg "), compile)
	assert.Contains(t, compile, "--root ")
	assert.Contains(t, compile, "--diagnostic-format short")
	assert.Contains(t, compile, "--font-path /srv/fonts")
	assert.Contains(t, compile, "--ignore-system-fonts")
	assert.Contains(t, compile, "--input brand=acme")

	pdf := lines[2]
	assert.True(t, strings.HasPrefix(pdf, "compile main.typ out.pdf --format pdf "), pdf)
	assert.Contains(t, pdf, "--root ")
	assert.Contains(t, pdf, "--pages 1")
	assert.Contains(t, pdf, "--pdf-standard a-2b")

	html := lines[3]
	assert.True(t, strings.HasPrefix(html, "compile main.typ out.html --format html --features html "), html)
	assert.Contains(t, html, "--root ")
}

func TestCompileRendersPages(t *testing.T) {
	eng, _ := newStubEngine(t)
	world, err := eng.NewWorld(engine.Options{})
	require.NoError(t, err)
	defer world.Close()

	doc, _, err := world.Compile(context.Background(), engine.Snapshot{Markup: "= One"})
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 1, doc.PageCount())
	_, err = doc.RenderSVG(0)
	assert.NoError(t, err)
}
