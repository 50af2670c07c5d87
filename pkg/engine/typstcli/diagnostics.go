package typstcli

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/frankdugan3/typstflow/pkg/diag"
)

// Short diagnostic format: "path:line:column: severity: message" with the
// location prefix optional. Lines and columns are 1-based. Byte offsets are
// not reported by the CLI, so spans carry only line/column.
var shortDiagRe = regexp.MustCompile(`^(?:(.+?):(\d+):(\d+): )?(error|warning): (.*)$`)

func parseDiagnostics(stderr string) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "hint: "); ok && len(diags) > 0 {
			last := &diags[len(diags)-1]
			last.Hints = append(last.Hints, rest)
			continue
		}

		m := shortDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		d := diag.Diagnostic{
			Message: m[5],
			Trace:   []diag.TraceItem{},
			Hints:   []string{},
		}
		if m[4] == "warning" {
			d.Severity = diag.Warning
		} else {
			d.Severity = diag.Error
		}
		if m[2] != "" {
			lineNo, _ := strconv.Atoi(m[2])
			colNo, _ := strconv.Atoi(m[3])
			d.Span = &diag.Span{Line: lineNo, Column: colNo}
		}
		diags = append(diags, d)
	}
	return diags
}
