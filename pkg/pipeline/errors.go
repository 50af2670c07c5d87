package pipeline

import (
	"fmt"
	"strings"

	"github.com/frankdugan3/typstflow/pkg/diag"
)

// ConfigError reports an incoherent RenderSpec. It is raised when the spec
// is compiled into a pipeline, never at invocation time.
type ConfigError struct {
	Spec     string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("render spec %q: %s", e.Spec, strings.Join(e.Problems, "; "))
}

// NotFoundError reports a `one` fetch that found no record under the
// default not-found policy.
type NotFoundError struct {
	Spec string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("render spec %q: record not found", e.Spec)
}

// IOError reports an unreadable template source file. It is distinct from
// a compile failure: the engine was never reached.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading template %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RenderError wraps the diagnostics of a failed compile step in the
// pipeline's own error shape.
type RenderError struct {
	Spec        string
	Diagnostics []diag.Diagnostic
}

func (e *RenderError) Error() string {
	if len(e.Diagnostics) == 1 {
		return fmt.Sprintf("render %q failed: %s", e.Spec, e.Diagnostics[0].Message)
	}
	return fmt.Sprintf("render %q failed with %d diagnostics", e.Spec, len(e.Diagnostics))
}
