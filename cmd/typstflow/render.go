package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/pipeline"
)

var (
	renderArgs  []string
	renderActor string
	renderScope string
	renderOut   string
)

func init() {
	renderCmd.Flags().StringArrayVar(&renderArgs, "arg", nil, "argument binding key=value (repeatable)")
	renderCmd.Flags().StringVar(&renderActor, "actor", "", "caller identity forwarded to the fetcher")
	renderCmd.Flags().StringVar(&renderScope, "scope", "", "fetch scope forwarded to the fetcher")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default: <name>.<format>)")
}

var renderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Execute a render pipeline declared in the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		name := args[0]
		p, err := app.registry.Get(name)
		if err != nil {
			return err
		}

		bound, err := parseArgs(renderArgs)
		if err != nil {
			return err
		}

		doc, err := p.Run(cmd.Context(), pipeline.Invocation{
			Args:  bound,
			Actor: renderActor,
			Scope: renderScope,
		})
		if err != nil {
			var renderErr *pipeline.RenderError
			if errors.As(err, &renderErr) {
				diag.FprintAll(os.Stderr, &diag.CompileError{Diagnostics: renderErr.Diagnostics})
			}
			return err
		}

		for _, warning := range doc.Warnings {
			diag.Fprint(os.Stderr, warning)
		}

		out := renderOut
		if out == "" {
			out = name + "." + string(doc.Format)
		}
		if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes, %d pages)\n", out, len(doc.Data), doc.PageCount)
		return nil
	},
}

// parseArgs turns repeated key=value flags into typed argument bindings.
// Values parse as bool, int, or float when they look like one; everything
// else stays a string.
func parseArgs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		args[key] = coerce(value)
	}
	return args, nil
}

func coerce(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
