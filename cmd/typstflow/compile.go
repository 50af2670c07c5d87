package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/session"
)

var (
	compileFormat string
	compileOut    string
)

func init() {
	compileCmd.Flags().StringVarP(&compileFormat, "format", "f", "pdf", "output format: pdf, svg, or html")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "output file (default: input with new extension)")
}

var compileCmd = &cobra.Command{
	Use:   "compile <file.typ>",
	Short: "Compile a single Typst file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		path := args[0]
		markup, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		sess, err := session.New(app.eng, session.Options{
			Root:              filepath.Dir(path),
			FontPaths:         app.cfg.Engine.FontPaths,
			IgnoreSystemFonts: app.cfg.Engine.IgnoreSystemFonts,
			Logger:            app.log,
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.SetMarkup(string(markup)); err != nil {
			return err
		}

		out := compileOut
		if out == "" {
			out = path[:len(path)-len(filepath.Ext(path))] + "." + compileFormat
		}

		var data []byte
		switch compileFormat {
		case "html":
			text, err := sess.ExportHTML(cmd.Context())
			if err != nil {
				return reportCompileError(err)
			}
			data = []byte(text)
		case "pdf", "svg":
			result, err := sess.Compile(cmd.Context())
			if err != nil {
				return reportCompileError(err)
			}
			for _, warning := range result.Warnings {
				diag.Fprint(os.Stderr, warning)
			}
			if compileFormat == "svg" {
				text, err := sess.RenderSVG(0)
				if err != nil {
					return reportCompileError(err)
				}
				data = []byte(text)
			} else {
				data, err = sess.ExportPDF(engine.PDFOptions{})
				if err != nil {
					return reportCompileError(err)
				}
			}
		default:
			return fmt.Errorf("unknown format %q", compileFormat)
		}

		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

// reportCompileError pretty-prints engine diagnostics and returns a short
// error for cobra.
func reportCompileError(err error) error {
	var ce *diag.CompileError
	if errors.As(err, &ce) {
		diag.FprintAll(os.Stderr, ce)
		return fmt.Errorf("compilation failed with %d diagnostics", len(ce.Diagnostics))
	}
	return err
}
