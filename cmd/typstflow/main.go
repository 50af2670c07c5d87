package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "typstflow",
		Short: "Typst document rendering pipelines",
		Long: `Typstflow turns structured data into rendered documents. It encodes
application data as Typst markup, drives reusable compile sessions, and
executes declarative render pipelines to PDF, SVG, or HTML.`,
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to typstflow.yml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fontsCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
