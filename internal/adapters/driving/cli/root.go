// Package cli implements the loreingest command line interface. Commands
// are thin callers into the ingest coordinator; all pipeline semantics live
// in the core services.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "loreingest",
	Short: "Document ingestion pipeline for long-form prose",
	Long: `loreingest turns source documents (.txt, .md, .pdf, .docx) into
normalised works with scene and chunk partitions, stored in SQLite.
Repeated ingestion of identical content is a no-op.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI with the given build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
