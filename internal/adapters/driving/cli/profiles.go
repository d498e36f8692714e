package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List segmentation profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List supported file extensions",
	Args:  cobra.NoArgs,
	RunE:  runExtractors,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(extractorsCmd)
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	for _, name := range ingestService.Profiles() {
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func runExtractors(cmd *cobra.Command, _ []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	for _, ext := range ingestService.Extractors() {
		cmd.Printf("  %s\n", ext)
	}
	return nil
}
