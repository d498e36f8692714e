package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	worksQuery string
	worksLimit int
	worksJSON  bool

	sliceStart int
	sliceEnd   int
)

var worksCmd = &cobra.Command{
	Use:   "works",
	Short: "Inspect ingested works",
	Long:  `List works and read their scenes, chunks and canonical text spans.`,
}

var worksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested works",
	Args:  cobra.NoArgs,
	RunE:  runWorksList,
}

var worksShowCmd = &cobra.Command{
	Use:   "show [work-id]",
	Short: "Show work details",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorksShow,
}

var worksScenesCmd = &cobra.Command{
	Use:   "scenes [work-id]",
	Short: "List a work's scenes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorksScenes,
}

var worksChunksCmd = &cobra.Command{
	Use:   "chunks [work-id]",
	Short: "List a work's chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorksChunks,
}

var worksSliceCmd = &cobra.Command{
	Use:   "slice [work-id]",
	Short: "Print a span of the canonical text",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorksSlice,
}

func init() {
	worksListCmd.Flags().StringVarP(&worksQuery, "query", "q", "", "filter by title substring")
	worksListCmd.Flags().IntVarP(&worksLimit, "limit", "n", 50, "maximum number of works")
	worksListCmd.Flags().BoolVar(&worksJSON, "json", false, "output as JSON")

	worksSliceCmd.Flags().IntVar(&sliceStart, "start", 0, "span start offset, inclusive")
	worksSliceCmd.Flags().IntVar(&sliceEnd, "end", 0, "span end offset, exclusive")

	worksCmd.AddCommand(worksListCmd)
	worksCmd.AddCommand(worksShowCmd)
	worksCmd.AddCommand(worksScenesCmd)
	worksCmd.AddCommand(worksChunksCmd)
	worksCmd.AddCommand(worksSliceCmd)
	rootCmd.AddCommand(worksCmd)
}

func runWorksList(cmd *cobra.Command, _ []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if workStore == nil {
		return errors.New("store not configured")
	}

	works, err := workStore.ListWorks(cmd.Context(), worksQuery, worksLimit)
	if err != nil {
		return fmt.Errorf("failed to list works: %w", err)
	}

	if worksJSON {
		data, err := json.MarshalIndent(works, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal works: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(works) == 0 {
		cmd.Println("No works found.")
		return nil
	}

	for i := range works {
		cmd.Printf("  %s\n", works[i].ID)
		cmd.Printf("    Title: %s\n", works[i].Title)
		if works[i].Author != "" {
			cmd.Printf("    Author: %s\n", works[i].Author)
		}
		cmd.Printf("    Chars: %d  SHA1: %s\n", works[i].CharCount, works[i].Fingerprint)
		cmd.Println()
	}
	cmd.Printf("Total: %d works\n", len(works))
	return nil
}

func runWorksShow(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if workStore == nil {
		return errors.New("store not configured")
	}

	work, err := workStore.GetWork(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get work: %w", err)
	}

	cmd.Printf("Work: %s\n", work.ID)
	cmd.Printf("  Title: %s\n", work.Title)
	if work.Author != "" {
		cmd.Printf("  Author: %s\n", work.Author)
	}
	if work.Source != "" {
		cmd.Printf("  Source: %s\n", work.Source)
	}
	cmd.Printf("  Chars: %d\n", work.CharCount)
	cmd.Printf("  SHA1: %s\n", work.Fingerprint)
	cmd.Printf("  Run: %s\n", work.IngestRunID)
	cmd.Printf("  Created: %s\n", work.CreatedAt.Format("2006-01-02 15:04:05"))

	if counts, err := workStore.Counts(cmd.Context(), work.ID); err == nil {
		cmd.Printf("  Scenes: %d  Chunks: %d\n", counts.Scenes, counts.Chunks)
	}
	return nil
}

func runWorksScenes(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if workStore == nil {
		return errors.New("store not configured")
	}

	scenes, err := workStore.ListScenes(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list scenes: %w", err)
	}

	for i := range scenes {
		cmd.Printf("  [%d] %d..%d", scenes[i].Index, scenes[i].Start, scenes[i].End)
		if scenes[i].Heading != "" {
			cmd.Printf("  %s", scenes[i].Heading)
		}
		cmd.Println()
	}
	cmd.Printf("Total: %d scenes\n", len(scenes))
	return nil
}

func runWorksChunks(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if workStore == nil {
		return errors.New("store not configured")
	}

	chunks, err := workStore.ListChunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	for i := range chunks {
		cmd.Printf("  [%d] %d..%d  sha1=%s\n", chunks[i].Index, chunks[i].Start, chunks[i].End, chunks[i].Fingerprint)
	}
	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func runWorksSlice(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	text, err := ingestService.Slice(cmd.Context(), args[0], sliceStart, sliceEnd)
	if err != nil {
		return fmt.Errorf("slice failed: %w", err)
	}

	cmd.Println(text)
	return nil
}
