package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/core/services"
	"github.com/archivista/lore-ingest/internal/metrics"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the folder watcher",
	Long: `Watches the configured inbox directory and ingests files as they
arrive. Succeeded files move to the success directory; exhausted or
rejected files move to the fail directory with an error record.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := initApp(); err != nil {
		return err
	}
	defer closeApp()

	if appStore == nil {
		return errors.New("watch requires a configured store")
	}

	wcfg := appCfg.Watcher
	watcher, err := services.NewWatcher(
		services.WatcherConfig{
			Inbox:             wcfg.Inbox,
			SuccessDir:        wcfg.SuccessDir,
			FailDir:           wcfg.FailDir,
			AllowedExtensions: wcfg.AllowedExtensions,
			MaxFileBytes:      wcfg.MaxFileBytes(),
			Workers:           wcfg.Workers,
			QueueCapacity:     wcfg.QueueCapacity,
			StabilityWindow:   wcfg.StabilityWindow(),
			PollInterval:      wcfg.PollInterval(),
			MaxAttempts:       wcfg.MaxAttempts,
			BackoffBase:       wcfg.BackoffBase(),
			Recursive:         wcfg.Recursive,
			Profile:           appCfg.Ingest.Profile,
			WindowChars:       appCfg.Ingest.WindowChars,
			StrideChars:       appCfg.Ingest.StrideChars,
		},
		ingestService,
		appSink,
		nil,
		appLogger,
		metrics.NewWatcher(appRegistry),
	)
	if err != nil {
		return fmt.Errorf("building watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info("watching inbox", zap.String("inbox", wcfg.Inbox))
	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("watcher stopped: %w", err)
	}
	return nil
}
