package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stridesync/stridesync/internal/api"
	"github.com/stridesync/stridesync/internal/config"
	"github.com/stridesync/stridesync/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "stridesync",
	Short: "StrideSync records activities and syncs them to the backend",
	Long: `StrideSync is the recording and sync engine of the StrideSync app:
1. Records location samples from a GPX trace or a device bridge stream
2. Uploads them in batches with retry and crash-safe spill
3. Reconciles elapsed time and milestones against the server record
4. Merges heart-rate data from the configured health provider`,
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the engine logger. User-facing progress goes to
// stdout via fmt; structured engine logs go to stderr.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine loads config and opens the shared store and sync client.
func openEngine(logger *slog.Logger) (*config.Config, *store.Store, *api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := api.NewClient(cfg.ServerURL, st, func() string { return cfg.Locale }, cfg.UploadTimeout, logger)
	return cfg, st, client, nil
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
