package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stridesync/stridesync/internal/health"
	"github.com/stridesync/stridesync/internal/recorder"
)

var recordGPXPath string
var recordJSONL bool

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an activity and sync it to the backend",
	Long: `Records an activity session. Samples come from a GPX file (--gpx)
or a JSON-lines stream on stdin (--stdin), are buffered locally and
uploaded in batches while recording. Samples that cannot be uploaded
before the session ends are spilled to the local database and can be
retried later with "stridesync flush".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)

		cfg, st, client, err := openEngine(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		src, closeSrc, err := newSampleSource(recordGPXPath, recordJSONL, os.Stdin)
		if err != nil {
			return err
		}
		defer closeSrc()

		healthSvc := health.NewService(cfg, logger)
		session := recorder.NewSession(cfg, client, st, healthSvc, logger)

		// A backgrounding signal ends sample intake; Stop then runs
		// the best-effort final flush.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := session.Start(ctx); err != nil {
			return err
		}

		fmt.Printf("Recording %s activity %s\n", cfg.Sport, session.Activity().ID)

		if err := session.Record(ctx, src); err != nil && ctx.Err() == nil {
			return err
		}

		// Stop must not inherit the cancelled signal context, or the
		// final flush would be aborted before it starts.
		if err := session.Stop(cmd.Context()); err != nil {
			return err
		}

		activity := session.Activity()
		fmt.Printf("Activity %s completed: %.0fm in %ds (local distance %.0fm)\n",
			activity.ID, activity.Distance, activity.Duration, session.Distance())
		return nil
	},
}

// newSampleSource opens the sample source the record flags selected.
func newSampleSource(gpxPath string, useStdin bool, stdin io.Reader) (recorder.SampleSource, func() error, error) {
	switch {
	case gpxPath != "":
		f, err := os.Open(gpxPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open GPX file: %w", err)
		}
		src, err := recorder.NewGPXSource(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return src, f.Close, nil
	case useStdin:
		return recorder.NewJSONLSource(stdin), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("either --gpx or --stdin is required")
}

func init() {
	recordCmd.Flags().StringVar(&recordGPXPath, "gpx", "", "Replay samples from a GPX file")
	recordCmd.Flags().BoolVar(&recordJSONL, "stdin", false, "Read JSON-lines samples from stdin")
	recordCmd.MarkFlagsMutuallyExclusive("gpx", "stdin")
	recordCmd.MarkFlagsOneRequired("gpx", "stdin")

	rootCmd.AddCommand(recordCmd)
}
