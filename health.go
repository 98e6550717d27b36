package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridesync/stridesync/internal/health"
)

var healthSince time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query heart-rate samples from the configured health provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)

		cfg, st, _, err := openEngine(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := health.NewService(cfg, logger)
		fmt.Printf("Health provider: %s\n", svc.Name())
		if !svc.Available() {
			fmt.Println("No health store available")
			return nil
		}

		ctx := cmd.Context()
		granted, err := svc.RequestPermission(ctx)
		if err != nil {
			return fmt.Errorf("permission check failed: %w", err)
		}
		if !granted {
			fmt.Println("Health read permission not granted")
			return nil
		}

		end := time.Now()
		start := end.Add(-healthSince)
		samples := svc.HeartRateSamples(ctx, start, end)
		samples = health.Downsample(samples, cfg.HealthMaxSamples)

		if len(samples) == 0 {
			fmt.Println("No heart-rate samples in window")
			return nil
		}

		min, max, sum := samples[0].BPM, samples[0].BPM, 0
		for _, s := range samples {
			if s.BPM < min {
				min = s.BPM
			}
			if s.BPM > max {
				max = s.BPM
			}
			sum += s.BPM
		}
		fmt.Printf("%d samples between %s and %s\n",
			len(samples), samples[0].Time.Format(time.RFC3339), samples[len(samples)-1].Time.Format(time.RFC3339))
		fmt.Printf("BPM min/avg/max: %d/%d/%d\n", min, sum/len(samples), max)
		return nil
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthSince, "since", time.Hour, "Window to query, ending now")
	rootCmd.AddCommand(healthCmd)
}
