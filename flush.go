package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Upload batches spilled by earlier failed syncs",
	Long: `Retries upload of sample batches that were spilled to the local
database when a recording session ended while the backend was
unreachable. Batches are replayed in spill order; the command stops at
the first failure so chronological order is preserved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)

		_, st, client, err := openEngine(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		batches, err := st.SpilledBatches(ctx)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("No spilled batches to upload")
			return nil
		}

		fmt.Printf("Found %d spilled batches\n", len(batches))

		uploaded := 0
		for i, sb := range batches {
			fmt.Printf("[%d/%d] Uploading batch %s (%d samples)\n",
				i+1, len(batches), sb.Batch.ID, len(sb.Batch.Samples))

			activity, err := client.SyncPoints(ctx, sb.ActivityID, sb.Batch)
			if err != nil {
				// Later batches must not jump the queue.
				return fmt.Errorf("failed to upload batch %s (stopping to preserve order): %w", sb.Batch.ID, err)
			}
			if err := st.DeleteSpilledBatch(ctx, sb.Batch.ID); err != nil {
				return err
			}
			if err := st.SaveActivity(ctx, activity); err != nil {
				logger.Warn("failed to cache activity", "activity", activity.ID, "error", err)
			}
			uploaded++
		}

		fmt.Printf("Uploaded %d/%d spilled batches\n", uploaded, len(batches))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
