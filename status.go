package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridesync/stridesync/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached activities and pending sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)

		_, st, _, err := openEngine(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()

		spilled, err := st.SpilledCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Spilled batches pending upload: %d\n", spilled)

		activities, err := st.Activities(ctx)
		if err != nil {
			return err
		}
		if len(activities) == 0 {
			fmt.Println("No cached activities")
			return nil
		}

		fmt.Printf("\nCached activities (%d):\n", len(activities))
		for _, a := range activities {
			marker := " "
			if a.Status != model.StatusCompleted {
				marker = "*"
			}
			fmt.Printf("%s %s | %s | %s | %.0fm | %ds\n",
				marker, a.ID, a.StartedAt.Format("2006-01-02 15:04:05"), a.Status, a.Distance, a.Duration)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
