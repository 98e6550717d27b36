package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridesync/stridesync/internal/store"
)

var authToken string
var authClear bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store or clear the API token used for uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)

		_, st, _, err := openEngine(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if authClear {
			if err := st.DeleteToken(store.TokenKeyPrimary); err != nil {
				return err
			}
			if err := st.DeleteToken(store.TokenKeyLegacy); err != nil {
				return err
			}
			fmt.Println("Stored tokens cleared")
			return nil
		}

		if err := st.SetToken(store.TokenKeyPrimary, authToken); err != nil {
			return err
		}
		fmt.Println("Token stored")
		return nil
	},
}

func init() {
	authCmd.Flags().StringVar(&authToken, "token", "", "Bearer token for the activity backend")
	authCmd.Flags().BoolVar(&authClear, "clear", false, "Remove all stored tokens")
	authCmd.MarkFlagsMutuallyExclusive("token", "clear")
	authCmd.MarkFlagsOneRequired("token", "clear")

	rootCmd.AddCommand(authCmd)
}
