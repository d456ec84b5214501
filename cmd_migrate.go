package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ticket tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		db, err := openDB(cfg.Store)
		if err != nil {
			return err
		}
		store := newStore(db, zap.L())
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
