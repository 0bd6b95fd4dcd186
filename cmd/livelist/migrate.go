package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		if rollback, _ := cmd.Flags().GetBool("down"); rollback {
			if err := st.Rollback(ctx); err != nil {
				return err
			}
		}
		v, err := st.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is at version %d\n", st.Path(), v)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("down", false, "Roll back the most recent migration after migrating")
}
