package main

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/service/ui"
	"github.com/spf13/cobra"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Deactivate sessions idle longer than SESSION_TIMEOUT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		return withRelay(ctx, func(ctx context.Context, r *relay) error {
			n, err := r.engine.ReapExpired(ctx, r.appCfg.GetSessionTimeout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(fmt.Sprintf("%d expired sessions deactivated", n)))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reapCmd)
}
