package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/service/ui"
	"github.com/spf13/cobra"
)

var statsUser int64

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print usage statistics",
	Long:  `Prints global statistics, or one user's statistics with --user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		out := cmd.OutOrStdout()
		return withRelay(ctx, func(ctx context.Context, r *relay) error {
			if cmd.Flags().Changed("user") {
				s, err := r.engine.Stats(ctx, statsUser)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("USER %d", statsUser)))
				fmt.Fprintln(out, ui.Row("Total messages", s.TotalMessages))
				fmt.Fprintln(out, ui.Row("Total tokens", s.TotalTokens))
				fmt.Fprintln(out, ui.Row("Processing time", time.Duration(s.TotalProcessingMs)*time.Millisecond))
				fmt.Fprintln(out, ui.Row("Active sessions", s.ActiveSessionCount))
				return nil
			}

			s, err := r.engine.GlobalStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.TitleStyle.Render("SYSTEM"))
			fmt.Fprintln(out, ui.Row("Total users", s.TotalUsers))
			fmt.Fprintln(out, ui.Row("Active users (7 days)", s.ActiveUsers7d))
			fmt.Fprintln(out, ui.Row("Total conversations", s.TotalConversations))
			fmt.Fprintln(out, ui.Row("Total tokens", s.TotalTokens))
			fmt.Fprintln(out, ui.Row("Avg tokens per message", fmt.Sprintf("%.1f", s.AvgTokensPerMessage)))
			fmt.Fprintln(out, ui.Row("Active sessions", s.ActiveSessions))
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().Int64VarP(&statsUser, "user", "u", 0, "show statistics for one user")
	rootCmd.AddCommand(statsCmd)
}
