package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskrelay/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	chatUser    int64
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message through the relay",
	Long:  `Runs a single turn through admission, session resolution, the model and persistence, then prints the reply.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		return withRelay(ctx, func(ctx context.Context, r *relay) error {
			if d := r.chatGate.Admit(ctx, chatUser); !d.Allowed {
				return fmt.Errorf("%s", d.Message)
			}

			res := r.engine.Process(ctx, chatUser, strings.Join(args, " "), chatSession)
			if !res.Success {
				fmt.Fprintln(cmd.OutOrStdout(), ui.ErrorStyle.Render(res.Response))
				return fmt.Errorf("%s: %s", res.Kind, res.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Response)
			fmt.Fprintln(cmd.OutOrStdout(), ui.DescStyle.Render(fmt.Sprintf("session %s, %d tokens, %dms", res.SessionID, res.TokensUsed, res.ProcessingTimeMs)))
			return nil
		})
	},
}

func init() {
	chatCmd.Flags().Int64VarP(&chatUser, "user", "u", 0, "user id to chat as")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session id (defaults to the active session)")
	_ = chatCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(chatCmd)
}
