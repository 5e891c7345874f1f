package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/transport/console"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/spf13/cobra"
)

var consoleUser int64

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the relay in an interactive terminal",
	Long:  `Opens a full screen chat bound to one user. Logs go to console.log in the runtime directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return fmt.Errorf("failed to create runtime dir: %w", err)
		}

		// the terminal belongs to the UI, so logs go to a file
		logFile, err := os.OpenFile(filepath.Join(runtimePath, "console.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open console log: %w", err)
		}
		defer logFile.Close()

		ctx, flushLog := log.NewContextWithWriter(cmd.Context(), logFile, debug || config.IsDebug())
		defer flushLog()

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := newRelay(ctx)
		if err != nil {
			return err
		}
		defer r.db.Close()

		return console.Run(ctx, consoleUser, console.Deps{
			Engine: r.engine,
			Router: r.router,
			Chat:   r.chatGate,
		})
	},
}

func init() {
	consoleCmd.Flags().Int64VarP(&consoleUser, "user", "u", 0, "user id to chat as")
	_ = consoleCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(consoleCmd)
}
