package main

import (
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/pkg/env"
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the effective configuration as .env lines",
	Long:  `Prints the resolved configuration with secrets masked. Telegram and API settings are included only when their transport is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		appCfg, err := config.ParseAppConfig()
		if err != nil {
			return err
		}
		llmCfg, err := config.ParseLLMConfig()
		if err != nil {
			return err
		}

		configs := []any{appCfg, llmCfg, config.NewRateLimitConfig(ctx), config.NewAccessConfig(ctx)}
		if appCfg.IsTelegramSelected() {
			configs = append(configs, config.NewTelegramConfig(ctx))
		}
		if appCfg.IsAPISelected() {
			configs = append(configs, config.NewAPIConfig(ctx))
		}

		for _, c := range configs {
			out, err := env.MarshalEnv(c, env.WithMaskedSecrets())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
