package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
	"chatgate/internal/format"
)

type outputOptions struct {
	logLevel string
	format   string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &outputOptions{}

	cmd := &cobra.Command{
		Use:           "chatgate",
		Short:         "Chatgate fronts a chat backend with a credential-injecting gateway and attachment resolver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			formatter, err := format.ForName(opts.format)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.format, "output", "o", "json", "structured output format (json or yaml)")

	cmd.AddCommand(
		newGatewayCmd(cfg),
		newBackendCmd(cfg),
		newMigrateCmd(cfg),
		newRefsCmd(cfg),
		newAttachCmd(cfg),
		newChatCmd(cfg),
		newHashPasswordCmd(),
		newConfigCmd(cfg),
	)

	return cmd
}
