package main

import (
	"os"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
)

func newChatCmd(cfg *config.Config) *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "chat <file|->",
		Short: "Send a JSON or YAML conversation and stream the response to stdout",
		Args:  requireExactlyArgs(1, "requires exactly 1 argument: <file|->"),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := readConversation(args[0])
			if err != nil {
				return err
			}
			client, err := opts.client(cfg)
			if err != nil {
				return err
			}
			return client.Chat(cmd.Context(), messages, os.Stdout)
		},
	}
	opts.bind(cmd)
	return cmd
}
