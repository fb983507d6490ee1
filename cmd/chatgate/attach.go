package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
)

func newAttachCmd(cfg *config.Config) *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Upload, inspect and delete attachments",
	}
	opts.bind(cmd)

	cmd.AddCommand(newAttachAddCmd(cfg, opts))
	cmd.AddCommand(newAttachShowCmd(cfg, opts))
	cmd.AddCommand(newAttachRemoveCmd(cfg, opts))
	cmd.AddCommand(newAttachListCmd(cfg, opts))
	return cmd
}

func newAttachAddCmd(cfg *config.Config, opts *clientOptions) *cobra.Command {
	var conversationID string
	var name string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Upload a file and print its file:// reference",
		Args:  requireExactlyArgs(1, "requires exactly 1 argument: <path>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cfg)
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			filename := name
			if filename == "" {
				filename = filepath.Base(args[0])
			}
			resp, err := client.UploadAttachment(cmd.Context(), filename, file, conversationID)
			if err != nil {
				return err
			}
			return writeStructured(resp)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to file the attachment under")
	cmd.Flags().StringVar(&name, "name", "", "filename to record (default: base name of <path>)")
	return cmd
}

func newAttachShowCmd(cfg *config.Config, opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|file://id>",
		Short: "Show attachment metadata and a signed download URL",
		Args:  requireExactlyArgs(1, "requires exactly 1 argument: <id|file://id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cfg)
			if err != nil {
				return err
			}
			resp, err := client.GetAttachment(cmd.Context(), attachmentID(args[0]))
			if err != nil {
				return err
			}
			return writeStructured(resp)
		},
	}
}

func newAttachRemoveCmd(cfg *config.Config, opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id|file://id>",
		Aliases: []string{"delete"},
		Short:   "Delete an attachment",
		Args:    requireExactlyArgs(1, "requires exactly 1 argument: <id|file://id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cfg)
			if err != nil {
				return err
			}
			resp, err := client.DeleteAttachment(cmd.Context(), attachmentID(args[0]))
			if err != nil {
				return err
			}
			return writeStructured(resp)
		},
	}
}

func newAttachListCmd(cfg *config.Config, opts *clientOptions) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attachments in a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if conversationID == "" {
				return fmt.Errorf("--conversation is required")
			}
			client, err := opts.client(cfg)
			if err != nil {
				return err
			}
			resp, err := client.ListConversationAttachments(cmd.Context(), conversationID)
			if err != nil {
				return err
			}
			return writeStructured(resp)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	return cmd
}
