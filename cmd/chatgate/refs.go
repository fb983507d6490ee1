package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chatgate/internal/auth"
	"chatgate/internal/config"
	"chatgate/internal/format"
	"chatgate/internal/models"
	"chatgate/internal/resolver"
	"chatgate/internal/store"
)

type unresolvedView struct {
	Message int    `json:"message"`
	Part    int    `json:"part"`
	ID      string `json:"attachment_id,omitempty"`
	Error   string `json:"error"`
}

type resolveView struct {
	Messages   []models.Message `json:"messages"`
	Candidates int              `json:"candidates"`
	Resolved   int              `json:"resolved"`
	Unresolved []unresolvedView `json:"unresolved"`
}

func newRefsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Inspect and resolve file:// attachment references in a conversation",
	}

	cmd.AddCommand(newRefsExtractCmd())
	cmd.AddCommand(newRefsResolveCmd(cfg))
	return cmd
}

func newRefsExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file|->",
		Short: "Print the attachment ids a conversation references",
		Args:  requireExactlyArgs(1, "requires exactly 1 argument: <file|->"),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := readConversation(args[0])
			if err != nil {
				return err
			}
			for _, id := range resolver.ExtractReferenceIDs(messages) {
				if err := writePlain("%s\n", id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRefsResolveCmd(cfg *config.Config) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "resolve <file|->",
		Short: "Rewrite references owned by --owner to signed URLs using the local registry",
		Args:  requireExactlyArgs(1, "requires exactly 1 argument: <file|->"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := auth.NormalizeIdentity(owner)
			if err != nil {
				return fmt.Errorf("--owner: %w", err)
			}
			messages, err := readConversation(args[0])
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Backend.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			signer, err := newURLSigner(cfg)
			if err != nil {
				return err
			}

			res := resolver.New(st, signer, resolver.Options{
				TTL:     cfg.Backend.SignedURLTTL.Duration,
				Timeout: cfg.Backend.ResolveTimeout.Duration,
			})
			resolved, report := res.ResolveReport(context.Background(), messages, ownerID)
			return writeStructured(buildResolveView(resolved, report))
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "identity whose attachments may be resolved")
	return cmd
}

func buildResolveView(messages []models.Message, report resolver.Report) resolveView {
	view := resolveView{
		Messages:   messages,
		Candidates: report.Candidates,
		Resolved:   report.Resolved,
		Unresolved: make([]unresolvedView, 0, len(report.Unresolved)),
	}
	for _, u := range report.Unresolved {
		entry := unresolvedView{Message: u.MessageIndex, Part: u.PartIndex, ID: u.ID}
		if u.Err != nil {
			entry.Error = u.Err.Error()
		}
		view.Unresolved = append(view.Unresolved, entry)
	}
	return view
}

// readConversation loads a JSON or YAML conversation from path, or stdin for "-".
func readConversation(path string) ([]models.Message, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	doc, err := format.DocumentToJSON(data)
	if err != nil {
		return nil, err
	}
	return models.ParseConversation(doc)
}
