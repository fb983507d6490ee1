package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatgate/internal/api"
	"chatgate/internal/config"
	"chatgate/internal/models"
)

type clientOptions struct {
	url  string
	user string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.url, "url", "", "backend base URL (default backend.listen_url)")
	cmd.PersistentFlags().StringVar(&o.user, "user", "", "identity sent in the identity header")
}

// client builds an API client that authenticates like the gateway does.
func (o *clientOptions) client(cfg *config.Config) (*api.Client, error) {
	if o.user == "" {
		return nil, fmt.Errorf("--user is required")
	}
	baseURL := o.url
	if baseURL == "" {
		baseURL = cfg.Backend.ListenURL
	}
	return api.NewClient(baseURL, api.ClientOptions{
		Username:       cfg.Gateway.ServiceUsername,
		Password:       cfg.Gateway.ServicePassword,
		IdentityHeader: cfg.Gateway.IdentityHeader,
		Identity:       o.user,
	}), nil
}

// attachmentID accepts either a bare id or a file:// reference.
func attachmentID(raw string) string {
	if id, ok := models.ParseReference(raw); ok {
		return id
	}
	return raw
}
