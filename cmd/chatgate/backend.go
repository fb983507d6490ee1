package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chatgate/internal/auth"
	"chatgate/internal/backend"
	"chatgate/internal/blobstore"
	"chatgate/internal/config"
	"chatgate/internal/store"
)

func newBackendCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Run the attachment and chat backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.Backend.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "backend")

			addr, err := config.ListenAddr(cfg.Backend.ListenURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.Backend.DBPath)
			st, err := store.Open(cfg.Backend.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobs, err := blobstore.NewLocalCAS(cfg.Backend.BlobRoot)
			if err != nil {
				return err
			}
			signer, err := newURLSigner(cfg)
			if err != nil {
				return err
			}

			srv, err := backend.New(backend.Options{
				Addr:   addr,
				Store:  st,
				Blobs:  blobs,
				Signer: signer,
				Credentials: auth.ServiceCredentials{
					Username:     cfg.Backend.ServiceUsername,
					PasswordHash: cfg.Backend.ServicePasswordHash,
				},
				IdentityHeader:  cfg.Backend.IdentityHeader,
				SignedURLTTL:    cfg.Backend.SignedURLTTL.Duration,
				ResolveTimeout:  cfg.Backend.ResolveTimeout.Duration,
				MaxUploadBytes:  cfg.Backend.MaxUploadBytes,
				MultipartMemory: cfg.Backend.MultipartMaxMemory,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe()
		},
	}
}

func newURLSigner(cfg *config.Config) (*blobstore.URLSigner, error) {
	if cfg.Backend.SigningSecret == "" {
		return nil, fmt.Errorf("backend.signing_secret is required (or set CHATGATE_SIGNING_SECRET)")
	}
	return blobstore.NewURLSigner(cfg.Backend.PublicURL, cfg.Backend.SigningSecret)
}
