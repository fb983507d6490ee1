package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
	"chatgate/internal/gateway"
)

func newGatewayCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the credential-injecting gateway in front of the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default().With("component", "gateway")

			addr, err := config.ListenAddr(cfg.Gateway.ListenURL)
			if err != nil {
				return err
			}

			gw, err := newGateway(cfg, logger)
			if err != nil {
				return err
			}

			var identity gateway.IdentitySource
			if cfg.Gateway.SessionSecret != "" {
				sessions, err := newSessionIdentity(cfg)
				if err != nil {
					return err
				}
				identity = sessions
			} else {
				logger.Warn("no session secret configured; forwarding requests without caller identity")
			}

			return gateway.NewServer(addr, cfg.Gateway.MountPrefix, gw, identity, logger).ListenAndServe()
		},
	}

	cmd.AddCommand(newGatewayCookieCmd(cfg))
	return cmd
}

func newGatewayCookieCmd(cfg *config.Config) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "cookie",
		Short: "Print a session cookie that identifies --user to the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			sessions, err := newSessionIdentity(cfg)
			if err != nil {
				return err
			}
			cookie, err := sessions.Cookie(user)
			if err != nil {
				return err
			}
			return writePlain("%s\n", cookie.String())
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id stored in the session")
	return cmd
}

func newGateway(cfg *config.Config, logger *slog.Logger) (*gateway.Gateway, error) {
	policy := gateway.HeaderPolicyProtected
	if cfg.Gateway.TrustInboundHeaders {
		policy = gateway.HeaderPolicyPassthrough
	}
	return gateway.New(gateway.Options{
		BackendURL:      cfg.Gateway.BackendURL,
		ServiceUsername: cfg.Gateway.ServiceUsername,
		ServicePassword: cfg.Gateway.ServicePassword,
		IdentityHeader:  cfg.Gateway.IdentityHeader,
		Policy:          policy,
		Logger:          logger,
	})
}

func newSessionIdentity(cfg *config.Config) (*gateway.SessionIdentity, error) {
	if cfg.Gateway.SessionSecret == "" {
		return nil, fmt.Errorf("gateway.session_secret is required (or set CHATGATE_SESSION_SECRET)")
	}
	return gateway.NewSessionIdentity(cfg.Gateway.SessionSecret, cfg.Gateway.SessionName)
}
