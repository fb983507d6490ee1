package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

const allowRemoteEnvKey = "CHATGATE_ALLOW_REMOTE"

// ListenAddr converts a base URL into a listen address, refusing non-loopback
// hosts unless CHATGATE_ALLOW_REMOTE=true.
func ListenAddr(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("listen url is required")
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(rawURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return rawURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
