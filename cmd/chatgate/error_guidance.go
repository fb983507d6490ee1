package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"chatgate/internal/api"
	"chatgate/internal/backend"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: verify CHATGATE_GATEWAY_SERVICE_USERNAME and CHATGATE_GATEWAY_SERVICE_PASSWORD match the backend service credentials.")
			if apiErr.ErrorCode == backend.ErrCodeMissingIdentity {
				lines = append(lines, "hint: pass --user so the identity header is set.")
			}
		case "resource_exhausted":
			lines = append(lines, "hint: too many failed service auth attempts from this address; fix the credentials and retry after the block expires.")
		case "forbidden":
			lines = append(lines, "hint: signed URLs expire; fetch the attachment again for a fresh link.")
		}
		if apiErr.Status == http.StatusBadGateway {
			lines = append(lines, "hint: the gateway could not reach the backend; check gateway.backend_url.")
		} else if apiErr.Code == "" {
			lines = append(lines, "hint: verify --url points to a chatgate backend or gateway.")
		}
		if apiErr.Status >= 500 && apiErr.Status != http.StatusBadGateway {
			lines = append(lines, "hint: server returned an internal error; check backend logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check backend health or increase CHATGATE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a chatgate backend is running at --url.",
			"hint: start the backend with: chatgate backend",
			"hint: you can increase CHATGATE_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
