package main

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"chatgate/internal/config"
	"chatgate/internal/models"
	"chatgate/internal/resolver"
)

func TestRootRegistersCommands(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	sort.Strings(names)
	for _, want := range []string{"attach", "backend", "chat", "config", "gateway", "hash-password", "migrate", "refs"} {
		idx := sort.SearchStrings(names, want)
		if idx >= len(names) || names[idx] != want {
			t.Fatalf("expected %q command, got %v", want, names)
		}
	}
}

func TestReadConversationAcceptsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.yaml")
	doc := `
messages:
  - role: user
    content:
      - type: text
        text: describe
      - type: image
        image: file://11111111-1111-4111-8111-111111111111
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write conversation: %v", err)
	}

	messages, err := readConversation(path)
	if err != nil {
		t.Fatalf("read conversation: %v", err)
	}
	ids := resolver.ExtractReferenceIDs(messages)
	if len(ids) != 1 || ids[0] != "11111111-1111-4111-8111-111111111111" {
		t.Fatalf("expected one reference id, got %v", ids)
	}
}

func TestReadConversationMissingFile(t *testing.T) {
	if _, err := readConversation(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildResolveView(t *testing.T) {
	messages := []models.Message{models.NewMessage(models.RoleUser, models.TextContent("hi"))}
	report := resolver.Report{
		Candidates: 2,
		Resolved:   1,
		Unresolved: []resolver.Unresolved{{MessageIndex: 0, PartIndex: 1, ID: "abc", Err: errors.New("not found")}},
	}

	view := buildResolveView(messages, report)
	if view.Candidates != 2 || view.Resolved != 1 {
		t.Fatalf("unexpected counts %#v", view)
	}
	if len(view.Unresolved) != 1 || view.Unresolved[0].Error != "not found" || view.Unresolved[0].ID != "abc" {
		t.Fatalf("unexpected unresolved entries %#v", view.Unresolved)
	}

	empty := buildResolveView(messages, resolver.Report{})
	if empty.Unresolved == nil {
		t.Fatal("expected empty unresolved slice, not nil")
	}
}

func TestAttachmentID(t *testing.T) {
	if got := attachmentID("file://abc"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := attachmentID("abc"); got != "abc" {
		t.Fatalf("expected bare id kept, got %q", got)
	}
}

func TestClientRequiresUser(t *testing.T) {
	cfg := config.Default()
	opts := &clientOptions{}
	if _, err := opts.client(&cfg); err == nil {
		t.Fatal("expected error without --user")
	}
	opts.user = "alice"
	if _, err := opts.client(&cfg); err != nil {
		t.Fatalf("client: %v", err)
	}
}

func TestNewGatewayPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	gw, err := newGateway(&cfg, nil)
	if err != nil || gw == nil {
		t.Fatalf("new gateway: %v", err)
	}

	cfg.Gateway.BackendURL = "ftp://backend"
	if _, err := newGateway(&cfg, nil); err == nil {
		t.Fatal("expected error for non-http backend url")
	}
}

func TestSessionIdentityRequiresSecret(t *testing.T) {
	cfg := config.Default()
	if _, err := newSessionIdentity(&cfg); err == nil || !strings.Contains(err.Error(), "session_secret") {
		t.Fatalf("expected session secret error, got %v", err)
	}

	cfg.Gateway.SessionSecret = strings.Repeat("s", 32)
	sessions, err := newSessionIdentity(&cfg)
	if err != nil {
		t.Fatalf("new session identity: %v", err)
	}
	cookie, err := sessions.Cookie("alice")
	if err != nil {
		t.Fatalf("cookie: %v", err)
	}
	if cookie.Name != cfg.Gateway.SessionName || cookie.Value == "" {
		t.Fatalf("unexpected cookie %#v", cookie)
	}
}

func TestURLSignerRequiresSecret(t *testing.T) {
	cfg := config.Default()
	if _, err := newURLSigner(&cfg); err == nil {
		t.Fatal("expected error without signing secret")
	}
}
