package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestForName(t *testing.T) {
	for _, name := range []string{"", "json", "JSON"} {
		f, err := ForName(name)
		if err != nil {
			t.Fatalf("ForName(%q): %v", name, err)
		}
		if _, ok := f.(JSONFormatter); !ok {
			t.Fatalf("ForName(%q): expected JSONFormatter, got %T", name, f)
		}
	}
	for _, name := range []string{"yaml", "yml"} {
		f, err := ForName(name)
		if err != nil {
			t.Fatalf("ForName(%q): %v", name, err)
		}
		if _, ok := f.(YAMLFormatter); !ok {
			t.Fatalf("ForName(%q): expected YAMLFormatter, got %T", name, f)
		}
	}
	if _, err := ForName("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJSONFormatterKeepsURLs(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, map[string]string{"url": "http://x/blobs/a?expires=1&sig=2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "expires=1&sig=2") {
		t.Fatalf("expected unescaped ampersand, got %q", buf.String())
	}
}

func TestYAMLFormatterUsesBlockStyle(t *testing.T) {
	payload := struct {
		Role    string   `json:"role"`
		Content []string `json:"content"`
		Flag    string   `json:"flag"`
	}{Role: "user", Content: []string{"a", "b"}, Flag: "true"}

	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "{") || strings.Contains(out, "[") {
		t.Fatalf("expected block style yaml, got %q", out)
	}
	if !strings.HasPrefix(out, "role: user\n") {
		t.Fatalf("expected field order preserved, got %q", out)
	}
	if !strings.Contains(out, `flag: "true"`) {
		t.Fatalf("expected string true quoted, got %q", out)
	}
}

func TestDocumentToJSON(t *testing.T) {
	jsonDoc := []byte(` [{"role":"user","content":"hi"}] `)
	out, err := DocumentToJSON(jsonDoc)
	if err != nil {
		t.Fatalf("json document: %v", err)
	}
	if string(out) != `[{"role":"user","content":"hi"}]` {
		t.Fatalf("expected trimmed json passthrough, got %s", out)
	}

	yamlDoc := []byte(`
messages:
  - role: user
    content:
      - type: text
        text: look
      - type: image
        image: file://abc
`)
	out, err = DocumentToJSON(yamlDoc)
	if err != nil {
		t.Fatalf("yaml document: %v", err)
	}
	var decoded struct {
		Messages []struct {
			Role    string           `json:"role"`
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode converted json: %v", err)
	}
	if len(decoded.Messages) != 1 || decoded.Messages[0].Content[1]["image"] != "file://abc" {
		t.Fatalf("unexpected converted document %s", out)
	}

	if _, err := DocumentToJSON([]byte("   ")); err == nil {
		t.Fatal("expected error for empty document")
	}
}
