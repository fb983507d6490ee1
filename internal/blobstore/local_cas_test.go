package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalCASPutOpenDelete(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	first, err := cas.Put(ctx, bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	if first.SHA256 == "" || first.Locator == "" || first.SizeBytes != 5 {
		t.Fatalf("unexpected put result: %#v", first)
	}
	if !strings.HasPrefix(first.Locator, "sha256/"+first.SHA256[0:2]+"/"+first.SHA256[2:4]+"/") {
		t.Fatalf("unexpected locator layout: %s", first.Locator)
	}

	second, err := cas.Put(ctx, bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first.Locator != second.Locator {
		t.Fatalf("expected identical content to share a locator: %#v %#v", first, second)
	}

	rc, err := cas.Open(ctx, first.Locator)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}

	if err := cas.Delete(ctx, first.Locator); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cas.Delete(ctx, first.Locator); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := cas.Open(ctx, first.Locator); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestLocalCASRejectsEscapingLocators(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	for _, locator := range []string{"", "/etc/passwd", "../secret", "sha256/../../x", "a//b", `a\b`} {
		if _, err := cas.Open(context.Background(), locator); err == nil {
			t.Fatalf("expected error for locator %q", locator)
		}
	}
}

func TestLocalCASPutHonorsCancelledContext(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cas.Put(ctx, strings.NewReader("payload")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
