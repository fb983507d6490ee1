package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const casAlgorithmPrefix = "sha256"

// ErrBlobNotFound is returned by Open for a locator with no stored bytes.
var ErrBlobNotFound = errors.New("blob not found")

// LocalCAS keeps attachment bytes in a content-addressed directory tree.
// Identical uploads share one object.
type LocalCAS struct {
	root string
}

func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put spools r to a temp file while hashing it, then moves it under its digest.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), contextReader{ctx: ctx, r: r})
	if err != nil {
		discard()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		discard()
		return zero, err
	}

	digest := hex.EncodeToString(h.Sum(nil))
	result := PutResult{Locator: locatorFromDigest(digest), SHA256: digest, SizeBytes: n}
	dst := filepath.Join(c.root, filepath.FromSlash(result.Locator))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		discard()
		return zero, err
	}

	if _, err := os.Stat(dst); err == nil {
		_ = os.Remove(tmpPath)
		return result, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		discard()
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent Put of the same bytes may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return result, nil
		}
		discard()
		return zero, err
	}
	return result, nil
}

func (c *LocalCAS) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromLocator(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
	}
	return f, err
}

// Delete removes one object. Missing objects are ignored.
func (c *LocalCAS) Delete(ctx context.Context, locator string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.pathFromLocator(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func locatorFromDigest(digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s", casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}

// ValidateLocator rejects locators that could escape the store root.
func ValidateLocator(locator string) error {
	if strings.TrimSpace(locator) == "" {
		return fmt.Errorf("blob locator is required")
	}
	if strings.HasPrefix(locator, "/") || strings.Contains(locator, "\\") {
		return fmt.Errorf("blob locator must be relative")
	}
	for _, segment := range strings.Split(locator, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("invalid blob locator")
		}
	}
	return nil
}

func (c *LocalCAS) pathFromLocator(locator string) (string, error) {
	if err := ValidateLocator(locator); err != nil {
		return "", err
	}
	return filepath.Join(c.root, filepath.FromSlash(locator)), nil
}

// contextReader stops a long upload copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
