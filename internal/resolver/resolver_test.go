package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"chatgate/internal/models"
)

type fakeRegistry struct {
	records map[string]models.Attachment
	err     error
	calls   []string
}

func (f *fakeRegistry) LookupAttachment(ctx context.Context, id, ownerID string) (*models.Attachment, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[id]
	if !ok || record.OwnerID != ownerID {
		return nil, nil
	}
	return &record, nil
}

type fakeSigner struct {
	fail    map[string]bool
	issued  int
	lastTTL time.Duration
}

func (f *fakeSigner) IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if f.fail[locator] {
		return "", errors.New("backend refused")
	}
	f.issued++
	f.lastTTL = ttl
	return fmt.Sprintf("https://blobs.example/%s?sig=%d", locator, f.issued), nil
}

func newTestResolver() (*Resolver, *fakeRegistry, *fakeSigner) {
	reg := &fakeRegistry{records: map[string]models.Attachment{
		"known-1": {ID: "known-1", OwnerID: "owner", StorageLocator: "sha256/aa/bb/known1"},
		"known-2": {ID: "known-2", OwnerID: "owner", StorageLocator: "sha256/cc/dd/known2"},
		"other":   {ID: "other", OwnerID: "someone-else", StorageLocator: "sha256/ee/ff/other"},
	}}
	signer := &fakeSigner{fail: map[string]bool{}}
	return New(reg, signer, Options{}), reg, signer
}

func TestResolveUnknownReferenceUnchanged(t *testing.T) {
	r, _, _ := newTestResolver()
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(
			models.TextPart("x"),
			models.ImagePart("file://unknown-id"),
		)),
	}

	out, report := r.ResolveReport(context.Background(), input, "owner")
	if len(out) != 1 || len(out[0].Content.Parts) != 2 {
		t.Fatalf("expected same shape, got %#v", out)
	}
	if out[0].Content.Parts[0].Kind != models.PartKindText || out[0].Content.Parts[0].Text != "x" {
		t.Fatalf("expected text part unchanged, got %#v", out[0].Content.Parts[0])
	}
	if got := out[0].Content.Parts[1].Reference; got != "file://unknown-id" {
		t.Fatalf("expected reference unchanged, got %q", got)
	}
	if len(report.Unresolved) != 1 || !errors.Is(report.Unresolved[0].Err, ErrReferenceNotFound) {
		t.Fatalf("expected one not-found entry, got %#v", report.Unresolved)
	}
}

func TestResolveMixedKnownAndUnknown(t *testing.T) {
	r, _, signer := newTestResolver()
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(
			models.ImagePart("file://known-1"),
			models.ImagePart("file://unknown-2"),
		)),
	}

	out := r.Resolve(context.Background(), input, "owner")
	first := out[0].Content.Parts[0].Reference
	if !strings.HasPrefix(first, "https://blobs.example/sha256/aa/bb/known1?sig=") {
		t.Fatalf("expected first reference signed, got %q", first)
	}
	if second := out[0].Content.Parts[1].Reference; second != "file://unknown-2" {
		t.Fatalf("expected second reference untouched, got %q", second)
	}
	if signer.lastTTL != DefaultURLTTL {
		t.Fatalf("expected ttl %s, got %s", DefaultURLTTL, signer.lastTTL)
	}
	if input[0].Content.Parts[0].Reference != "file://known-1" {
		t.Fatalf("expected input not mutated, got %q", input[0].Content.Parts[0].Reference)
	}
}

func TestResolveFailOpenAcrossMessages(t *testing.T) {
	r, reg, signer := newTestResolver()
	signer.fail["sha256/aa/bb/known1"] = true

	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file://known-1"))),
		models.NewMessage(models.RoleAssistant, models.TextContent("sure")),
		models.NewMessage(models.RoleUser, models.PartsContent(
			models.FilePart("file://other"),
			models.FilePart("file://known-2"),
			models.ImagePart("https://already.example/img.png"),
		)),
	}

	out, report := r.ResolveReport(context.Background(), input, "owner")
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if got := out[0].Content.Parts[0].Reference; got != "file://known-1" {
		t.Fatalf("expected signing failure to leave reference, got %q", got)
	}
	if out[1].Content.Text != "sure" {
		t.Fatalf("expected plain message untouched, got %#v", out[1].Content)
	}
	if got := out[2].Content.Parts[0].Reference; got != "file://other" {
		t.Fatalf("expected foreign-owner reference untouched, got %q", got)
	}
	if got := out[2].Content.Parts[1].Reference; !strings.HasPrefix(got, "https://blobs.example/") {
		t.Fatalf("expected later reference resolved, got %q", got)
	}
	if got := out[2].Content.Parts[2].Reference; got != "https://already.example/img.png" {
		t.Fatalf("expected non-reference url untouched, got %q", got)
	}

	if report.Candidates != 3 || report.Resolved != 1 || len(report.Unresolved) != 2 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if !errors.Is(report.Unresolved[0].Err, ErrSigningFailure) {
		t.Fatalf("expected signing failure, got %v", report.Unresolved[0].Err)
	}
	if !errors.Is(report.Unresolved[1].Err, ErrReferenceNotFound) {
		t.Fatalf("expected not found, got %v", report.Unresolved[1].Err)
	}
	if strings.Join(reg.calls, ",") != "known-1,other,known-2" {
		t.Fatalf("expected lookups in part order, got %v", reg.calls)
	}
}

func TestResolveRegistryErrorIsAbsorbed(t *testing.T) {
	r, reg, _ := newTestResolver()
	reg.err = errors.New("database is locked")

	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file://known-1"))),
	}
	out, report := r.ResolveReport(context.Background(), input, "owner")
	if got := out[0].Content.Parts[0].Reference; got != "file://known-1" {
		t.Fatalf("expected reference unchanged, got %q", got)
	}
	if len(report.Unresolved) != 1 || !errors.Is(report.Unresolved[0].Err, ErrLookupFailure) {
		t.Fatalf("expected lookup failure, got %#v", report.Unresolved)
	}
}

func TestResolveEmptyIDSkipsLookup(t *testing.T) {
	r, reg, _ := newTestResolver()
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file:// / "))),
	}
	out := r.Resolve(context.Background(), input, "owner")
	if got := out[0].Content.Parts[0].Reference; got != "file:// / " {
		t.Fatalf("expected reference unchanged, got %q", got)
	}
	if len(reg.calls) != 0 {
		t.Fatalf("expected no registry calls, got %v", reg.calls)
	}
}

func TestResolveTrimsID(t *testing.T) {
	r, reg, _ := newTestResolver()
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file:// known-1/ "))),
	}
	out := r.Resolve(context.Background(), input, "owner")
	if got := out[0].Content.Parts[0].Reference; !strings.HasPrefix(got, "https://") {
		t.Fatalf("expected trimmed id to resolve, got %q", got)
	}
	if len(reg.calls) != 1 || reg.calls[0] != "known-1" {
		t.Fatalf("expected lookup of known-1, got %v", reg.calls)
	}
}

func TestResolveMalformedMessagePassesThrough(t *testing.T) {
	r, _, _ := newTestResolver()
	messages, err := models.ParseConversation([]byte(`[
		{"role":"user","content":[{"type":"image","image":"file://known-1"}]},
		{"role":"user","content":{"unexpected":true}},
		{"role":"user","content":[{"type":"image","image":"file://known-2"}]}
	]`))
	if err != nil {
		t.Fatalf("parse conversation: %v", err)
	}

	out, report := r.ResolveReport(context.Background(), messages, "owner")
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if !out[1].Malformed() {
		t.Fatal("expected malformed message to stay malformed")
	}
	encoded, err := json.Marshal(out[1])
	if err != nil {
		t.Fatalf("marshal malformed: %v", err)
	}
	if string(encoded) != `{"role":"user","content":{"unexpected":true}}` {
		t.Fatalf("expected raw passthrough, got %s", encoded)
	}
	if !strings.HasPrefix(out[2].Content.Parts[0].Reference, "https://") {
		t.Fatalf("expected message after malformed one resolved, got %q", out[2].Content.Parts[0].Reference)
	}
	if len(report.Unresolved) != 1 || report.Unresolved[0].PartIndex != -1 {
		t.Fatalf("expected one message-level entry, got %#v", report.Unresolved)
	}
}

func TestResolveDuplicatesAreIndependent(t *testing.T) {
	r, reg, signer := newTestResolver()
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(
			models.ImagePart("file://known-1"),
			models.ImagePart("file://known-1"),
		)),
	}

	first := r.Resolve(context.Background(), input, "owner")
	second := r.Resolve(context.Background(), input, "owner")
	if len(reg.calls) != 4 || signer.issued != 4 {
		t.Fatalf("expected 4 lookups and 4 signatures, got %d and %d", len(reg.calls), signer.issued)
	}
	// Distinct URLs across calls are acceptable; both must be resolved.
	for _, out := range [][]models.Message{first, second} {
		for _, part := range out[0].Content.Parts {
			if !strings.HasPrefix(part.Reference, "https://") {
				t.Fatalf("expected resolved reference, got %q", part.Reference)
			}
		}
	}
}

func TestResolveTimeoutBoundsSlowRegistry(t *testing.T) {
	reg := slowRegistry{}
	r := New(reg, &fakeSigner{}, Options{Timeout: 20 * time.Millisecond})
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file://slow"))),
	}

	start := time.Now()
	out := r.Resolve(context.Background(), input, "owner")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected bounded resolution, took %s", elapsed)
	}
	if got := out[0].Content.Parts[0].Reference; got != "file://slow" {
		t.Fatalf("expected reference unchanged, got %q", got)
	}
}

type slowRegistry struct{}

func (slowRegistry) LookupAttachment(ctx context.Context, id, ownerID string) (*models.Attachment, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestNilResolverLeavesReferences(t *testing.T) {
	var r *Resolver
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file://known-1"))),
	}
	out := r.Resolve(context.Background(), input, "owner")
	if got := out[0].Content.Parts[0].Reference; got != "file://known-1" {
		t.Fatalf("expected reference unchanged, got %q", got)
	}
}

func TestExtractReferenceIDs(t *testing.T) {
	input := []models.Message{
		models.NewMessage(models.RoleUser, models.PartsContent(models.TextPart("file://not-a-part"), models.ImagePart("file://a"))),
		models.NewMessage(models.RoleAssistant, models.PartsContent(models.FilePart("file://b"), models.ImagePart("https://x"))),
		models.NewMessage(models.RoleUser, models.PartsContent(models.ImagePart("file://a"))),
	}

	got := ExtractReferenceIDs(input)
	if strings.Join(got, ",") != "a,b,a" {
		t.Fatalf("expected [a b a], got %v", got)
	}

	if got := ExtractReferenceIDs(nil); len(got) != 0 {
		t.Fatalf("expected no ids, got %v", got)
	}
}
