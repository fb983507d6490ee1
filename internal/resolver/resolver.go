package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatgate/internal/models"
)

const (
	DefaultURLTTL  = time.Hour
	DefaultTimeout = 5 * time.Second
)

var (
	ErrReferenceNotFound = errors.New("attachment reference not found")
	ErrLookupFailure     = errors.New("attachment lookup failed")
	ErrSigningFailure    = errors.New("attachment url signing failed")
)

// Registry looks up attachment records scoped to their owner. A nil record
// with a nil error means the id is unknown to that owner.
type Registry interface {
	LookupAttachment(ctx context.Context, id, ownerID string) (*models.Attachment, error)
}

// Signer issues time-bounded download URLs for stored objects.
type Signer interface {
	IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

// Options tunes a Resolver. Zero values select the defaults.
type Options struct {
	TTL     time.Duration
	Timeout time.Duration
	Logger  *slog.Logger
}

// Unresolved records one reference, or one whole message, left as received.
// PartIndex is -1 when the message itself was malformed.
type Unresolved struct {
	MessageIndex int
	PartIndex    int
	ID           string
	Err          error
}

// Report summarizes one resolution pass.
type Report struct {
	Candidates int
	Resolved   int
	Unresolved []Unresolved
}

// Resolver rewrites opaque file:// references into signed download URLs.
type Resolver struct {
	registry Registry
	signer   Signer
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func New(registry Registry, signer Signer, opts Options) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = DefaultURLTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Resolver{
		registry: registry,
		signer:   signer,
		ttl:      opts.TTL,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// Resolve returns messages with every resolvable reference replaced by a
// signed URL. It never fails: unresolvable references and malformed messages
// are returned unchanged. The input slice is not modified.
func (r *Resolver) Resolve(ctx context.Context, messages []models.Message, ownerID string) []models.Message {
	out, _ := r.ResolveReport(ctx, messages, ownerID)
	return out
}

// ResolveReport is Resolve plus an account of what was left unresolved.
func (r *Resolver) ResolveReport(ctx context.Context, messages []models.Message, ownerID string) ([]models.Message, Report) {
	out := make([]models.Message, len(messages))
	var report Report

	for i, msg := range messages {
		if msg.Malformed() {
			out[i] = msg
			report.Unresolved = append(report.Unresolved, Unresolved{MessageIndex: i, PartIndex: -1, Err: msg.Err()})
			r.log().Warn("message passed through unresolved", "owner_id", ownerID, "message", i, "error", msg.Err())
			continue
		}
		if !msg.Content.Structured() {
			out[i] = msg
			continue
		}

		resolved := msg.Clone()
		for j, part := range resolved.Content.Parts {
			id, ok := candidateID(part)
			if !ok {
				continue
			}
			report.Candidates++

			url, err := r.resolveOne(ctx, id, ownerID)
			if err != nil {
				report.Unresolved = append(report.Unresolved, Unresolved{MessageIndex: i, PartIndex: j, ID: id, Err: err})
				r.log().Warn("attachment reference left unresolved", "attachment_id", id, "owner_id", ownerID, "message", i, "part", j, "error", err)
				continue
			}
			resolved.Content.Parts[j] = part.WithReference(url)
			report.Resolved++
		}
		out[i] = resolved
	}

	if report.Candidates > 0 {
		r.log().Debug("attachment references resolved", "owner_id", ownerID, "candidates", report.Candidates, "resolved", report.Resolved)
	}
	return out, report
}

func (r *Resolver) resolveOne(ctx context.Context, id, ownerID string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty attachment id", ErrReferenceNotFound)
	}
	if r == nil || r.registry == nil || r.signer == nil {
		return "", fmt.Errorf("%w: resolver is not configured", ErrLookupFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	record, err := r.registry.LookupAttachment(ctx, id, ownerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailure, err)
	}
	if record == nil {
		return "", ErrReferenceNotFound
	}

	url, err := r.signer.IssueSignedURL(ctx, record.StorageLocator, r.ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	if url == "" {
		return "", fmt.Errorf("%w: signer returned an empty url", ErrSigningFailure)
	}
	return url, nil
}

func (r *Resolver) log() *slog.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// ExtractReferenceIDs lists the id of every resolution candidate in message
// then part order. Duplicates are kept and nothing is looked up.
func ExtractReferenceIDs(messages []models.Message) []string {
	ids := []string{}
	for _, msg := range messages {
		if msg.Malformed() || !msg.Content.Structured() {
			continue
		}
		for _, part := range msg.Content.Parts {
			if id, ok := candidateID(part); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func candidateID(part models.ContentPart) (string, bool) {
	if !part.HasReference() {
		return "", false
	}
	return models.ParseReference(part.Reference)
}
