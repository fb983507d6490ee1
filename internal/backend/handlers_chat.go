package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"chatgate/internal/api"
)

const finishReasonStop = "stop"

// dataStream writes the line-oriented chat protocol, flushing every line.
type dataStream struct {
	w       io.Writer
	flusher http.Flusher
}

func newDataStream(w http.ResponseWriter) *dataStream {
	flusher, _ := w.(http.Flusher)
	return &dataStream{w: w, flusher: flusher}
}

func (d *dataStream) writeLine(prefix string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(d.w, "%s:%s\n", prefix, data); err != nil {
		return err
	}
	if d.flusher != nil {
		d.flusher.Flush()
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := ownerFromContext(r.Context())

	var req api.ChatRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid messages format"), ErrCodeMissingRequired))
		return
	}

	messages, report := s.resolver.ResolveReport(r.Context(), req.Messages, ownerID)
	s.log().Debug("chat request prepared",
		"owner_id", ownerID,
		"conversation_id", req.ConversationID,
		"messages", len(messages),
		"references", report.Candidates,
		"resolved", report.Resolved,
		"unresolved", len(report.Unresolved),
	)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Vercel-AI-Data-Stream", "v1")
	w.WriteHeader(http.StatusOK)

	stream := newDataStream(w)
	if err := stream.writeLine(api.StreamPrefixStart, api.StreamStart{MessageID: uuid.NewString()}); err != nil {
		s.log().Debug("chat stream aborted", "owner_id", ownerID, "error", err)
		return
	}

	var writeErr error
	usage, err := s.model.Complete(r.Context(), messages, func(delta string) error {
		writeErr = stream.writeLine(api.StreamPrefixText, delta)
		return writeErr
	})
	if err != nil {
		if writeErr != nil || errors.Is(err, context.Canceled) || r.Context().Err() != nil {
			s.log().Debug("chat stream cancelled", "owner_id", ownerID, "error", err)
			return
		}
		s.log().Error("chat completion failed", "owner_id", ownerID, "error", err)
		_ = stream.writeLine(api.StreamPrefixError, err.Error())
		return
	}

	_ = stream.writeLine(api.StreamPrefixFinish, api.StreamFinish{
		FinishReason: finishReasonStop,
		Usage: api.StreamUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		},
	})
}
