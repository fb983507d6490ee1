package backend

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"chatgate/internal/api"
)

const conversationIDHeader = "Conversation-Id"

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := ownerFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == fallbackContentType {
		peek, _ := buffered.Peek(512)
		contentType = http.DetectContentType(peek)
	}

	attachment, err := s.attachments.Upload(r.Context(), UploadInput{
		OwnerID:        ownerID,
		ConversationID: r.Header.Get(conversationIDHeader),
		Filename:       header.Filename,
		ContentType:    contentType,
	}, buffered)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AttachmentUploadResponse{
		URL:      attachment.Reference(),
		Filename: attachment.Filename,
		Message:  "Attachment uploaded successfully",
	})
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := ownerFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	detail, err := s.attachments.Get(r.Context(), id, ownerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AttachmentDetailResponse{
		ID:             detail.Attachment.ID,
		Filename:       detail.Attachment.Filename,
		BlobURL:        detail.BlobURL,
		ConversationID: detail.Attachment.ConversationID,
		ContentType:    detail.Attachment.ContentType,
		SizeBytes:      detail.Attachment.SizeBytes,
	})
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := ownerFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	if err := s.attachments.Delete(r.Context(), id, ownerID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AttachmentDeleteResponse{
		Message:      "Attachment deleted successfully",
		AttachmentID: id,
	})
}

func (s *Server) handleListConversationAttachments(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := ownerFromContext(r.Context())
	conversationID := strings.TrimSpace(r.PathValue("conversation_id"))

	attachments, err := s.attachments.ListConversation(r.Context(), ownerID, conversationID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.ConversationAttachmentsResponse{
		ConversationID: conversationID,
		Attachments:    make([]api.AttachmentSummary, 0, len(attachments)),
	}
	for _, attachment := range attachments {
		resp.Attachments = append(resp.Attachments, api.AttachmentSummary{
			ID:        attachment.ID,
			Filename:  attachment.Filename,
			CreatedAt: attachment.CreatedAt,
			URL:       attachment.Reference(),
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}
