package backend

import (
	"errors"
	"io"
	"net/http"
	"time"

	"chatgate/internal/blobstore"
)

func (s *Server) handleDownloadBlob(w http.ResponseWriter, r *http.Request) {
	locator := r.PathValue("locator")
	if err := blobstore.ValidateLocator(locator); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidID))
		return
	}
	if err := s.signer.VerifyRequest(locator, r.URL.Query()); err != nil {
		reason := "invalid signature"
		if errors.Is(err, blobstore.ErrSignatureExpired) {
			reason = "signature expired"
		}
		s.writeErrorReq(w, r, http.StatusForbidden, forbiddenCode(errors.New(reason), ErrCodeInvalidSignature))
		return
	}

	rc, err := s.attachments.OpenBlob(r.Context(), locator)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Cache-Control", "private, no-store")
	if seeker, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", time.Time{}, seeker)
		return
	}
	w.Header().Set("Content-Type", fallbackContentType)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("blob download aborted", "locator", locator, "error", err)
	}
}
