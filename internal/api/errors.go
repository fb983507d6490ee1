package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBodyBytes = 64 * 1024

// APIError is a structured error returned by the backend or the gateway.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	Detail    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	if e.Code != "" && msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg != "" {
		return msg
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// decodeError reads either envelope shape from a failed response.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope struct {
		Error     string `json:"error"`
		Code      string `json:"code"`
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == "" {
		apiErr.Message = resp.Status
		return apiErr
	}

	apiErr.Code = envelope.Code
	apiErr.ErrorCode = envelope.ErrorCode
	apiErr.Message = envelope.Error
	apiErr.Detail = envelope.Message
	return apiErr
}
