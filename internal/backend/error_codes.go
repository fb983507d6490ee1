package backend

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidID       = 1004
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeAttachmentNotFound = 2003
	ErrCodeBlobNotFound       = 2005
	ErrCodeConflict           = 2102

	// Auth (3xxx)
	ErrCodeUnauthorized        = 3001
	ErrCodeForbidden           = 3002
	ErrCodeMissingIdentity     = 3004
	ErrCodeInvalidSignature    = 3005
	ErrCodeTooManyAuthFailures = 3006

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeNotImplemented = 4005
	ErrCodeBlobFailure    = 4006
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeAttachmentNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeTooManyAuthFailures
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
