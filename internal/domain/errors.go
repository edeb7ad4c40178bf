package domain

import "errors"

// Error codes
const (
	ErrCodeInvalidRepositoryURL = "INVALID_REPOSITORY_URL"
	ErrCodeRepositoryNotFound   = "REPOSITORY_NOT_FOUND"
	ErrCodeBranchNotFound       = "BRANCH_NOT_FOUND"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeNoTokenConfigured    = "NO_TOKEN_CONFIGURED"
	ErrCodeUpstream             = "UPSTREAM_ERROR"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Domain errors
var (
	ErrInvalidRepositoryURL = errors.New("invalid repository url")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrBranchNotFound       = errors.New("branch not found")
	ErrRateLimited          = errors.New("rate limited by upstream, retry later")
	ErrNoTokenConfigured    = errors.New("no api token configured for user")
	ErrNoSystemKey          = errors.New("system api key is not configured")
	ErrUpstream             = errors.New("upstream service failure")
	ErrInvalidRequest       = errors.New("invalid request")
)

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapErrorToCode maps domain error to API error code
func MapErrorToCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRepositoryURL):
		return ErrCodeInvalidRepositoryURL
	case errors.Is(err, ErrRepositoryNotFound):
		return ErrCodeRepositoryNotFound
	case errors.Is(err, ErrBranchNotFound):
		return ErrCodeBranchNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	case errors.Is(err, ErrNoTokenConfigured):
		return ErrCodeNoTokenConfigured
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrNoSystemKey):
		return ErrCodeUpstream
	case errors.Is(err, ErrInvalidRequest):
		return ErrCodeInvalidRequest
	default:
		return ErrCodeInternalError
	}
}
