package handlers

// Stable machine-readable error codes returned in ErrorResponse.Code.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeHashMismatch = "hash_mismatch"
	codeInternal     = "internal_error"
	codeUnavailable  = "service_unavailable"
)

// Exported codes used by the router's NoRoute/NoMethod fallbacks.
const (
	ErrCodeNotFound         = codeNotFound
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
