package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis not found")
	// ErrInvalidInput covers bad analysis types, empty questions and out-of-range ratings.
	ErrInvalidInput = errors.New("invalid analysis request")
	// ErrDocumentNotReady means the document has no extracted text to analyze.
	ErrDocumentNotReady = errors.New("document processing not completed")
	// ErrMalformedResponse means the model reply did not parse or lacked a required field.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrDuplicateRequest is returned by repos when (user, request id) already exists.
	ErrDuplicateRequest = errors.New("duplicate request id")
	// ErrRequestIDReused means a request id already names an analysis of another document or type.
	ErrRequestIDReused = errors.New("request id already used for a different analysis")
)

// Failure codes persisted on failed analyses.
const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMUnavailable    = "LLM_UNAVAILABLE"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)
