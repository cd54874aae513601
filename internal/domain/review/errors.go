package review

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrParseUnsupported   = errors.New("no parser supports the uploaded file")
	ErrStorageConflict    = errors.New("storage conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrReviewIDRequired   = errors.New("review id is required")
	ErrRevisionIDRequired = errors.New("revision id is required")
	ErrActorRequired      = errors.New("actor is required")
	ErrFileNameRequired   = errors.New("file name is required")
	ErrEmptyUpload        = errors.New("uploaded file is empty")
	ErrMalformedUpload    = errors.New("uploaded file is malformed")
	ErrRevisionNotFound   = errors.New("revision not found")
)

// Kind names the failure class of err for logs and exit codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRevisionNotFound):
		return "not_found"
	case errors.Is(err, ErrParseUnsupported):
		return "parse_unsupported"
	case errors.Is(err, ErrMalformedUpload), errors.Is(err, ErrEmptyUpload):
		return "malformed_upload"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrActorRequired), errors.Is(err, ErrReviewIDRequired),
		errors.Is(err, ErrRevisionIDRequired), errors.Is(err, ErrFileNameRequired):
		return "invalid_input"
	default:
		return "internal"
	}
}
