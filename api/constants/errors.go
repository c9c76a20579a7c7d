package constants

// User-facing error messages. Handlers wrap these in the standard error
// envelope; internal detail goes to the log, not the response.
const (
	ErrInvalidJSON        = "invalid json or missing required fields"
	ErrInvalidSource      = "unknown settlement source"
	ErrInvalidDate        = "invalid date, expected YYYY-MM-DD"
	ErrMissingFile        = "file is required"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrStorageUnavailable = "storage unavailable, try again"
	ErrReconcileConflict  = "operation posted but not fully closed; retry the close"
)
