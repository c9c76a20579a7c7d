package constants

// Content types
const (
	ContentTypeJSON   = "application/json"
	HeaderContentType = "Content-Type"
)

// Date formats
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
)

// Route parameter and query names
const (
	ParamSource = "source"
	QueryKind   = "kind"
	QueryFrom   = "from"
	QueryTo     = "to"
)

// Multipart upload limits
const (
	MaxUploadBytes = 32 << 20
	FormFieldFile  = "file"
)
