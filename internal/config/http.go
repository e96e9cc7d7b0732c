package config

const (
	HCType           = "Content-Type"
	HETag            = "ETag"
	HCacheControl    = "Cache-Control"
	HContentEncoding = "Content-Encoding"
	HAcceptEncoding  = "Accept-Encoding"
	HVary            = "Vary"

	CTypeHTML        = "text/html"
	CTypeText        = "text/plain"
	CTypeEventStream = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)
