// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// UploadField is the multipart field carrying the image on the bulk endpoints
	UploadField = "file_upload"
)

// Analyze command constants
const (
	// DefaultConcurrency is the default number of images analyzed in parallel
	DefaultConcurrency = 4
)
