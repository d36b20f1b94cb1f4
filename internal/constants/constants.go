// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// WebSocket session constants
const (
	// WriteWait is the time allowed to write a single reply to the peer
	WriteWait = 10 * time.Second

	// PongWait is how long a session waits for any frame or pong before giving up on the peer
	PongWait = 60 * time.Second

	// PingPeriod is how often keepalive pings are sent; must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// SocketBufferSize is the read and write buffer size of upgraded connections
	SocketBufferSize = 64 << 10
)

// Detection sidecar constants
const (
	// DetectorJPEGQuality is the quality of frames uploaded to the detection sidecar
	DetectorJPEGQuality = 90
)
