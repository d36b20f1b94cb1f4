// Package static embeds the browser demo client for the streaming endpoints.
package static

import "embed"

//go:embed all:dist/*
var distFS embed.FS

// Index returns the demo page.
func Index() ([]byte, error) {
	return distFS.ReadFile("dist/index.html")
}
