// Package frame turns inbound frame payloads into raster images and extracts
// padded face crops from them.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// payloadSeparator ends the metadata prefix of a data URI ("data:image/jpeg;base64,").
const payloadSeparator = ','

// DefaultMaxImageSide is the limit used when a caller passes no positive maximum.
const DefaultMaxImageSide = 4096

// DecodeError reports a payload that could not be turned into an image.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
	}
	return "decode frame: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Decode parses a frame payload. The payload is either a raw image container
// (binary WebSocket messages) or base64 text, optionally with a data URI prefix
// that is discarded up to the first comma. Images wider or taller than maxSide
// pixels are rejected before their pixel data is decoded.
func Decode(payload []byte, maxSide int) (image.Image, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	if isImageContainer(payload) {
		return DecodeImage(payload, maxSide)
	}

	if idx := bytes.IndexByte(payload, payloadSeparator); idx >= 0 {
		payload = payload[idx+1:]
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64", Err: err}
	}
	return DecodeImage(raw, maxSide)
}

// DecodeImage decodes an image container (JPEG, PNG, GIF, BMP, WebP). The
// header is checked against maxSide first, so a small payload declaring a huge
// raster is refused without allocating it.
func DecodeImage(data []byte, maxSide int) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty image data"}
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxImageSide
	}
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unsupported image", Err: err}
	}
	if hdr.Width > maxSide || hdr.Height > maxSide {
		return nil, &DecodeError{Reason: fmt.Sprintf("image too large: %dx%d exceeds %d pixels per side", hdr.Width, hdr.Height, maxSide)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Reason: "unsupported image", Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("zero-dimension image %dx%d", b.Dx(), b.Dy())}
	}
	return img, nil
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(payload []byte) ([]byte, error) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return nil, errors.New("no data after prefix")
	}
	s = strings.TrimRight(s, "=")
	return base64.RawStdEncoding.DecodeString(s)
}

func isImageContainer(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
