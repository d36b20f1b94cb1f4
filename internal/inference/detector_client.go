package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/emotion-stream/internal/constants"
	"github.com/kozaktomas/emotion-stream/internal/frame"
)

// DetectorClient runs face detection on the detection sidecar.
type DetectorClient struct {
	baseURL       string
	confThreshold float64
	iouThreshold  float64
	client        *http.Client
}

// NewDetectorClient creates a detector bound to fixed thresholds.
func NewDetectorClient(baseURL string, confThreshold, iouThreshold float64, client *http.Client) *DetectorClient {
	if client == nil {
		client = &http.Client{}
	}
	return &DetectorClient{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		confThreshold: confThreshold,
		iouThreshold:  iouThreshold,
		client:        client,
	}
}

// detectResponse represents the response from the detection sidecar
type detectResponse struct {
	Boxes []struct {
		Box        []float64 `json:"box"` // [x1, y1, x2, y2] in pixels
		Confidence float64   `json:"confidence"`
	} `json:"boxes"`
}

// Detect sends img to the sidecar and returns every face above the confidence threshold.
func (c *DetectorClient) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	data, err := frame.EncodeJPEG(img, constants.DetectorJPEGQuality)
	if err != nil {
		return nil, &DetectionError{Err: err}
	}

	body, err := c.postMultipartImage(ctx, "/detect", data)
	if err != nil {
		return nil, &DetectionError{Err: err}
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DetectionError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	b := img.Bounds()
	dets := make([]Detection, 0, len(resp.Boxes))
	for i, raw := range resp.Boxes {
		if len(raw.Box) != 4 {
			return nil, &DetectionError{Err: fmt.Errorf("box %d has %d coordinates, want 4", i, len(raw.Box))}
		}
		if math.IsNaN(raw.Confidence) {
			return nil, &DetectionError{Err: fmt.Errorf("box %d has NaN confidence", i)}
		}
		// Coordinates truncate toward zero.
		box := frame.Box{
			X1: int(raw.Box[0]),
			Y1: int(raw.Box[1]),
			X2: int(raw.Box[2]),
			Y2: int(raw.Box[3]),
		}
		dets = append(dets, Detection{
			Box:        frame.ClampBox(box, b.Dx(), b.Dy()),
			Confidence: raw.Confidence,
		})
	}
	return dets, nil
}

// postMultipartImage posts the encoded frame plus the detection thresholds.
func (c *DetectorClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	fields := map[string]float64{"conf": c.confThreshold, "iou": c.iouThreshold}
	for name, v := range fields {
		if err := writer.WriteField(name, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return doPost(ctx, c.client, c.baseURL+endpoint, writer.FormDataContentType(), &buf)
}

// doPost sends a request to a sidecar and returns the body of a 200 response.
func doPost(ctx context.Context, client *http.Client, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if len(respBody) == 0 {
		return nil, errors.New("empty response body")
	}

	return respBody, nil
}
