package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"github.com/kozaktomas/emotion-stream/internal/inference"
)

// testConfig creates a config with the default mode parameters for testing
func testConfig() *config.Config {
	return &config.Config{
		Web: config.WebConfig{MaxFrameBytes: 4 << 20},
		Model: config.ModelConfig{
			Name:      "ResNet18",
			Device:    "cpu",
			InputSize: 48,
		},
		Game:      config.ModeConfig{BatchSize: 3, Padding: 30},
		Stream:    config.ModeConfig{BatchSize: 5, Padding: 50},
		Analyze:   config.ModeConfig{Padding: 0},
		Inference: config.InferenceConfig{FrameTimeout: 5 * time.Second},
	}
}

// stubDetector returns a fixed detection list. It is shared with server goroutines.
type stubDetector struct {
	mu    sync.Mutex
	dets  []inference.Detection
	err   error
	delay time.Duration
	calls int
}

func (d *stubDetector) set(dets []inference.Detection, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dets, d.err = dets, err
}

func (d *stubDetector) Detect(_ context.Context, _ image.Image) ([]inference.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	time.Sleep(d.delay)
	return d.dets, d.err
}

func (d *stubDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// stubClassifier answers every crop with labels[i % len(labels)], i counting all crops seen.
type stubClassifier struct {
	mu         sync.Mutex
	labels     []emotion.Label
	err        error
	batchSizes []int
	seen       int
}

func (c *stubClassifier) ClassifyBatch(_ context.Context, crops []image.Image) ([]emotion.Distribution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchSizes = append(c.batchSizes, len(crops))
	if c.err != nil {
		return nil, c.err
	}
	out := make([]emotion.Distribution, len(crops))
	for i := range crops {
		label := emotion.Happy
		if len(c.labels) > 0 {
			label = c.labels[c.seen%len(c.labels)]
		}
		out[i] = peakedDistribution(label)
		c.seen++
	}
	return out, nil
}

func (c *stubClassifier) batches() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.batchSizes...)
}

// peakedDistribution puts 0.4 on label and 0.1 on every other class
func peakedDistribution(label emotion.Label) emotion.Distribution {
	d := make(emotion.Distribution, emotion.NumClasses)
	for i := range d {
		d[i] = 0.1
	}
	d[label] = 0.4
	return d
}

// stubFactory hands out the same stub pair to every caller and counts sessions
type stubFactory struct {
	mu       sync.Mutex
	det      *stubDetector
	cls      *stubClassifier
	sessions int
}

func newStubFactory() *stubFactory {
	return &stubFactory{det: &stubDetector{}, cls: &stubClassifier{}}
}

func (f *stubFactory) NewModels() inference.Models {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return inference.Models{Detector: f.det, Classifier: f.cls}
}

func (f *stubFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// testPNG encodes a solid image as PNG
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart request with data in the given field
func uploadRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile(field, "faces.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
