package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"github.com/kozaktomas/emotion-stream/internal/frame"
	"github.com/kozaktomas/emotion-stream/internal/inference"
)

type fixedDetector struct{ dets []inference.Detection }

func (d fixedDetector) Detect(context.Context, image.Image) ([]inference.Detection, error) {
	return d.dets, nil
}

type fixedClassifier struct{ label emotion.Label }

func (c fixedClassifier) ClassifyBatch(_ context.Context, crops []image.Image) ([]emotion.Distribution, error) {
	out := make([]emotion.Distribution, len(crops))
	for i := range out {
		d := make(emotion.Distribution, emotion.NumClasses)
		d[c.label] = 1
		out[i] = d
	}
	return out, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Web:       config.WebConfig{Host: "127.0.0.1", Port: 0, MaxFrameBytes: 1 << 20},
		Model:     config.ModelConfig{Name: "ResNet18", Device: "cpu", InputSize: 48},
		Game:      config.ModeConfig{BatchSize: 1, Padding: 30},
		Stream:    config.ModeConfig{BatchSize: 1, Padding: 50},
		Inference: config.InferenceConfig{FrameTimeout: 5 * time.Second, RequestTimeout: 5 * time.Second},
	}
	factory := inference.FactoryFunc(func() inference.Models {
		return inference.Models{
			Detector:   fixedDetector{dets: []inference.Detection{{Box: frame.Box{X1: 10, Y1: 10, X2: 30, Y2: 30}, Confidence: 0.9}}},
			Classifier: fixedClassifier{label: emotion.Sad},
		}
	})

	srv := httptest.NewServer(NewServer(cfg, factory).Router())
	t.Cleanup(srv.Close)
	return srv
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := range 40 {
		for x := range 40 {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected security headers on API routes, got %q", got)
	}
}

func TestServer_DemoPage(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !strings.Contains(string(body), "game-ws") {
		t.Error("expected the demo page to reference the game endpoint")
	}
}

func TestServer_Analyze(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file_upload", "face.png")
	part.Write(pngBytes(t))
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/v1/emotion_classification/analyze", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST analyze: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var result struct {
		FaceCount int `json:"face_count"`
		Faces     []struct {
			PredictedClass string `json:"predicted_class"`
		} `json:"faces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.FaceCount != 1 || result.Faces[0].PredictedClass != "Sad" {
		t.Errorf("expected one Sad face, got %+v", result)
	}
}

func TestServer_WebSocketThroughMiddleware(t *testing.T) {
	srv := newTestServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, path := range []string{"/game-ws", "/api/v1/emotion_classification/game-ws"} {
		t.Run(path, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(base+path, nil)
			if err != nil {
				t.Fatalf("failed to dial: %v", err)
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))

			if err := conn.WriteMessage(websocket.BinaryMessage, pngBytes(t)); err != nil {
				t.Fatalf("failed to write frame: %v", err)
			}
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("failed to read reply: %v", err)
			}
			if msg["emotion"] != "sad" || msg["confidence"] != float64(1) {
				t.Errorf("expected sad with confidence 1, got %v", msg)
			}
		})
	}
}

func TestServer_StreamEndpoint(t *testing.T) {
	srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws-client", nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	if err := conn.WriteMessage(websocket.BinaryMessage, pngBytes(t)); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	if kind != websocket.BinaryMessage || len(data) == 0 {
		t.Errorf("expected a binary frame, got type %d with %d bytes", kind, len(data))
	}
}
