package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/inference"
	"github.com/kozaktomas/emotion-stream/internal/pipeline"
)

// EmotionHandler handles the bulk still-image endpoints.
type EmotionHandler struct {
	config  *config.Config
	factory inference.Factory
}

// NewEmotionHandler creates a new emotion handler.
func NewEmotionHandler(cfg *config.Config, factory inference.Factory) *EmotionHandler {
	return &EmotionHandler{
		config:  cfg,
		factory: factory,
	}
}

// DetectResponse lists detections as [x1, y1, x2, y2, confidence] tuples.
type DetectResponse struct {
	Results [][5]float64 `json:"results"`
}

// Analyze detects every face in the upload and classifies each one independently.
func (h *EmotionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	img, name, err := readUploadedImage(r, h.config.Inference.MaxImageSide)
	if err != nil {
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	models := h.factory.NewModels()
	resp, err := pipeline.Analyze(r.Context(), models.Detector, models.Classifier, img, h.config.Analyze.Padding, h.config.Model.Name)
	if err != nil {
		log.Printf("analyze %s: %v", sanitizeForLog(name), err)
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Predict classifies the whole upload as a single face.
func (h *EmotionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	img, name, err := readUploadedImage(r, h.config.Inference.MaxImageSide)
	if err != nil {
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	resp, err := pipeline.Predict(r.Context(), h.factory.NewModels().Classifier, img, h.config.Model.Name)
	if err != nil {
		log.Printf("predict %s: %v", sanitizeForLog(name), err)
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Detect returns the face boxes found in the upload without classifying them.
func (h *EmotionHandler) Detect(w http.ResponseWriter, r *http.Request) {
	img, name, err := readUploadedImage(r, h.config.Inference.MaxImageSide)
	if err != nil {
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	dets, err := h.factory.NewModels().Detector.Detect(r.Context(), img)
	if err != nil {
		err = inference.AsDetectionError(err)
		log.Printf("detect %s: %v", sanitizeForLog(name), err)
		respondError(w, inferenceStatus(err), err.Error())
		return
	}

	resp := DetectResponse{Results: make([][5]float64, 0, len(dets))}
	for _, d := range dets {
		resp.Results = append(resp.Results, [5]float64{
			float64(d.Box.X1), float64(d.Box.Y1), float64(d.Box.X2), float64(d.Box.Y2), d.Confidence,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
