package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/constants"
	"github.com/kozaktomas/emotion-stream/internal/frame"
	"github.com/kozaktomas/emotion-stream/internal/inference"
	"github.com/kozaktomas/emotion-stream/internal/pipeline"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// inferenceStatus maps a pipeline error to an HTTP status.
func inferenceStatus(err error) int {
	var detErr *inference.DetectionError
	var clsErr *inference.ClassificationError
	switch {
	case frame.IsDecodeError(err):
		return http.StatusBadRequest
	case errors.As(err, &detErr), errors.As(err, &clsErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// readUploadedImage decodes the image sent in the file_upload multipart field.
func readUploadedImage(r *http.Request, maxSide int) (image.Image, string, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, "", &frame.DecodeError{Reason: "failed to parse multipart form", Err: err}
	}
	file, header, err := r.FormFile(constants.UploadField)
	if err != nil {
		return nil, "", &frame.DecodeError{Reason: constants.UploadField + " is required", Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	img, err := frame.DecodeImage(data, maxSide)
	if err != nil {
		return nil, "", err
	}
	return img, header.Filename, nil
}

// modeFromConfig builds the pipeline mode for one WebSocket endpoint.
func modeFromConfig(cfg *config.Config, name string, mc config.ModeConfig, multiFace bool) pipeline.Mode {
	return pipeline.Mode{
		Name:         name,
		BatchSize:    mc.BatchSize,
		Padding:      mc.Padding,
		MultiFace:    multiFace,
		MaxImageSide: cfg.Inference.MaxImageSide,
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
