package handlers

import (
	"net/http"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/emotion"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Model  ModelInfo           `json:"model"`
	Labels []LabelInfo         `json:"labels"`
	Modes  map[string]ModeInfo `json:"modes"`
}

// ModelInfo describes the classifier behind the endpoints
type ModelInfo struct {
	Name      string `json:"name"`
	Device    string `json:"device"`
	InputSize int    `json:"input_size"`
}

// LabelInfo is one raw class and its coarse game emotion, if any
type LabelInfo struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Game *string `json:"game_emotion"`
}

// ModeInfo represents the batching parameters of one pipeline mode
type ModeInfo struct {
	BatchSize int `json:"batch_size,omitempty"`
	Padding   int `json:"padding"`
}

// Get returns the active configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	labels := make([]LabelInfo, 0, emotion.NumClasses)
	for _, l := range emotion.AllLabels() {
		info := LabelInfo{ID: int(l), Name: l.String()}
		if g := l.Game(); g != emotion.GameNone {
			s := string(g)
			info.Game = &s
		}
		labels = append(labels, info)
	}

	response := ConfigResponse{
		Model: ModelInfo{
			Name:      h.config.Model.Name,
			Device:    h.config.Model.Device,
			InputSize: h.config.Model.InputSize,
		},
		Labels: labels,
		Modes: map[string]ModeInfo{
			"game":    {BatchSize: h.config.Game.BatchSize, Padding: h.config.Game.Padding},
			"stream":  {BatchSize: h.config.Stream.BatchSize, Padding: h.config.Stream.Padding},
			"analyze": {Padding: h.config.Analyze.Padding},
		},
	}

	respondJSON(w, http.StatusOK, response)
}
