package inference

import (
	"net/http"

	"github.com/kozaktomas/emotion-stream/internal/config"
)

// Models is the detector/classifier pair owned by one session.
type Models struct {
	Detector   Detector
	Classifier Classifier
}

// Factory builds a fresh Models pair for each session.
type Factory interface {
	NewModels() Models
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() Models

// NewModels calls f.
func (f FactoryFunc) NewModels() Models { return f() }

// HTTPFactory builds sidecar-backed models from one shared, read-only model
// config. The http.Client and its connection pool are shared; the adapters are not.
type HTTPFactory struct {
	cfg    config.ModelConfig
	client *http.Client
	pool   *Pool
}

// NewHTTPFactory creates a factory. A nil pool leaves calls unbounded.
func NewHTTPFactory(cfg config.ModelConfig, client *http.Client, pool *Pool) *HTTPFactory {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFactory{cfg: cfg, client: client, pool: pool}
}

// NormalizationFrom extracts the classifier input settings from the model config.
func NormalizationFrom(cfg config.ModelConfig) Normalization {
	return Normalization{Size: cfg.InputSize, Mean: cfg.Mean, Std: cfg.Std}
}

// NewModels creates a detector and classifier for one session.
func (f *HTTPFactory) NewModels() Models {
	var det Detector = NewDetectorClient(f.cfg.DetectorURL, f.cfg.ConfThreshold, f.cfg.IoUThreshold, f.client)
	var cls Classifier = NewClassifierClient(f.cfg.ClassifierURL, f.cfg.Name, NormalizationFrom(f.cfg), f.client)
	if f.pool != nil {
		det = f.pool.Detector(det)
		cls = f.pool.Classifier(cls)
	}
	return Models{Detector: det, Classifier: cls}
}
