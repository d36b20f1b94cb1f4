package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Web       WebConfig
	Model     ModelConfig
	Game      ModeConfig
	Stream    ModeConfig
	Analyze   ModeConfig
	Inference InferenceConfig
}

type WebConfig struct {
	Host          string
	Port          int
	MaxFrameBytes int64 // largest inbound WebSocket message accepted
}

// ModelConfig is shared, read-only, by the detector and classifier adapters of every session.
type ModelConfig struct {
	Name          string
	Device        string
	DetectorURL   string // detection sidecar, e.g. http://localhost:8001
	ClassifierURL string // classification sidecar, e.g. http://localhost:8002
	ConfThreshold float64
	IoUThreshold  float64
	InputSize     int        // square classifier input, in pixels
	Mean          [3]float64 // per-channel normalization
	Std           [3]float64
	Labels        []string
}

// ModeConfig holds the per-pipeline batching and cropping parameters.
type ModeConfig struct {
	BatchSize int // ignored by analyze, which never batches
	Padding   int
}

type InferenceConfig struct {
	Workers        int           // concurrent inference calls across all sessions
	FrameTimeout   time.Duration // 0 disables the per-frame deadline
	RequestTimeout time.Duration // HTTP client timeout for sidecar calls
	MaxImageSide   int           // frames and uploads larger than this on either side are refused
}

// defaults mirrors the layout of models.yaml.
type defaults struct {
	Model struct {
		Name      string   `yaml:"name"`
		Device    string   `yaml:"device"`
		InputSize int      `yaml:"input_size"`
		Labels    []string `yaml:"labels"`
		Normalize struct {
			Mean []float64 `yaml:"mean"`
			Std  []float64 `yaml:"std"`
		} `yaml:"normalize"`
	} `yaml:"model"`
	Detector struct {
		ConfThreshold float64 `yaml:"conf_threshold"`
		IoUThreshold  float64 `yaml:"iou_threshold"`
	} `yaml:"detector"`
	Modes struct {
		Game    modeDefaults `yaml:"game"`
		Stream  modeDefaults `yaml:"stream"`
		Analyze modeDefaults `yaml:"analyze"`
	} `yaml:"modes"`
	Inference struct {
		Workers        int    `yaml:"workers"`
		FrameTimeout   string `yaml:"frame_timeout"`
		RequestTimeout string `yaml:"request_timeout"`
		MaxImageSide   int    `yaml:"max_image_side"`
	} `yaml:"inference"`
}

type modeDefaults struct {
	BatchSize int `yaml:"batch_size"`
	Padding   int `yaml:"padding"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is like envInt but accepts zero (e.g. no crop padding).
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a float in [0, 1], falling back to the default otherwise.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration reads a non-negative duration such as "5s" or "250ms".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(modelsYAML, &d); err != nil {
		// Embedded file, so this only fails on a broken build.
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}
	if !slices.Equal(d.Model.Labels, emotion.RawNames()) {
		panic(fmt.Sprintf("models.yaml labels %v do not match the emotion label set %v", d.Model.Labels, emotion.RawNames()))
	}
	if len(d.Model.Normalize.Mean) != 3 || len(d.Model.Normalize.Std) != 3 {
		panic("models.yaml normalize.mean and normalize.std need exactly 3 channels")
	}
	return d
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic("invalid duration in models.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	return &Config{
		Web: WebConfig{
			Host:          envString("WEB_HOST", "0.0.0.0"),
			Port:          envInt("WEB_PORT", 5000),
			MaxFrameBytes: int64(envInt("MAX_FRAME_BYTES", 8<<20)),
		},
		Model: ModelConfig{
			Name:          envString("MODEL_NAME", d.Model.Name),
			Device:        envString("MODEL_DEVICE", d.Model.Device),
			DetectorURL:   os.Getenv("MODEL_DETECTOR_URL"),
			ClassifierURL: os.Getenv("MODEL_CLASSIFIER_URL"),
			ConfThreshold: envFloat("DETECT_CONF_THRESHOLD", d.Detector.ConfThreshold),
			IoUThreshold:  envFloat("DETECT_IOU_THRESHOLD", d.Detector.IoUThreshold),
			InputSize:     envInt("CLASSIFIER_INPUT_SIZE", d.Model.InputSize),
			Mean:          [3]float64(d.Model.Normalize.Mean),
			Std:           [3]float64(d.Model.Normalize.Std),
			Labels:        d.Model.Labels,
		},
		Game: ModeConfig{
			BatchSize: envInt("GAME_BATCH_SIZE", d.Modes.Game.BatchSize),
			Padding:   envNonNegativeInt("GAME_PADDING", d.Modes.Game.Padding),
		},
		Stream: ModeConfig{
			BatchSize: envInt("STREAM_BATCH_SIZE", d.Modes.Stream.BatchSize),
			Padding:   envNonNegativeInt("STREAM_PADDING", d.Modes.Stream.Padding),
		},
		Analyze: ModeConfig{
			Padding: envNonNegativeInt("ANALYZE_PADDING", d.Modes.Analyze.Padding),
		},
		Inference: InferenceConfig{
			Workers:        envInt("INFERENCE_WORKERS", d.Inference.Workers),
			FrameTimeout:   envDuration("FRAME_TIMEOUT", mustDuration(d.Inference.FrameTimeout)),
			RequestTimeout: envDuration("INFERENCE_REQUEST_TIMEOUT", mustDuration(d.Inference.RequestTimeout)),
			MaxImageSide:   envInt("MAX_IMAGE_SIDE", d.Inference.MaxImageSide),
		},
	}
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Model.DetectorURL == "" {
		return errors.New("MODEL_DETECTOR_URL environment variable is required")
	}
	if c.Model.ClassifierURL == "" {
		return errors.New("MODEL_CLASSIFIER_URL environment variable is required")
	}
	if c.Game.BatchSize < 1 || c.Stream.BatchSize < 1 {
		return fmt.Errorf("batch sizes must be positive (game=%d, stream=%d)", c.Game.BatchSize, c.Stream.BatchSize)
	}
	for i, s := range c.Model.Std {
		if s == 0 {
			return fmt.Errorf("normalization std for channel %d is zero", i)
		}
	}
	return nil
}
