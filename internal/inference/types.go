// Package inference defines the face detector and emotion classifier
// capabilities used by the pipeline, plus HTTP adapters that reach the model
// sidecars and a bounded pool that serializes access to them.
package inference

import (
	"context"
	"errors"
	"image"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"github.com/kozaktomas/emotion-stream/internal/frame"
)

// Detection is one located face.
type Detection struct {
	Box        frame.Box `json:"box"`
	Confidence float64   `json:"confidence"`
}

// Detector locates faces. Thresholds are fixed when the detector is built.
// It returns either the complete, possibly empty, list or an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Classifier returns one distribution per crop, in input order.
type Classifier interface {
	ClassifyBatch(ctx context.Context, crops []image.Image) ([]emotion.Distribution, error)
}

// DetectionError wraps a detector failure.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string { return "face detection failed: " + e.Err.Error() }
func (e *DetectionError) Unwrap() error { return e.Err }

// ClassificationError wraps a classifier failure.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string { return "emotion classification failed: " + e.Err.Error() }
func (e *ClassificationError) Unwrap() error { return e.Err }

// AsDetectionError wraps err in a DetectionError unless it already is one.
func AsDetectionError(err error) error {
	if err == nil {
		return nil
	}
	var de *DetectionError
	if errors.As(err, &de) {
		return err
	}
	return &DetectionError{Err: err}
}

// AsClassificationError wraps err in a ClassificationError unless it already is one.
func AsClassificationError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return err
	}
	return &ClassificationError{Err: err}
}

// Best returns the highest-confidence detection. The first one wins ties.
func Best(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}
