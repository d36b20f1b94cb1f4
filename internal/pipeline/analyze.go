package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"github.com/kozaktomas/emotion-stream/internal/frame"
	"github.com/kozaktomas/emotion-stream/internal/inference"
)

// FaceResult is the classification of one face in a bulk request.
type FaceResult struct {
	FaceID         int       `json:"face_id"`
	Box            []int     `json:"box"`
	Confidence     float64   `json:"confidence"`
	PredictedClass string    `json:"predicted_class"`
	BestProb       float64   `json:"best_prob"`
	Probs          []float64 `json:"probs"`
}

// AnalyzeResponse is the bulk result for one still image.
type AnalyzeResponse struct {
	FaceCount     int          `json:"face_count"`
	Faces         []FaceResult `json:"faces"`
	PredictorName string       `json:"predictor_name"`
}

// PredictResponse is the classification of a whole image without detection.
type PredictResponse struct {
	Probs          []float64 `json:"probs"`
	BestProb       float64   `json:"best_prob"`
	PredictedID    int       `json:"predicted_id"`
	PredictedClass string    `json:"predicted_class"`
	PredictorName  string    `json:"predictor_name"`
}

// Analyze detects every face in img and classifies each crop on its own, in
// detection order. There is no batching and no averaging across faces.
// Detections whose padded crop is empty are skipped and not counted.
func Analyze(ctx context.Context, det inference.Detector, cls inference.Classifier, img image.Image, padding int, predictorName string) (*AnalyzeResponse, error) {
	dets, err := det.Detect(ctx, img)
	if err != nil {
		return nil, inference.AsDetectionError(err)
	}

	resp := &AnalyzeResponse{
		Faces:         make([]FaceResult, 0, len(dets)),
		PredictorName: predictorName,
	}
	for _, d := range dets {
		crop, ok := frame.CropFace(img, d.Box, padding)
		if !ok {
			continue
		}
		pred, err := classifyOne(ctx, cls, crop.Image)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", len(resp.Faces), err)
		}
		resp.Faces = append(resp.Faces, FaceResult{
			FaceID:         len(resp.Faces),
			Box:            d.Box.Slice(),
			Confidence:     d.Confidence,
			PredictedClass: pred.Label.String(),
			BestProb:       pred.Confidence,
			Probs:          pred.Probs,
		})
	}
	resp.FaceCount = len(resp.Faces)
	return resp, nil
}

// Predict classifies the whole image as a single face.
func Predict(ctx context.Context, cls inference.Classifier, img image.Image, predictorName string) (*PredictResponse, error) {
	pred, err := classifyOne(ctx, cls, img)
	if err != nil {
		return nil, err
	}
	return &PredictResponse{
		Probs:          pred.Probs,
		BestProb:       pred.Confidence,
		PredictedID:    int(pred.Label),
		PredictedClass: pred.Label.String(),
		PredictorName:  predictorName,
	}, nil
}

func classifyOne(ctx context.Context, cls inference.Classifier, img image.Image) (emotion.Prediction, error) {
	dists, err := cls.ClassifyBatch(ctx, []image.Image{img})
	if err != nil {
		return emotion.Prediction{}, inference.AsClassificationError(err)
	}
	if len(dists) != 1 {
		return emotion.Prediction{}, &inference.ClassificationError{Err: fmt.Errorf("got %d distributions for one crop", len(dists))}
	}
	pred, err := emotion.Aggregate(dists)
	if err != nil {
		return emotion.Prediction{}, &inference.ClassificationError{Err: err}
	}
	return pred, nil
}
