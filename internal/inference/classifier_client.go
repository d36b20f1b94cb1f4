package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
)

// ClassifierClient runs emotion classification on the classification sidecar.
type ClassifierClient struct {
	baseURL string
	model   string
	norm    Normalization
	client  *http.Client
}

// NewClassifierClient creates a classifier for the given model and input normalization.
func NewClassifierClient(baseURL, model string, norm Normalization, client *http.Client) *ClassifierClient {
	if client == nil {
		client = &http.Client{}
	}
	return &ClassifierClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		norm:    norm,
		client:  client,
	}
}

// classifyRequest represents the request body for batch classification
type classifyRequest struct {
	Model  string      `json:"model"`
	Shape  [4]int      `json:"shape"` // [batch, channels, height, width]
	Inputs [][]float32 `json:"inputs"`
}

// classifyResponse carries either probabilities or raw logits per input.
type classifyResponse struct {
	Probs  [][]float64 `json:"probs"`
	Logits [][]float64 `json:"logits"`
}

// ClassifyBatch preprocesses every crop and classifies them as one batch.
func (c *ClassifierClient) ClassifyBatch(ctx context.Context, crops []image.Image) ([]emotion.Distribution, error) {
	if len(crops) == 0 {
		return nil, nil
	}

	inputs := make([][]float32, len(crops))
	for i, img := range crops {
		if img == nil || img.Bounds().Empty() {
			return nil, &ClassificationError{Err: fmt.Errorf("crop %d is empty", i)}
		}
		inputs[i] = Preprocess(img, c.norm)
	}

	reqBody, err := json.Marshal(classifyRequest{
		Model:  c.model,
		Shape:  [4]int{len(crops), 3, c.norm.Size, c.norm.Size},
		Inputs: inputs,
	})
	if err != nil {
		return nil, &ClassificationError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	body, err := doPost(ctx, c.client, c.baseURL+"/classify", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	var resp classifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ClassificationError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	dists, err := toDistributions(resp, len(crops))
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}
	return dists, nil
}

// Model returns the model name being used
func (c *ClassifierClient) Model() string {
	return c.model
}

func toDistributions(resp classifyResponse, want int) ([]emotion.Distribution, error) {
	switch {
	case resp.Probs != nil:
		if len(resp.Probs) != want {
			return nil, fmt.Errorf("got %d distributions for %d crops", len(resp.Probs), want)
		}
		dists := make([]emotion.Distribution, want)
		for i, p := range resp.Probs {
			d := emotion.Distribution(p)
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("crop %d: %w", i, err)
			}
			dists[i] = d
		}
		return dists, nil
	case resp.Logits != nil:
		if len(resp.Logits) != want {
			return nil, fmt.Errorf("got %d logit vectors for %d crops", len(resp.Logits), want)
		}
		dists := make([]emotion.Distribution, want)
		for i, l := range resp.Logits {
			d, err := emotion.Softmax(l)
			if err != nil {
				return nil, fmt.Errorf("crop %d: %w", i, err)
			}
			dists[i] = d
		}
		return dists, nil
	default:
		return nil, errors.New("response has neither probs nor logits")
	}
}
