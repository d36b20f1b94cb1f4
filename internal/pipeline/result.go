package pipeline

import (
	"fmt"
	"math"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
)

// overlayPlaceholder is drawn on streamed frames until a batch has been classified.
const overlayPlaceholder = "Initializing..."

// Result is the state published to the client after every frame.
type Result struct {
	FaceDetected bool
	Label        *emotion.Label
	Confidence   float64
	Error        string
}

// NoFace is the result published when no face is tracked.
func NoFace() Result {
	return Result{}
}

// WithError returns a copy of r carrying err's message.
func (r Result) WithError(err error) Result {
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// GameMessage is the outbound JSON for the low-latency game endpoint.
type GameMessage struct {
	FaceDetected bool    `json:"face_detected"`
	Emotion      *string `json:"emotion"`
	Confidence   float64 `json:"confidence"`
	RawLabel     *string `json:"raw_label"`
	Error        string  `json:"error,omitempty"`
}

// GameMessage converts r to the game wire format. Labels without a coarse
// game emotion report a null emotion but still carry raw_label.
func (r Result) GameMessage() GameMessage {
	msg := GameMessage{
		FaceDetected: r.FaceDetected,
		Confidence:   math.Round(r.Confidence*1000) / 1000,
		Error:        r.Error,
	}
	if r.Label != nil {
		raw := r.Label.String()
		msg.RawLabel = &raw
		if game := r.Label.Game(); game != emotion.GameNone {
			s := string(game)
			msg.Emotion = &s
		}
	}
	return msg
}

// ResultAggregator folds classified batches into the session's last known result.
type ResultAggregator struct {
	last Result
}

// Fold publishes a fresh prediction.
func (a *ResultAggregator) Fold(pred emotion.Prediction) {
	label := pred.Label
	a.last = Result{
		FaceDetected: true,
		Label:        &label,
		Confidence:   pred.Confidence,
	}
}

// FaceLost clears the published result. A frame without a usable face resets
// label and confidence immediately rather than keeping the previous label.
func (a *ResultAggregator) FaceLost() {
	a.last = NoFace()
}

// Last returns the current published result.
func (a *ResultAggregator) Last() Result {
	return a.last
}

// OverlayText is the caption drawn next to faces on streamed frames.
func (a *ResultAggregator) OverlayText() string {
	if a.last.Label == nil {
		return overlayPlaceholder
	}
	return fmt.Sprintf("%s (%.1f%%)", a.last.Label, a.last.Confidence*100)
}
