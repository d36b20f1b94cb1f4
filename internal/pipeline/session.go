package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"github.com/kozaktomas/emotion-stream/internal/frame"
	"github.com/kozaktomas/emotion-stream/internal/inference"
)

// ErrSessionClosed is reported for frames processed after Close.
var ErrSessionClosed = errors.New("session closed")

// Mode selects how a session treats the detections of a frame.
type Mode struct {
	Name      string
	BatchSize int
	Padding   int
	// MultiFace crops every detection; otherwise only the most confident one is used.
	MultiFace bool
	// MaxImageSide bounds the width and height of decoded frames. Zero uses frame.DefaultMaxImageSide.
	MaxImageSide int
}

// Cycle is the outcome of processing one inbound frame.
type Cycle struct {
	Result Result
	// Frame is the decoded image, nil when decoding failed.
	Frame image.Image
	// Faces are the padded crop boxes accepted this frame, captioned with the
	// session's current overlay text.
	Faces []frame.Annotation
}

// Stats counts what a session did over its lifetime.
type Stats struct {
	Frames  int
	Batches int
	Dropped int // crops discarded by face-loss resets
	Errors  int
}

// Session is the pipeline state of one connection. It is driven by a single
// goroutine, one frame at a time, and never shared between connections.
type Session struct {
	ID string

	mode         Mode
	models       inference.Models
	acc          *BatchAccumulator
	agg          ResultAggregator
	frameTimeout time.Duration
	stats        Stats
	closed       bool
}

// NewSession creates the state for one connection. frameTimeout bounds the
// inference work of a single frame; zero leaves it unbounded.
func NewSession(id string, mode Mode, models inference.Models, frameTimeout time.Duration) (*Session, error) {
	if models.Detector == nil || models.Classifier == nil {
		return nil, errors.New("session needs both a detector and a classifier")
	}
	acc, err := NewBatchAccumulator(mode.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("mode %s: %w", mode.Name, err)
	}
	return &Session{
		ID:           id,
		mode:         mode,
		models:       models,
		acc:          acc,
		frameTimeout: frameTimeout,
	}, nil
}

// Mode returns the session's pipeline mode.
func (s *Session) Mode() Mode { return s.mode }

// Last returns the most recently published result.
func (s *Session) Last() Result { return s.agg.Last() }

// Stats returns the session counters.
func (s *Session) Stats() Stats { return s.stats }

// BufferState exposes the accumulator state.
func (s *Session) BufferState() BatchState { return s.acc.State() }

// Close releases the session's buffer and models. No inference runs afterwards.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stats.Dropped += s.acc.Reset()
	s.models = inference.Models{}
}

// Process runs one receive-to-publish cycle. It always returns a result: decode,
// detection and classification failures are reported in Result.Error and the
// session stays usable.
func (s *Session) Process(ctx context.Context, payload []byte) (cycle Cycle) {
	s.stats.Frames++
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[session %s] recovered from panic: %v", s.ID, r)
			s.stats.Errors++
			cycle = Cycle{Result: s.agg.Last().WithError(fmt.Errorf("internal error: %v", r))}
		}
	}()

	if s.closed {
		return Cycle{Result: NoFace().WithError(ErrSessionClosed)}
	}

	img, err := frame.Decode(payload, s.mode.MaxImageSide)
	if err != nil {
		s.stats.Errors++
		return Cycle{Result: NoFace().WithError(err)}
	}

	if s.frameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.frameTimeout)
		defer cancel()
	}

	cycle.Frame = img
	dets, err := s.models.Detector.Detect(ctx, img)
	if err != nil {
		err = inference.AsDetectionError(err)
		log.Printf("[session %s] %v", s.ID, err)
		s.stats.Errors++
		s.faceLost()
		cycle.Result = s.agg.Last().WithError(err)
		return cycle
	}

	crops := s.cropFaces(img, dets)
	if len(crops) == 0 {
		s.faceLost()
		cycle.Result = s.agg.Last()
		return cycle
	}

	var cycleErr error
	for _, c := range crops {
		batch, ready := s.acc.Add(c)
		if !ready {
			continue
		}
		if err := s.classify(ctx, batch); err != nil {
			log.Printf("[session %s] %v", s.ID, err)
			s.stats.Errors++
			cycleErr = err
		}
	}

	caption := s.agg.OverlayText()
	for _, c := range crops {
		cycle.Faces = append(cycle.Faces, frame.Annotation{Box: c.Box, Text: caption})
	}
	cycle.Result = s.agg.Last().WithError(cycleErr)
	return cycle
}

// cropFaces picks the detections this mode uses and crops them. Zero-area
// crops are skipped.
func (s *Session) cropFaces(img image.Image, dets []inference.Detection) []*frame.Crop {
	if !s.mode.MultiFace {
		best, ok := inference.Best(dets)
		if !ok {
			return nil
		}
		dets = []inference.Detection{best}
	}

	crops := make([]*frame.Crop, 0, len(dets))
	for _, d := range dets {
		if c, ok := frame.CropFace(img, d.Box, s.mode.Padding); ok {
			crops = append(crops, c)
		}
	}
	return crops
}

// classify runs one full batch and folds the averaged prediction into the
// published result. The batch is consumed whether or not it succeeds.
func (s *Session) classify(ctx context.Context, batch []*frame.Crop) error {
	s.stats.Batches++
	imgs := make([]image.Image, len(batch))
	for i, c := range batch {
		imgs[i] = c.Image
	}

	dists, err := s.models.Classifier.ClassifyBatch(ctx, imgs)
	if err != nil {
		return inference.AsClassificationError(err)
	}
	if len(dists) != len(batch) {
		return &inference.ClassificationError{Err: fmt.Errorf("got %d distributions for a batch of %d", len(dists), len(batch))}
	}

	pred, err := emotion.Aggregate(dists)
	if err != nil {
		return &inference.ClassificationError{Err: err}
	}
	s.agg.Fold(pred)
	return nil
}

// faceLost discards the partial batch as stale and clears the published result.
func (s *Session) faceLost() {
	s.stats.Dropped += s.acc.Reset()
	s.agg.FaceLost()
}
