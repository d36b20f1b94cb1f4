// Package pipeline implements the per-connection frame pipeline: detection,
// cropping, micro-batching, classification and publishing of the latest result.
package pipeline

import (
	"fmt"

	"github.com/kozaktomas/emotion-stream/internal/frame"
)

// BatchState is the accumulator's position in its fill cycle.
type BatchState int

const (
	StateEmpty BatchState = iota
	StateFilling
	// StateReady is transient: Add hands the full batch back and clears the buffer
	// in the same call, so State never reports it.
	StateReady
)

func (s BatchState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFilling:
		return "filling"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
}

// BatchAccumulator buffers crops for one session until a batch is full.
// It is owned by a single session and is not safe for concurrent use.
type BatchAccumulator struct {
	capacity int
	items    []*frame.Crop
}

// NewBatchAccumulator creates an accumulator that fires every capacity crops.
func NewBatchAccumulator(capacity int) (*BatchAccumulator, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("batch capacity must be at least 1, got %d", capacity)
	}
	return &BatchAccumulator{
		capacity: capacity,
		items:    make([]*frame.Crop, 0, capacity),
	}, nil
}

// Add appends a crop. When the buffer reaches capacity it returns the batch in
// arrival order with ready set, and the accumulator is empty again.
func (a *BatchAccumulator) Add(c *frame.Crop) (batch []*frame.Crop, ready bool) {
	a.items = append(a.items, c)
	if len(a.items) < a.capacity {
		return nil, false
	}
	batch = a.items
	a.items = make([]*frame.Crop, 0, a.capacity)
	return batch, true
}

// Reset drops any partial batch without classifying it and returns how many
// crops were discarded.
func (a *BatchAccumulator) Reset() int {
	n := len(a.items)
	clear(a.items)
	a.items = a.items[:0]
	return n
}

// State reports whether the buffer is empty or partially filled.
func (a *BatchAccumulator) State() BatchState {
	if len(a.items) == 0 {
		return StateEmpty
	}
	return StateFilling
}

// Len returns the number of buffered crops.
func (a *BatchAccumulator) Len() int { return len(a.items) }

// Capacity returns the batch size.
func (a *BatchAccumulator) Capacity() int { return a.capacity }
