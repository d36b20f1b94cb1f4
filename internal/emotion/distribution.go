package emotion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Distribution is a probability vector over the fixed label set.
type Distribution []float64

// Prediction is the outcome of aggregating one or more distributions.
type Prediction struct {
	Label      Label
	Confidence float64
	Probs      Distribution
}

// ErrEmptyBatch is returned when there is nothing to aggregate.
var ErrEmptyBatch = errors.New("no distributions to aggregate")

// sumTolerance allows for sidecars that round their probabilities.
const sumTolerance = 1e-3

// Validate checks the vector length, that every value is a probability and
// that the values sum to 1.
func (d Distribution) Validate() error {
	if len(d) != NumClasses {
		return fmt.Errorf("distribution has %d values, want %d", len(d), NumClasses)
	}
	for i, p := range d {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("distribution value %d out of range: %v", i, p)
		}
	}
	if sum := floats.Sum(d); math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("distribution sums to %v, want 1", sum)
	}
	return nil
}

// Softmax converts raw logits into a Distribution.
func Softmax(logits []float64) (Distribution, error) {
	if len(logits) != NumClasses {
		return nil, fmt.Errorf("got %d logits, want %d", len(logits), NumClasses)
	}
	// Shift by the max for numerical stability.
	shift := floats.Max(logits)
	out := make(Distribution, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - shift)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out, nil
}

// Mean averages distributions element-wise.
func Mean(dists []Distribution) (Distribution, error) {
	if len(dists) == 0 {
		return nil, ErrEmptyBatch
	}
	sum := make(Distribution, NumClasses)
	for i, d := range dists {
		if len(d) != NumClasses {
			return nil, fmt.Errorf("distribution %d has %d values, want %d", i, len(d), NumClasses)
		}
		floats.Add(sum, d)
	}
	floats.Scale(1/float64(len(dists)), sum)
	return sum, nil
}

// ArgMax returns the index of the largest value. Ties resolve to the lowest index.
func ArgMax(d Distribution) Label {
	return Label(floats.MaxIdx(d))
}

// Aggregate averages a batch and picks the most probable label.
func Aggregate(dists []Distribution) (Prediction, error) {
	mean, err := Mean(dists)
	if err != nil {
		return Prediction{}, err
	}
	label := ArgMax(mean)
	return Prediction{
		Label:      label,
		Confidence: mean[label],
		Probs:      mean,
	}, nil
}
