package inference

import (
	"context"
	"image"

	"github.com/kozaktomas/emotion-stream/internal/emotion"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of inference calls in flight across all sessions.
// Callers block until a slot is free.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with the given number of slots (at least one).
func NewPool(size int) *Pool {
	size = max(size, 1)
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn once a slot is free. It returns ctx.Err() if the context ends first.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Detector wraps d so every call goes through the pool.
func (p *Pool) Detector(d Detector) Detector {
	return &pooledDetector{pool: p, next: d}
}

// Classifier wraps c so every call goes through the pool.
func (p *Pool) Classifier(c Classifier) Classifier {
	return &pooledClassifier{pool: p, next: c}
}

type pooledDetector struct {
	pool *Pool
	next Detector
}

func (d *pooledDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var dets []Detection
	err := d.pool.Do(ctx, func() error {
		var err error
		dets, err = d.next.Detect(ctx, img)
		return err
	})
	if err != nil {
		return nil, AsDetectionError(err)
	}
	return dets, nil
}

type pooledClassifier struct {
	pool *Pool
	next Classifier
}

func (c *pooledClassifier) ClassifyBatch(ctx context.Context, crops []image.Image) ([]emotion.Distribution, error) {
	var dists []emotion.Distribution
	err := c.pool.Do(ctx, func() error {
		var err error
		dists, err = c.next.ClassifyBatch(ctx, crops)
		return err
	})
	if err != nil {
		return nil, AsClassificationError(err)
	}
	return dists, nil
}
