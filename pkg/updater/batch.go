package updater

import (
	"context"
	"sync"
)

// BatchInitializer collects changes until its detector is stable, then
// hands them to onInit exactly once.
type BatchInitializer[K comparable, V any] struct {
	detector *StabilityDetector
	onInit   func(map[K]V)

	mu       sync.Mutex
	data     map[K]V
	closed   bool
	finished bool
	once     sync.Once
}

// NewBatchInitializer creates an initializer that waits on detector.
func NewBatchInitializer[K comparable, V any](detector *StabilityDetector, onInit func(map[K]V)) *BatchInitializer[K, V] {
	return &BatchInitializer[K, V]{detector: detector, onInit: onInit, data: make(map[K]V)}
}

// BatchChange records v under k and restarts the quiet period. It reports
// false once the batch is being handed over.
func (b *BatchInitializer[K, V]) BatchChange(k K, v V) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.data[k] = v
	b.mu.Unlock()
	b.detector.Notify()
	return true
}

// WaitForFinish waits for stability and then runs onInit with everything
// collected. Concurrent and repeated calls run onInit once.
func (b *BatchInitializer[K, V]) WaitForFinish(ctx context.Context) error {
	if err := b.detector.Wait(ctx); err != nil {
		return err
	}
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		data := b.data
		b.data = nil
		b.mu.Unlock()
		if b.onInit != nil {
			b.onInit(data)
		}
		b.mu.Lock()
		b.finished = true
		b.mu.Unlock()
	})
	return nil
}

// Finished reports whether onInit has returned.
func (b *BatchInitializer[K, V]) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}
