package updater

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/observability"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

// FlushFunc builds the commands for one pending batch and clears it.
type FlushFunc func() []model.Command

// BatchStrategy decides when pending measurement batches are turned into
// commands and how those commands reach the engine.
type BatchStrategy interface {
	// Schedule marks the batch identified by key as pending.
	Schedule(key string, flush FlushFunc)
	// Flush sends every pending batch now.
	Flush(ctx context.Context) error
	// Stop cancels pending timers without flushing.
	Stop()
}

// DefaultBatchDelay is the debounce used when a strategy has no delay.
const DefaultBatchDelay = 16 * time.Millisecond

type pendingBatch struct {
	timer clockwork.Timer
	flush FlushFunc
}

// DirectStrategy debounces each batch on its own and emits its commands
// directly.
type DirectStrategy struct {
	engine Engine
	delay  time.Duration
	clock  clockwork.Clock
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]*pendingBatch
}

// NewDirectStrategy creates a per-entity strategy. A nil clock uses the real
// clock; a nil logger uses the default logger.
func NewDirectStrategy(engine Engine, delay time.Duration, clock clockwork.Clock, logger *log.Logger) *DirectStrategy {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DirectStrategy{engine: engine, delay: delay, clock: clock, logger: logger, pending: make(map[string]*pendingBatch)}
}

// Schedule implements BatchStrategy.
func (s *DirectStrategy) Schedule(key string, flush FlushFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		p.flush = flush
		p.timer.Reset(s.delay)
		return
	}
	p := &pendingBatch{flush: flush}
	p.timer = s.clock.AfterFunc(s.delay, func() {
		if err := s.flushKey(context.Background(), key, p); err != nil {
			s.logger.Warn("measurement batch failed", "key", key, "err", err)
		}
	})
	s.pending[key] = p
}

// flushKey sends p if it is still the pending batch for key.
func (s *DirectStrategy) flushKey(ctx context.Context, key string, p *pendingBatch) error {
	s.mu.Lock()
	if s.pending[key] != p {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, key)
	p.timer.Stop()
	s.mu.Unlock()

	cmds := p.flush()
	observability.Measurement().OnBatchFlush(ctx, "direct", len(cmds))
	for _, cmd := range cmds {
		if err := s.engine.Emit(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements BatchStrategy.
func (s *DirectStrategy) Flush(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.pending))
	batches := make([]*pendingBatch, 0, len(s.pending))
	for k, p := range s.pending {
		keys = append(keys, k)
		batches = append(batches, p)
	}
	s.mu.Unlock()

	for i, k := range keys {
		if err := s.flushKey(ctx, k, batches[i]); err != nil {
			return err
		}
	}
	return nil
}

// Stop implements BatchStrategy.
func (s *DirectStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, k)
	}
}

// VirtualizedStrategy debounces all batches together and sends them as one
// transaction, so a burst of measurements across many entities commits as a
// single state update.
type VirtualizedStrategy struct {
	engine Engine
	delay  time.Duration
	clock  clockwork.Clock
	logger *log.Logger

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     int
	order   []string
	pending map[string]FlushFunc
}

// NewVirtualizedStrategy creates a global strategy.
func NewVirtualizedStrategy(engine Engine, delay time.Duration, clock clockwork.Clock, logger *log.Logger) *VirtualizedStrategy {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &VirtualizedStrategy{engine: engine, delay: delay, clock: clock, logger: logger, pending: make(map[string]FlushFunc)}
}

// Schedule implements BatchStrategy.
func (s *VirtualizedStrategy) Schedule(key string, flush FlushFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		s.order = append(s.order, key)
	}
	s.pending[key] = flush

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Warn("virtualized measurement batch failed", "err", err)
		}
	})
}

// Flush implements BatchStrategy.
func (s *VirtualizedStrategy) Flush(ctx context.Context) error {
	s.mu.Lock()
	order, pending := s.order, s.pending
	s.order, s.pending = nil, make(map[string]FlushFunc)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	var cmds []model.Command
	for _, k := range order {
		cmds = append(cmds, pending[k]()...)
	}
	if len(cmds) == 0 {
		return nil
	}
	observability.Measurement().OnBatchFlush(ctx, "virtualized", len(cmds))
	_, err := s.engine.Transaction(ctx, "virtualizedMeasurements", func(_ context.Context, tx *transaction.Context) error {
		for _, cmd := range cmds {
			if err := tx.Emit(cmd); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// Stop implements BatchStrategy.
func (s *VirtualizedStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.order, s.pending = nil, make(map[string]FlushFunc)
}
