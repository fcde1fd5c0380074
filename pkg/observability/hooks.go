// Package observability provides hooks for metrics and tracing.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about state updates, transactions, commands and
// measurements.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// The hooks only take strings and durations, so this package does not import
// the engine and can be imported by every layer. Package
// observability/prometheus provides a Prometheus backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    h := prometheus.New(prom.DefaultRegisterer)
//	    observability.SetEngineHooks(h)
//	    observability.SetCommandHooks(h)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	// ... run the middleware chain ...
//	observability.Engine().OnApplyUpdate(ctx, action, time.Since(start), committed, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from the state engine.
type EngineHooks interface {
	// OnApplyUpdate records one pass through the middleware chain.
	// committed is false when a middleware discarded the update.
	OnApplyUpdate(ctx context.Context, action string, duration time.Duration, committed bool, err error)

	// OnSemaphoreWait records how long an update waited for its turn.
	OnSemaphoreWait(ctx context.Context, wait time.Duration)

	// OnTransaction records a finished root transaction.
	OnTransaction(ctx context.Context, name string, commands int, duration time.Duration, err error)
}

// =============================================================================
// Command Hooks
// =============================================================================

// CommandHooks receives events from command dispatch.
type CommandHooks interface {
	// OnCommand records an emitted command.
	OnCommand(ctx context.Context, name string, duration time.Duration, err error)
}

// =============================================================================
// Measurement Hooks
// =============================================================================

// MeasurementHooks receives events from the measurement updaters.
type MeasurementHooks interface {
	// OnInitComplete records the end of the startup measurement phase.
	OnInitComplete(ctx context.Context, duration time.Duration)

	// OnBatchFlush records a flushed measurement batch.
	OnBatchFlush(ctx context.Context, strategy string, commands int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnApplyUpdate(context.Context, string, time.Duration, bool, error) {}
func (NoopEngineHooks) OnSemaphoreWait(context.Context, time.Duration)                    {}
func (NoopEngineHooks) OnTransaction(context.Context, string, int, time.Duration, error)  {}

// NoopCommandHooks is a no-op implementation of CommandHooks.
type NoopCommandHooks struct{}

func (NoopCommandHooks) OnCommand(context.Context, string, time.Duration, error) {}

// NoopMeasurementHooks is a no-op implementation of MeasurementHooks.
type NoopMeasurementHooks struct{}

func (NoopMeasurementHooks) OnInitComplete(context.Context, time.Duration) {}
func (NoopMeasurementHooks) OnBatchFlush(context.Context, string, int)     {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks      EngineHooks      = NoopEngineHooks{}
	commandHooks     CommandHooks     = NoopCommandHooks{}
	measurementHooks MeasurementHooks = NoopMeasurementHooks{}
	hooksMu          sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before any engine is built.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetCommandHooks registers custom command hooks.
func SetCommandHooks(h CommandHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		commandHooks = h
	}
}

// SetMeasurementHooks registers custom measurement hooks.
func SetMeasurementHooks(h MeasurementHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		measurementHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Command returns the registered command hooks.
func Command() CommandHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return commandHooks
}

// Measurement returns the registered measurement hooks.
func Measurement() MeasurementHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return measurementHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	commandHooks = NoopCommandHooks{}
	measurementHooks = NoopMeasurementHooks{}
}
