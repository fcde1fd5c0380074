// Package prometheus implements the observability hooks with Prometheus
// counters and histograms.
package prometheus

import (
	"context"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/flowcore/pkg/observability"
)

const namespace = "flowcore"

// Hooks records engine, command and measurement events as Prometheus
// metrics. It implements every hook interface of package observability.
type Hooks struct {
	// Update pipeline
	updates         *prom.CounterVec   // By action and outcome (committed/dropped/error)
	updateDuration  *prom.HistogramVec // By action
	semaphoreWait   prom.Histogram
	transactions    *prom.CounterVec   // By name and status
	transactionSize *prom.HistogramVec // Queued commands by name

	// Commands
	commands        *prom.CounterVec   // By command and status
	commandDuration *prom.HistogramVec // By command

	// Measurements
	initDuration prom.Histogram
	batches      *prom.CounterVec // By strategy
	batchSize    *prom.HistogramVec
}

var (
	_ observability.EngineHooks      = (*Hooks)(nil)
	_ observability.CommandHooks     = (*Hooks)(nil)
	_ observability.MeasurementHooks = (*Hooks)(nil)
)

// New creates the metrics and registers them with reg. A nil reg uses
// prom.DefaultRegisterer.
func New(reg prom.Registerer) (*Hooks, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	h := &Hooks{
		updates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "updates_total",
			Help:      "Total number of state updates run through the middleware chain",
		}, []string{"action", "outcome"}),

		updateDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "update_duration_seconds",
			Help:      "Middleware chain duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"action"}),

		semaphoreWait: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "update_wait_seconds",
			Help:      "Time an update waited for the previous one to commit",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		}),

		transactions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transactions_total",
			Help:      "Total number of root transactions",
		}, []string{"name", "status"}),

		transactionSize: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transaction_commands",
			Help:      "Number of updates queued by a root transaction",
			Buckets:   []float64{1, 2, 5, 10, 50, 100, 500},
		}, []string{"name"}),

		commands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "emitted_total",
			Help:      "Total number of emitted commands",
		}, []string{"command", "status"}),

		commandDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command dispatch duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"command"}),

		initDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "measurement",
			Name:      "init_duration_seconds",
			Help:      "Time from start until the initial measurements were committed",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),

		batches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "measurement",
			Name:      "batches_total",
			Help:      "Total number of flushed measurement batches",
		}, []string{"strategy"}),

		batchSize: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "measurement",
			Name:      "batch_commands",
			Help:      "Number of commands per flushed measurement batch",
			Buckets:   []float64{1, 2, 5, 10, 50, 100},
		}, []string{"strategy"}),
	}

	for _, c := range []prom.Collector{
		h.updates, h.updateDuration, h.semaphoreWait, h.transactions, h.transactionSize,
		h.commands, h.commandDuration, h.initDuration, h.batches, h.batchSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Install registers h as the global engine, command and measurement hooks.
func (h *Hooks) Install() {
	observability.SetEngineHooks(h)
	observability.SetCommandHooks(h)
	observability.SetMeasurementHooks(h)
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// OnApplyUpdate implements observability.EngineHooks.
func (h *Hooks) OnApplyUpdate(_ context.Context, action string, d time.Duration, committed bool, err error) {
	outcome := "committed"
	switch {
	case err != nil:
		outcome = "error"
	case !committed:
		outcome = "dropped"
	}
	h.updates.WithLabelValues(action, outcome).Inc()
	h.updateDuration.WithLabelValues(action).Observe(d.Seconds())
}

// OnSemaphoreWait implements observability.EngineHooks.
func (h *Hooks) OnSemaphoreWait(_ context.Context, wait time.Duration) {
	h.semaphoreWait.Observe(wait.Seconds())
}

// OnTransaction implements observability.EngineHooks.
func (h *Hooks) OnTransaction(_ context.Context, name string, commands int, _ time.Duration, err error) {
	h.transactions.WithLabelValues(name, status(err)).Inc()
	if err == nil {
		h.transactionSize.WithLabelValues(name).Observe(float64(commands))
	}
}

// OnCommand implements observability.CommandHooks.
func (h *Hooks) OnCommand(_ context.Context, name string, d time.Duration, err error) {
	h.commands.WithLabelValues(name, status(err)).Inc()
	h.commandDuration.WithLabelValues(name).Observe(d.Seconds())
}

// OnInitComplete implements observability.MeasurementHooks.
func (h *Hooks) OnInitComplete(_ context.Context, d time.Duration) {
	h.initDuration.Observe(d.Seconds())
}

// OnBatchFlush implements observability.MeasurementHooks.
func (h *Hooks) OnBatchFlush(_ context.Context, strategy string, commands int) {
	h.batches.WithLabelValues(strategy).Inc()
	h.batchSize.WithLabelValues(strategy).Observe(float64(commands))
}
