package transaction

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Func is the body of a transaction. Updates produced through ctx or tx are
// queued on the transaction.
type Func func(ctx context.Context, tx *Context) error

// Result describes a completed transaction.
type Result struct {
	Name          string
	Update        model.StateUpdate  // merged queue
	CommandsCount int                // number of queued updates
	ActionTypes   []model.ActionType // distinct action types, first-seen order
	Nested        bool               // merged into a parent instead of applied
	Aborted       bool               // rolled back by the callback

	// WaitForMeasurements asks the caller to wait for the measurement
	// tracker after applying Update.
	WaitForMeasurements bool
}

// Option configures a transaction.
type Option func(*Result)

// WaitForMeasurements makes the engine wait until every entity affected by
// the committed update has been re-measured before returning.
func WaitForMeasurements() Option {
	return func(r *Result) { r.WaitForMeasurements = true }
}

// Manager runs transactions and keeps the stack of active ones for
// inspection.
type Manager struct {
	logger *log.Logger

	mu      sync.Mutex
	emitter Emitter
	stack   []*Transaction
}

// NewManager creates a manager. The emitter can be set later with
// SetEmitter when the command handler is built after the manager.
func NewManager(emitter Emitter, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{emitter: emitter, logger: logger}
}

// SetEmitter sets the command dispatcher used by Context.Emit.
func (m *Manager) SetEmitter(e Emitter) {
	m.mu.Lock()
	m.emitter = e
	m.mu.Unlock()
}

// Transaction runs fn inside a new transaction nested in the one carried by
// ctx, if any. A nested transaction merges its queue into the parent on
// success. A root transaction returns the merged queue for the caller to
// apply. When fn fails or panics the transaction is rolled back and the error
// returned; the parent is unaffected.
func (m *Manager) Transaction(ctx context.Context, name string, fn Func, opts ...Option) (res Result, err error) {
	if fn == nil {
		return Result{}, errors.New(errors.ErrCodeTransaction, "callback required for transaction %q", name)
	}

	var parent *Transaction
	if outer, ok := FromContext(ctx); ok {
		parent = outer.tx
		if parent.Aborted() {
			return Result{}, rolledBack("begin nested transaction")
		}
	}

	tx := newTransaction(name, parent)
	m.mu.Lock()
	tc := &Context{tx: tx, emitter: m.emitter}
	m.stack = append(m.stack, tx)
	m.mu.Unlock()
	defer m.pop(tx)

	tc.ctx = withContext(ctx, tc)

	if err := m.run(tc, fn); err != nil {
		tx.Abort()
		m.logger.Debug("transaction rolled back", "name", name, "err", err)
		return Result{}, err
	}

	res = Result{Name: name, Nested: parent != nil}
	for _, opt := range opts {
		opt(&res)
	}
	if tx.Aborted() {
		res.Aborted = true
		return res, nil
	}

	queue := tx.Queue()
	if parent != nil {
		if err := parent.absorb(queue); err != nil {
			return Result{}, err
		}
	}

	updates := make([]model.StateUpdate, len(queue))
	for i, e := range queue {
		updates[i] = e.Update
		if e.ActionType != "" && !slices.Contains(res.ActionTypes, e.ActionType) {
			res.ActionTypes = append(res.ActionTypes, e.ActionType)
		}
	}
	res.Update = model.MergeUpdates(updates...)
	res.CommandsCount = len(queue)
	return res, nil
}

func (m *Manager) run(tc *Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "transaction %q panicked: %v", tc.tx.Name(), r)
		}
	}()
	if err := fn(tc.ctx, tc); err != nil {
		return fmt.Errorf("transaction %q: %w", tc.tx.Name(), err)
	}
	return nil
}

func (m *Manager) pop(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.stack, tx); i >= 0 {
		m.stack = slices.Delete(m.stack, i, i+1)
	}
}

// QueueUpdate appends update to the transaction carried by ctx.
func (m *Manager) QueueUpdate(ctx context.Context, update model.StateUpdate, actionType model.ActionType) error {
	tc, ok := FromContext(ctx)
	if !ok {
		return errors.New(errors.ErrCodeTransaction, "no active transaction")
	}
	return tc.tx.Enqueue(update, actionType)
}

// IsActive reports whether any transaction is running.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack) > 0
}

// Current returns the most recently started transaction that is still
// running, or nil.
func (m *Manager) Current() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// Depth returns the number of running transactions.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}
