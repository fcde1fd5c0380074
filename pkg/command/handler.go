// Package command dispatches named commands to registered callbacks.
//
// Commands are typed structs implementing [model.Command]. The built-in
// vocabulary (selection, nodes, edges, ports, labels, viewport, clipboard)
// is registered by [RegisterBuiltins]; registering a callback under a new
// name is the extension point for custom commands.
//
// # Dispatch
//
// [Handler.Emit] checks the context for an active transaction. Inside a
// transaction the command is forwarded to the transaction handle, so every
// update the callbacks produce is queued. Outside a transaction the
// callbacks registered for the command's name run concurrently and Emit
// returns once all of them have finished.
package command

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

// Callback handles one command.
type Callback func(ctx context.Context, cmd model.Command) error

type registration struct {
	id int
	cb Callback
}

// Handler is a registry of command callbacks. It is safe for concurrent use.
type Handler struct {
	logger *log.Logger

	mu        sync.RWMutex
	callbacks map[string][]registration
	nextID    int
}

// NewHandler creates an empty handler.
func NewHandler(logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{logger: logger, callbacks: make(map[string][]registration)}
}

// Register adds cb for commands called name. Callbacks for one name are
// started in registration order and run concurrently. The same callback may
// be registered more than once. The returned function removes this
// registration and is safe to call repeatedly.
func (h *Handler) Register(name string, cb Callback) (unregister func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.callbacks[name] = append(h.callbacks[name], registration{id: id, cb: cb})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.callbacks[name] = slices.DeleteFunc(h.callbacks[name], func(r registration) bool { return r.id == id })
			if len(h.callbacks[name]) == 0 {
				delete(h.callbacks, name)
			}
		})
	}
}

// Names returns the command names that have at least one callback, sorted.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.callbacks))
	for name := range h.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Emit dispatches cmd. Inside a live transaction the command is queued on
// it; otherwise the callbacks run immediately.
func (h *Handler) Emit(ctx context.Context, cmd model.Command) error {
	if tx, ok := transaction.FromContext(ctx); ok && !tx.Aborted() {
		return tx.Emit(cmd)
	}
	return h.EmitInternal(ctx, cmd)
}

// EmitInternal runs every callback registered for cmd concurrently and
// returns the first error. Commands without callbacks are ignored.
func (h *Handler) EmitInternal(ctx context.Context, cmd model.Command) error {
	name := cmd.CommandName()

	h.mu.RLock()
	regs := slices.Clone(h.callbacks[name])
	h.mu.RUnlock()

	if len(regs) == 0 {
		h.logger.Debug("no callbacks for command", "command", name)
		return nil
	}
	if len(regs) == 1 {
		return regs[0].cb(ctx, cmd)
	}

	var g errgroup.Group
	for _, r := range regs {
		g.Go(func() error { return r.cb(ctx, cmd) })
	}
	return g.Wait()
}
