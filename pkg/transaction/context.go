package transaction

import (
	"context"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Emitter dispatches a command straight to its callbacks, skipping the
// transaction check. The command handler implements it.
type Emitter interface {
	EmitInternal(ctx context.Context, cmd model.Command) error
}

// Context is the handle passed to a transaction callback.
type Context struct {
	tx      *Transaction
	ctx     context.Context
	emitter Emitter
}

type ctxKey struct{}

// FromContext returns the innermost transaction handle carried by ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	return tc, ok && tc != nil
}

func withContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// Transaction returns the underlying transaction.
func (c *Context) Transaction() *Transaction { return c.tx }

// Context returns the context that carries this transaction.
func (c *Context) Context() context.Context { return c.ctx }

// Name returns the transaction name.
func (c *Context) Name() string { return c.tx.Name() }

// Aborted reports whether the transaction was rolled back.
func (c *Context) Aborted() bool { return c.tx.Aborted() }

// Emit dispatches cmd so that every update it produces is queued on this
// transaction.
func (c *Context) Emit(cmd model.Command) error {
	if c.tx.Aborted() {
		return rolledBack("emit")
	}
	if c.emitter == nil {
		return errors.New(errors.ErrCodeInternal, "transaction %q has no command emitter", c.tx.Name())
	}
	return c.emitter.EmitInternal(c.ctx, cmd)
}

// Savepoint records the current queue length under name.
func (c *Context) Savepoint(name string) error { return c.tx.Savepoint(name) }

// RollbackTo truncates the queue to the savepoint called name, or clears it
// when name is empty.
func (c *Context) RollbackTo(name string) error { return c.tx.RollbackTo(name) }

// Abort rolls the transaction back. Nothing it queued reaches the parent.
func (c *Context) Abort() { c.tx.Abort() }
