// Package transaction groups state updates into atomic, nestable batches.
//
// While a transaction is active, updates are queued instead of being executed.
// When the outermost (root) transaction completes, its queue is merged into
// one [model.StateUpdate] that the engine applies in a single step. A nested
// transaction merges its queue into its parent on success and contributes
// nothing when it fails or is aborted.
//
// The innermost transaction travels on the [context.Context]. Code that wants
// its updates queued must pass along the context it was handed; goroutines
// started with an unrelated context are never captured by someone else's
// transaction.
//
// # Savepoints
//
// [Context.Savepoint] records the current queue length under a name and
// [Context.RollbackTo] truncates the queue back to exactly that length.
//
//	_, err := engine.Transaction(ctx, "layout", func(ctx context.Context, tx *transaction.Context) error {
//	    _ = tx.Emit(command.MoveNodesBy{...})
//	    _ = tx.Savepoint("moved")
//	    _ = tx.Emit(command.ResizeNode{...})
//	    return tx.RollbackTo("moved") // keeps only the move
//	})
package transaction

import (
	"slices"
	"sync"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Entry is one queued update.
type Entry struct {
	Update     model.StateUpdate
	ActionType model.ActionType
}

// Transaction is the queue behind one Manager.Transaction call.
type Transaction struct {
	name   string
	parent *Transaction

	mu         sync.Mutex
	queue      []Entry
	savepoints map[string]int
	aborted    bool
}

func newTransaction(name string, parent *Transaction) *Transaction {
	return &Transaction{name: name, parent: parent, savepoints: make(map[string]int)}
}

// Name returns the transaction name.
func (t *Transaction) Name() string { return t.name }

// Parent returns the enclosing transaction, or nil for a root.
func (t *Transaction) Parent() *Transaction { return t.parent }

// IsRoot reports whether t has no parent.
func (t *Transaction) IsRoot() bool { return t.parent == nil }

// Aborted reports whether t was rolled back.
func (t *Transaction) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// Queue returns a copy of the queued entries.
func (t *Transaction) Queue() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.queue)
}

// Len returns the number of queued entries.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func rolledBack(op string) error {
	return errors.New(errors.ErrCodeTransaction, "cannot %s on rolled back transaction", op)
}

// Enqueue appends an update to the queue.
func (t *Transaction) Enqueue(update model.StateUpdate, actionType model.ActionType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return rolledBack("queue update")
	}
	t.queue = append(t.queue, Entry{Update: update, ActionType: actionType})
	return nil
}

// Savepoint records the current queue length under name. Reusing a name
// moves the marker.
func (t *Transaction) Savepoint(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return rolledBack("savepoint")
	}
	t.savepoints[name] = len(t.queue)
	return nil
}

// RollbackTo truncates the queue to the length recorded for name. An empty
// name clears the whole queue. Savepoints recorded after the target are
// dropped.
func (t *Transaction) RollbackTo(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return rolledBack("rollback")
	}
	mark := 0
	if name != "" {
		n, ok := t.savepoints[name]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "savepoint %q not found in transaction %q", name, t.name)
		}
		mark = n
	}
	t.queue = t.queue[:mark]
	for sp, n := range t.savepoints {
		if n > mark {
			delete(t.savepoints, sp)
		}
	}
	return nil
}

// Abort discards the queue and marks t rolled back.
func (t *Transaction) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aborted = true
	t.queue = nil
	clear(t.savepoints)
}

// absorb appends the entries of a committed child.
func (t *Transaction) absorb(entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return rolledBack("merge nested transaction")
	}
	t.queue = append(t.queue, entries...)
	return nil
}
