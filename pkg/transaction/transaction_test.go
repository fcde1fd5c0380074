package transaction

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

type addNode struct{ id string }

func (addNode) CommandName() string { return "addNodes" }

type addEdge struct{ id string }

func (addEdge) CommandName() string { return "addEdges" }

// fakeEmitter turns commands into updates and queues them the way the
// engine's ApplyUpdate does inside a transaction.
type fakeEmitter struct {
	m       *Manager
	applied []model.StateUpdate
}

func (f *fakeEmitter) EmitInternal(ctx context.Context, cmd model.Command) error {
	var u model.StateUpdate
	var action model.ActionType
	switch c := cmd.(type) {
	case addNode:
		u.NodesToAdd = []model.Node{{ID: c.id}}
		action = model.ActionAddNodes
	case addEdge:
		u.EdgesToAdd = []model.Edge{{ID: c.id}}
		action = model.ActionAddEdges
	}
	if _, ok := FromContext(ctx); ok {
		return f.m.QueueUpdate(ctx, u, action)
	}
	f.applied = append(f.applied, u)
	return nil
}

func newManager() (*Manager, *fakeEmitter) {
	f := &fakeEmitter{}
	m := NewManager(nil, nil)
	f.m = m
	m.SetEmitter(f)
	return m, f
}

func nodeIDs(u model.StateUpdate) []string {
	var ids []string
	for _, n := range u.NodesToAdd {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestRootTransactionMerges(t *testing.T) {
	m, f := newManager()

	res, err := m.Transaction(context.Background(), "batch", func(ctx context.Context, tx *Context) error {
		assert.True(t, m.IsActive())
		assert.Equal(t, 1, m.Depth())
		assert.Equal(t, "batch", m.Current().Name())
		require.NoError(t, tx.Emit(addNode{"a"}))
		require.NoError(t, tx.Emit(addEdge{"e"}))
		require.NoError(t, tx.Emit(addNode{"b"}))
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, f.applied)
	assert.False(t, m.IsActive())
	assert.Nil(t, m.Current())
	assert.Equal(t, 3, res.CommandsCount)
	assert.Equal(t, []model.ActionType{model.ActionAddNodes, model.ActionAddEdges}, res.ActionTypes)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(res.Update))
	assert.Len(t, res.Update.EdgesToAdd, 1)
	assert.False(t, res.Nested)
}

func TestCallbackRequired(t *testing.T) {
	m, _ := newManager()
	_, err := m.Transaction(context.Background(), "x", nil)
	assert.True(t, errors.Is(err, errors.ErrCodeTransaction))
}

func TestQueueUpdateWithoutTransaction(t *testing.T) {
	m, _ := newManager()
	err := m.QueueUpdate(context.Background(), model.StateUpdate{}, model.ActionAddNodes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransaction))
	assert.Contains(t, err.Error(), "no active transaction")
}

func TestSavepointRollback(t *testing.T) {
	m, _ := newManager()

	res, err := m.Transaction(context.Background(), "sp", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"a"}))
		require.NoError(t, tx.Savepoint("one"))
		require.NoError(t, tx.Emit(addNode{"b"}))
		require.NoError(t, tx.Savepoint("two"))
		require.NoError(t, tx.Emit(addNode{"c"}))
		require.NoError(t, tx.Emit(addNode{"d"}))

		require.NoError(t, tx.RollbackTo("two"))
		assert.Equal(t, 2, tx.Transaction().Len())

		require.NoError(t, tx.RollbackTo("one"))
		assert.Equal(t, 1, tx.Transaction().Len())

		// "two" pointed past the truncated queue and is gone.
		err := tx.RollbackTo("two")
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

		require.NoError(t, tx.Emit(addNode{"e"}))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "e"}, nodeIDs(res.Update))
}

func TestRollbackToEmptyClears(t *testing.T) {
	m, _ := newManager()
	res, err := m.Transaction(context.Background(), "clear", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"a"}))
		return tx.RollbackTo("")
	})
	require.NoError(t, err)
	assert.Zero(t, res.CommandsCount)
	assert.True(t, res.Update.IsEmpty())
}

func TestAbortedTransactionRejectsOperations(t *testing.T) {
	m, _ := newManager()
	res, err := m.Transaction(context.Background(), "abort", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"a"}))
		tx.Abort()

		for op, err := range map[string]error{
			"emit":         tx.Emit(addNode{"b"}),
			"savepoint":    tx.Savepoint("x"),
			"rollback":     tx.RollbackTo(""),
			"queue update": m.QueueUpdate(ctx, model.StateUpdate{}, model.ActionAddNodes),
		} {
			require.Error(t, err, op)
			assert.Contains(t, err.Error(), "cannot "+op+" on rolled back transaction")
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Zero(t, res.CommandsCount)
}

func TestThrowingRootNeverApplies(t *testing.T) {
	m, f := newManager()
	boom := stderrors.New("boom")

	_, err := m.Transaction(context.Background(), "root", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"a"}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.applied)
	assert.Zero(t, m.Depth())
}

func TestPanicIsRecovered(t *testing.T) {
	m, _ := newManager()
	_, err := m.Transaction(context.Background(), "p", func(ctx context.Context, tx *Context) error {
		panic("kaboom")
	})
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
	assert.Zero(t, m.Depth())
}

func TestNestedAbortContributesNothing(t *testing.T) {
	m, _ := newManager()

	res, err := m.Transaction(context.Background(), "parent", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"n1"}))

		child, err := m.Transaction(ctx, "child", func(ctx context.Context, child *Context) error {
			assert.Equal(t, 2, m.Depth())
			assert.Same(t, tx.Transaction(), child.Transaction().Parent())
			require.NoError(t, child.Emit(addEdge{"e1"}))
			child.Abort()
			return nil
		})
		require.NoError(t, err)
		assert.True(t, child.Aborted)

		return tx.Emit(addNode{"n2"})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.CommandsCount)
	assert.Equal(t, []string{"n1", "n2"}, nodeIDs(res.Update))
	assert.Empty(t, res.Update.EdgesToAdd)
	assert.Equal(t, []model.ActionType{model.ActionAddNodes}, res.ActionTypes)
}

func TestNestedErrorLeavesParentIntact(t *testing.T) {
	m, _ := newManager()

	res, err := m.Transaction(context.Background(), "parent", func(ctx context.Context, tx *Context) error {
		require.NoError(t, tx.Emit(addNode{"n1"}))
		_, err := m.Transaction(ctx, "child", func(ctx context.Context, child *Context) error {
			require.NoError(t, child.Emit(addNode{"lost"}))
			return stderrors.New("child failed")
		})
		assert.Error(t, err)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, nodeIDs(res.Update))
}

func TestNestedMergesIntoParent(t *testing.T) {
	m, _ := newManager()

	res, err := m.Transaction(context.Background(), "parent", func(ctx context.Context, tx *Context) error {
		child, err := m.Transaction(ctx, "child", func(ctx context.Context, child *Context) error {
			return child.Emit(addNode{"c"})
		}, WaitForMeasurements())
		require.NoError(t, err)
		assert.True(t, child.Nested)
		assert.True(t, child.WaitForMeasurements)
		assert.Equal(t, 1, tx.Transaction().Len())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, nodeIDs(res.Update))
}

func TestUnrelatedContextIsNotCaptured(t *testing.T) {
	m, f := newManager()

	_, err := m.Transaction(context.Background(), "tx", func(ctx context.Context, tx *Context) error {
		// A caller without the transaction context dispatches directly.
		return f.EmitInternal(context.Background(), addNode{"outside"})
	})

	require.NoError(t, err)
	require.Len(t, f.applied, 1)
	assert.Equal(t, []string{"outside"}, nodeIDs(f.applied[0]))
}
