package command

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/model"
)

func TestHandlerRegister(t *testing.T) {
	h := NewHandler(nil)
	var calls atomic.Int32
	cb := func(context.Context, model.Command) error {
		calls.Add(1)
		return nil
	}

	off1 := h.Register("custom", cb)
	off2 := h.Register("custom", cb)
	assert.Equal(t, []string{"custom"}, h.Names())

	require.NoError(t, h.Emit(context.Background(), custom{}))
	assert.Equal(t, int32(2), calls.Load())

	off1()
	off1()
	require.NoError(t, h.Emit(context.Background(), custom{}))
	assert.Equal(t, int32(3), calls.Load())

	off2()
	assert.Empty(t, h.Names())
	require.NoError(t, h.Emit(context.Background(), custom{}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHandlerReturnsCallbackError(t *testing.T) {
	h := NewHandler(nil)
	boom := stderrors.New("boom")
	h.Register("custom", func(context.Context, model.Command) error { return nil })
	h.Register("custom", func(context.Context, model.Command) error { return boom })

	assert.ErrorIs(t, h.Emit(context.Background(), custom{}), boom)
}

func TestRegisterBuiltins(t *testing.T) {
	h := NewHandler(nil)
	e := newEnv(model.State{Nodes: []model.Node{{ID: "a"}}})
	off := RegisterBuiltins(h, NewBuiltins(e, nil))
	assert.Len(t, h.Names(), len(BuiltinNames))

	require.NoError(t, h.Emit(context.Background(), SelectAll{}))
	assert.Len(t, e.lk.SelectedNodes(), 1)

	off()
	assert.Empty(t, h.Names())
}
