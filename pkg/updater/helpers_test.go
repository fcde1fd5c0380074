package updater

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/flowcore/pkg/action"
	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

// engine records what the updaters send it.
type engine struct {
	mu      sync.Mutex
	state   model.State
	sets    int
	onSet   func()
	emitted []model.Command
	txNames []string

	lk  *lookup.Lookup
	act action.State
	txm *transaction.Manager
}

func newEngine(state model.State) *engine {
	e := &engine{state: state}
	e.lk = lookup.New(e, nil)
	e.txm = transaction.NewManager(e, nil)
	return e
}

func (e *engine) State() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) SetState(_ context.Context, s model.State) error {
	e.mu.Lock()
	e.state = s
	e.sets++
	hook := e.onSet
	e.mu.Unlock()
	e.lk.Desynchronize()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *engine) UpdateState(ctx context.Context, fn func(model.State) model.State) error {
	return e.SetState(ctx, fn(e.State()))
}

func (e *engine) Emit(ctx context.Context, cmd model.Command) error { return e.EmitInternal(ctx, cmd) }

func (e *engine) EmitInternal(_ context.Context, cmd model.Command) error {
	e.mu.Lock()
	e.emitted = append(e.emitted, cmd)
	e.mu.Unlock()
	return nil
}

func (e *engine) Transaction(ctx context.Context, name string, fn transaction.Func, opts ...transaction.Option) (transaction.Result, error) {
	e.mu.Lock()
	e.txNames = append(e.txNames, name)
	e.mu.Unlock()
	return e.txm.Transaction(ctx, name, fn, opts...)
}

func (e *engine) Lookup() *lookup.Lookup     { return e.lk }
func (e *engine) ActionState() *action.State { return &e.act }

func (e *engine) commands() []model.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.emitted)
}

func (e *engine) setCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sets
}

// recorder is an Updater that records every call.
type recorder struct {
	mu    sync.Mutex
	calls []Arrival
}

func (r *recorder) add(a Arrival) error {
	r.mu.Lock()
	r.calls = append(r.calls, a)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []Arrival {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) ApplyNodeSize(_ context.Context, id string, s model.Size) error {
	return r.add(Arrival{Kind: KindNodeSize, OwnerID: id, Size: s})
}

func (r *recorder) AddPort(_ context.Context, id string, p model.Port) error {
	return r.add(Arrival{Kind: KindPort, OwnerID: id, Port: p})
}

func (r *recorder) ApplyPortsSizesAndPositions(_ context.Context, id string, rects []PortRect) error {
	return r.add(Arrival{Kind: KindPortRect, OwnerID: id, Rects: rects})
}

func (r *recorder) AddEdgeLabel(_ context.Context, id string, l model.EdgeLabel) error {
	return r.add(Arrival{Kind: KindLabel, OwnerID: id, Label: l})
}

func (r *recorder) ApplyEdgeLabelSize(_ context.Context, id, labelID string, s model.Size) error {
	return r.add(Arrival{Kind: KindLabelSize, OwnerID: id, LabelID: labelID, Size: s})
}
