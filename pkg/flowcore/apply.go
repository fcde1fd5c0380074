package flowcore

import (
	"context"
	"fmt"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/events"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

// ApplyUpdate runs update through the middleware chain and commits the
// result. Inside a transaction the update is queued on it instead.
//
// Outside a transaction calls are serialized: acquisition honours ctx, but
// once acquired the update runs to completion. Events deferred by the chain
// are delivered after the update lock is released, so handlers may emit
// further commands. Middlewares must not.
func (f *FlowCore) ApplyUpdate(ctx context.Context, update model.StateUpdate, actionType model.ActionType) error {
	if _, ok := transaction.FromContext(ctx); ok {
		return f.txm.QueueUpdate(ctx, update, actionType)
	}
	return f.apply(ctx, update, actionType)
}

func (f *FlowCore) apply(ctx context.Context, update model.StateUpdate, actionTypes ...model.ActionType) error {
	label := string(actionLabel(actionTypes))

	waitStart := f.clock.Now()
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("apply %s: %w", label, err)
	}
	f.hooks().OnSemaphoreWait(ctx, f.clock.Since(waitStart))

	start := f.clock.Now()
	committed, pending, err := f.commit(ctx, update, actionTypes)
	f.sem.Release(1)

	f.hooks().OnApplyUpdate(ctx, label, f.clock.Since(start), committed, err)
	if err != nil {
		return err
	}
	f.events.Dispatch(pending...)
	return nil
}

// commit runs under the update lock. It returns the events to deliver once
// the lock is released.
func (f *FlowCore) commit(ctx context.Context, update model.StateUpdate, actionTypes []model.ActionType) (committed bool, pending []events.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.events.Clear()
			committed, pending = false, nil
			err = errors.New(errors.ErrCodeInternal, "update %v panicked: %v", actionTypes, r)
		}
	}()

	next, ok := f.middlewares.Execute(ctx, f.State(), update, actionTypes...)
	if !ok {
		f.events.Clear()
		return false, nil, nil
	}
	f.write(next)
	return true, f.events.Take(), nil
}

func (f *FlowCore) write(s model.State) {
	if w, ok := f.adapter.(StateWriter); ok {
		w.WriteState(s)
		return
	}
	f.adapter.UpdateNodes(s.Nodes)
	f.adapter.UpdateEdges(s.Edges)
	f.adapter.UpdateMetadata(s.Metadata)
}

// SetState replaces the committed state without running middlewares. It
// waits for running updates to finish.
func (f *FlowCore) SetState(ctx context.Context, s model.State) error {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	defer f.sem.Release(1)
	f.write(s)
	f.lookup.Desynchronize()
	return nil
}

// UpdateState commits fn applied to the current state without running
// middlewares. fn runs under the update lock and must not emit.
func (f *FlowCore) UpdateState(ctx context.Context, fn func(model.State) model.State) error {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	defer f.sem.Release(1)
	f.write(fn(f.State()))
	f.lookup.Desynchronize()
	return nil
}

// Emit dispatches a command. Inside a transaction the command's updates are
// queued on it.
func (f *FlowCore) Emit(ctx context.Context, cmd model.Command) error {
	start := f.clock.Now()
	err := f.commands.Emit(ctx, cmd)
	f.commandHooks().OnCommand(ctx, cmd.CommandName(), f.clock.Since(start), err)
	return err
}

// Transaction runs fn in a transaction nested in the one carried by ctx.
// A root transaction that queued at least one update commits the merged
// update with a single pass through the middleware chain; its action types
// are the transaction name followed by the queued action types. When the
// transaction asked for it, Transaction then waits until the committed
// entities were re-measured or config Init.WaitTimeout elapsed.
func (f *FlowCore) Transaction(ctx context.Context, name string, fn transaction.Func, opts ...transaction.Option) (transaction.Result, error) {
	_, nested := transaction.FromContext(ctx)
	start := f.clock.Now()

	res, err := f.txm.Transaction(ctx, name, fn, opts...)
	if nested {
		return res, err
	}
	if err == nil && !res.Aborted && res.CommandsCount > 0 {
		err = f.commitTransaction(ctx, res)
	}
	f.hooks().OnTransaction(ctx, name, res.CommandsCount, f.clock.Since(start), err)
	return res, err
}

func (f *FlowCore) commitTransaction(ctx context.Context, res transaction.Result) error {
	actionTypes := append([]model.ActionType{model.ActionType(res.Name)}, res.ActionTypes...)
	if !res.WaitForMeasurements {
		return f.apply(ctx, res.Update, actionTypes...)
	}

	release := f.tracker.Begin()
	defer release()
	if err := f.apply(ctx, res.Update, actionTypes...); err != nil {
		return err
	}
	if !f.tracker.Wait(ctx, f.Config().Init.WaitTimeout) {
		f.logger.Warn("measurements still pending after transaction", "name", res.Name, "pending", f.tracker.Pending())
	}
	return nil
}

func actionLabel(types []model.ActionType) model.ActionType {
	if len(types) == 0 {
		return "unknown"
	}
	return types[0]
}
