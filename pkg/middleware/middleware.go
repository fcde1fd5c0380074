// Package middleware runs every state update through an ordered pipeline of
// transforms before it is committed.
//
// A [Middleware] receives a [Context] holding the state before the update,
// the state with the update already applied, the update itself and the action
// types that produced it. It returns the state the next stage should see, or
// false to drop the update entirely.
//
// The [Manager] runs the registered middlewares in registration order and
// appends a fixed tail:
//
//   - bounds: recomputes MeasuredBounds for nodes whose geometry changed
//   - logging: logs the update at debug level
//   - measurement tracking: registers ids that must be re-measured, only
//     while a measurement waiter is active
//   - event emission: diffs the states and defers semantic events, only when
//     the event manager is enabled
package middleware

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Middleware is one stage of the update pipeline. Implementations must not
// modify the slices of InitialState; they return a new state instead.
type Middleware interface {
	Name() string
	Execute(ctx context.Context, mc *Context) (model.State, bool)
}

// Context is passed to every stage of one pipeline run.
type Context struct {
	InitialState model.State        // committed state before the update
	State        model.State        // current state, update already applied
	Update       model.StateUpdate  // update being executed
	ActionTypes  []model.ActionType // operations that produced Update
	Lookup       *lookup.Lookup     // indices over InitialState
	Config       any                // config stored for the running middleware
	Logger       *log.Logger
}

// ActionIs reports whether any of types produced the update.
func (c *Context) ActionIs(types ...model.ActionType) bool {
	for _, t := range types {
		if slices.Contains(c.ActionTypes, t) {
			return true
		}
	}
	return false
}

// ExecuteFunc is the signature of a middleware body.
type ExecuteFunc func(ctx context.Context, mc *Context) (model.State, bool)

type funcMiddleware struct {
	name string
	fn   ExecuteFunc
}

// Func adapts a function into a named Middleware.
func Func(name string, fn ExecuteFunc) Middleware {
	return funcMiddleware{name: name, fn: fn}
}

func (f funcMiddleware) Name() string { return f.name }

func (f funcMiddleware) Execute(ctx context.Context, mc *Context) (model.State, bool) {
	return f.fn(ctx, mc)
}
