package middleware

import (
	"context"
	"time"

	"github.com/matzehuels/flowcore/pkg/model"
)

// Executor runs a chain of middlewares over one update.
type Executor struct{}

// Run applies mc.Update to mc.InitialState and passes the result through
// chain in order. It returns false as soon as a stage drops the update.
func (Executor) Run(ctx context.Context, chain []Middleware, mc *Context) (model.State, bool) {
	mc.State = model.Apply(mc.InitialState, mc.Update)
	for _, mw := range chain {
		mc.Config = configFor(mc.State, mw.Name())

		start := time.Now()
		next, ok := mw.Execute(ctx, mc)
		if !ok {
			if mc.Logger != nil {
				mc.Logger.Debug("update dropped", "middleware", mw.Name(), "actions", mc.ActionTypes)
			}
			return model.State{}, false
		}
		if mc.Logger != nil {
			mc.Logger.Debug("middleware done", "middleware", mw.Name(), "took", time.Since(start))
		}
		mc.State = next
	}
	return mc.State, true
}

func configFor(s model.State, name string) any {
	if s.Metadata.Middlewares == nil {
		return nil
	}
	return s.Metadata.Middlewares[name]
}
