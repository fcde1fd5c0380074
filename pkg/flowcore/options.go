package flowcore

import (
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/middleware"
	"github.com/matzehuels/flowcore/pkg/observability"
	"github.com/matzehuels/flowcore/pkg/updater"
)

// StrategyFactory builds the measurement batching strategy once the engine
// exists.
type StrategyFactory func(engine updater.Engine) updater.BatchStrategy

type options struct {
	logger      *log.Logger
	cfg         config.Config
	middlewares []middleware.Middleware
	clock       clockwork.Clock
	engineHooks observability.EngineHooks
	cmdHooks    observability.CommandHooks
	strategy    StrategyFactory
	virtualize  *bool
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithConfig replaces the default configuration.
func WithConfig(c config.Config) Option { return func(o *options) { o.cfg = c } }

// WithMiddlewares registers user middlewares after the policy middlewares,
// in order.
func WithMiddlewares(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// WithClock sets the time source for every debounce and timeout.
func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithHooks sends engine and command events to hooks instead of the
// globally registered ones. Either may be nil.
func WithHooks(engine observability.EngineHooks, commands observability.CommandHooks) Option {
	return func(o *options) {
		o.engineHooks = engine
		o.cmdHooks = commands
	}
}

// WithBatchStrategy overrides how steady-state measurements are batched.
func WithBatchStrategy(f StrategyFactory) Option { return func(o *options) { o.strategy = f } }

// WithVirtualization overrides config.Virtualization.Enabled.
func WithVirtualization(on bool) Option { return func(o *options) { o.virtualize = &on } }
