package container

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/km-arc/go-component/framework/container"

// Observer receives timings for every build, start and stop the container
// performs. err is nil on success. ComponentStopped also fires, with a zero
// duration, for a component that has a Start hook but no Stop hook.
type Observer interface {
	ComponentBuilt(id TypeID, took time.Duration, err error)
	ComponentStarted(id TypeID, took time.Duration, err error)
	ComponentStopped(id TypeID, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ComponentBuilt(TypeID, time.Duration, error)   {}
func (nopObserver) ComponentStarted(TypeID, time.Duration, error) {}
func (nopObserver) ComponentStopped(TypeID, time.Duration, error) {}

type options struct {
	logger          *slog.Logger
	observer        Observer
	tracer          trace.Tracer
	startTimeout    time.Duration
	stopTimeout     time.Duration
	rollbackTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:          slog.New(slog.DiscardHandler),
		observer:        nopObserver{},
		tracer:          otel.Tracer(instrumentationName),
		rollbackTimeout: 5 * time.Second,
	}
}

// Option configures a Repository or an Orchestrator.
type Option func(*options)

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver installs an Observer (e.g. a metrics collector).
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTracer overrides the tracer used for start/stop spans. The default is
// the global otel provider, which is a no-op until an SDK is installed.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStartTimeout bounds each component's Start. Zero means no deadline.
func WithStartTimeout(d time.Duration) Option {
	return func(o *options) { o.startTimeout = d }
}

// WithStopTimeout bounds each component's Stop. Zero means no deadline.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}

// WithRollbackTimeout bounds each Stop issued while compensating a failed
// StartAll. Defaults to 5s.
func WithRollbackTimeout(d time.Duration) Option {
	return func(o *options) { o.rollbackTimeout = d }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
