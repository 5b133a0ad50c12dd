package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/km-arc/go-component/framework/config"
	"github.com/km-arc/go-component/framework/container"
	"github.com/km-arc/go-component/framework/logging"
	"github.com/km-arc/go-component/framework/metrics"
	"github.com/km-arc/go-component/framework/providers"
)

const tracerName = "github.com/km-arc/go-component"

// Version is reported by the CLI and logged at startup.
const Version = "0.1.0"

// Application owns one composition: the repository, its providers and the
// lifecycle orchestrator, plus the ambient config, logger and metrics.
//
//	application, err := app.New(cfg)
//	application.Register(&AppServiceProvider{})
//	err = application.Run(ctx) // compose, boot, start, wait for a signal, stop
type Application struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	closeOnce sync.Once
	collector *metrics.Collector

	repo      *container.Repository
	providers *container.ProviderRegistry
	lifecycle *container.Orchestrator

	bootOnce sync.Once
	bootErr  error
}

// Option customises an Application.
type Option func(*Application)

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// New creates the application and registers the framework providers
// (config, logging, metrics and, when enabled, the admin server).
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, closer, err := logging.New(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return nil, err
		}
		a.logger, a.logCloser = logger, closer
	}
	a.logger = a.logger.With(slog.String("app", cfg.App.Name), slog.String("env", cfg.App.Env))

	if cfg.Metrics.Enabled {
		a.collector = metrics.New(cfg.Metrics.Namespace, nil)
	}

	copts := []container.Option{
		container.WithLogger(a.logger),
		container.WithTracer(otel.Tracer(tracerName)),
		container.WithStartTimeout(cfg.Lifecycle.StartTimeout),
		container.WithStopTimeout(cfg.Lifecycle.StopTimeout),
		container.WithRollbackTimeout(cfg.Lifecycle.RollbackTimeout),
	}
	if a.collector != nil {
		copts = append(copts, container.WithObserver(a.collector))
	}

	a.repo = container.NewRepository(copts...)
	a.providers = container.NewProviderRegistry(a.repo)
	a.lifecycle = container.NewOrchestrator(a.repo, copts...)

	core := []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: a.logger},
		&providers.MetricsServiceProvider{Collector: a.collector},
	}
	if cfg.Admin.Enabled {
		core = append(core, &providers.AdminServiceProvider{
			Lifecycle: a.lifecycle,
			Metrics:   a.collector != nil,
		})
	}
	for _, p := range core {
		if err := a.providers.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.providers.Register(provider)
}

// Boot composes the repository and runs every provider's Boot. Later calls
// return the first result.
func (a *Application) Boot() error {
	a.bootOnce.Do(func() {
		if err := a.repo.Compose(); err != nil {
			a.bootErr = err
			return
		}
		a.bootErr = a.providers.Boot()
	})
	return a.bootErr
}

// Start boots the application (if needed) and starts every component in
// dependency order.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Boot(); err != nil {
		return err
	}
	return a.lifecycle.StartAll(ctx)
}

// Stop stops every started component in reverse order and releases the
// log file, if any.
func (a *Application) Stop(ctx context.Context) error {
	err := a.lifecycle.StopAll(ctx)
	a.closeLog()
	return err
}

// Run starts the application, blocks until ctx is done or SIGINT/SIGTERM
// arrives, then stops it. The log file, if any, is closed on every path.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.closeLog()

	if err := a.Start(ctx); err != nil {
		a.logger.Error("startup failed", slog.Any("error", err))
		return err
	}
	a.logger.Info("application running",
		slog.String("version", Version),
		slog.String("composition_id", a.repo.ID()),
		slog.Int("components", a.repo.Len()))

	<-ctx.Done()
	a.logger.Info("shutting down")
	return a.Stop(context.WithoutCancel(ctx))
}

func (a *Application) closeLog() {
	a.closeOnce.Do(func() {
		if a.logCloser != nil {
			_ = a.logCloser.Close()
		}
	})
}

// ── Accessors ────────────────────────────────────────────────────────────────

func (a *Application) Config() *config.Config                 { return a.cfg }
func (a *Application) Logger() *slog.Logger                   { return a.logger }
func (a *Application) Metrics() *metrics.Collector            { return a.collector }
func (a *Application) Repository() *container.Repository      { return a.repo }
func (a *Application) Lifecycle() *container.Orchestrator     { return a.lifecycle }
func (a *Application) Providers() *container.ProviderRegistry { return a.providers }

