package providers

import (
	"log/slog"
	"net/http"

	"github.com/km-arc/go-component/framework/admin"
	"github.com/km-arc/go-component/framework/config"
	"github.com/km-arc/go-component/framework/container"
	"github.com/km-arc/go-component/framework/metrics"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider exposes the loaded configuration as a component.
//
// Registered components:
//   - *config.Config
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(repo *container.Repository) error {
	return repo.Register(container.Provide[*config.Config]().GiveValue(p.Config))
}

func (p *ConfigServiceProvider) Provides() []container.TypeID {
	return []container.TypeID{container.TypeIDOf[*config.Config]()}
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider exposes the application logger.
//
// Registered components:
//   - *slog.Logger
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *slog.Logger
}

func (p *LoggingServiceProvider) Register(repo *container.Repository) error {
	return repo.Register(container.Provide[*slog.Logger]().GiveValue(p.Logger))
}

func (p *LoggingServiceProvider) Provides() []container.TypeID {
	return []container.TypeID{container.TypeIDOf[*slog.Logger]()}
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider exposes the Prometheus collector so components can
// register their own series on its registry. Registers nothing when
// Collector is nil.
//
// Registered components:
//   - *metrics.Collector
type MetricsServiceProvider struct {
	container.BaseProvider
	Collector *metrics.Collector
}

func (p *MetricsServiceProvider) Register(repo *container.Repository) error {
	if p.Collector == nil {
		return nil
	}
	return repo.Register(container.Provide[*metrics.Collector]().GiveValue(p.Collector))
}

func (p *MetricsServiceProvider) Provides() []container.TypeID {
	if p.Collector == nil {
		return nil
	}
	return []container.TypeID{container.TypeIDOf[*metrics.Collector]()}
}

// ── AdminServiceProvider ──────────────────────────────────────────────────────

// AdminServiceProvider registers the admin HTTP server as a lifecycle
// component. It starts after config and logging and is stopped before them.
//
// Registered components:
//   - *admin.Server
//
// Configuration keys read from *config.Config:
//   - admin.addr
type AdminServiceProvider struct {
	container.BaseProvider
	Lifecycle admin.Inspector
	Metrics   bool
}

func (p *AdminServiceProvider) Register(repo *container.Repository) error {
	def := container.Provide[*admin.Server]().Needs(
		container.TypeIDOf[*config.Config](),
		container.TypeIDOf[*slog.Logger](),
	)
	if p.Metrics {
		def = def.Needs(container.TypeIDOf[*metrics.Collector]())
	}
	inspect := p.Lifecycle

	return repo.Register(def.Give(func(r *container.Repository) (*admin.Server, error) {
		cfg, err := container.Get[*config.Config](r)
		if err != nil {
			return nil, err
		}
		logger, err := container.Get[*slog.Logger](r)
		if err != nil {
			return nil, err
		}
		var collector *metrics.Collector
		if p.Metrics {
			if collector, err = container.Get[*metrics.Collector](r); err != nil {
				return nil, err
			}
		}
		return admin.New(cfg.Admin.Addr, r, inspect, metricsHandler(collector), logger), nil
	}))
}

func (p *AdminServiceProvider) Provides() []container.TypeID {
	return []container.TypeID{container.TypeIDOf[*admin.Server]()}
}

// metricsHandler keeps /metrics unrouted when metrics are disabled.
func metricsHandler(c *metrics.Collector) http.Handler {
	if c == nil {
		return nil
	}
	return c.Handler()
}
