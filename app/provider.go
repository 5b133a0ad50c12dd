package app

import (
	"log/slog"
	"time"

	"github.com/km-arc/go-component/framework/config"
	"github.com/km-arc/go-component/framework/container"
)

// AppServiceProvider registers the demo components.
//
//	Clock <- Store <- Greeter <- Heartbeat
type AppServiceProvider struct {
	container.BaseProvider
	// Interval between heartbeats, default: 30s
	Interval time.Duration
}

func (p *AppServiceProvider) Register(repo *container.Repository) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	loggerID := container.TypeIDOf[*slog.Logger]()

	return registerAll(repo,
		container.Provide[Clock]().GiveValue(systemClock{}),

		container.Provide[Store]().
			Needs(container.TypeIDOf[Clock](), loggerID, container.TypeIDOf[*config.Config]()).
			Give(func(r *container.Repository) (Store, error) {
				cfg := container.MustGet[*config.Config](r)
				return &memoryStore{
					clock:  container.MustGet[Clock](r),
					logger: container.MustGet[*slog.Logger](r),
					seed:   map[string]string{"name": cfg.App.Name},
				}, nil
			}),

		container.Provide[*Greeter]().
			Needs(container.TypeIDOf[Store]()).
			Give(func(r *container.Repository) (*Greeter, error) {
				store, err := container.Get[Store](r)
				if err != nil {
					return nil, err
				}
				return &Greeter{store: store}, nil
			}),

		container.Provide[*Heartbeat]().
			Needs(container.TypeIDOf[*Greeter](), loggerID).
			Give(func(r *container.Repository) (*Heartbeat, error) {
				return &Heartbeat{
					greeter:  container.MustGet[*Greeter](r),
					logger:   container.MustGet[*slog.Logger](r),
					interval: interval,
				}, nil
			}),
	)
}

func (p *AppServiceProvider) Provides() []container.TypeID {
	return []container.TypeID{
		container.TypeIDOf[Clock](),
		container.TypeIDOf[Store](),
		container.TypeIDOf[*Greeter](),
		container.TypeIDOf[*Heartbeat](),
	}
}

func registerAll(repo *container.Repository, records ...container.Metadata) error {
	for _, m := range records {
		if err := repo.Register(m); err != nil {
			return err
		}
	}
	return nil
}
