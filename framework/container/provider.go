package container

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registration of related components.
//
// Register is called immediately when the provider is added and must only
// register metadata. Boot is called once the repository is composed and
// before anything starts, so every component can be looked up from it.
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(repo *container.Repository) error {
//	    return repo.Register(container.Provide[Store]().Give(newStore))
//	}
//
//	func (p *AppServiceProvider) Boot(repo *container.Repository) error {
//	    store := container.MustGet[Store](repo)
//	    return store.Warm()
//	}
type ServiceProvider interface {
	// Register adds metadata records to the repository.
	Register(repo *Repository) error

	// Boot runs after Compose. Safe to resolve any component here.
	Boot(repo *Repository) error

	// Provides lists the TypeIDs this provider registers. The registry
	// verifies the list after Register; return nil to skip the check.
	Provides() []TypeID
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot() and Provides().
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(repo *container.Repository) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Repository) error { return nil }
func (p *BaseProvider) Provides() []TypeID       { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders for
// a single repository.
type ProviderRegistry struct {
	repo       *Repository
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to repo.
func NewProviderRegistry(repo *Repository) *ProviderRegistry {
	return &ProviderRegistry{
		repo:       repo,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register() method. Adding the same
// provider instance twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted {
		return &LifecycleMisuseError{Reason: fmt.Sprintf("provider %T registered after boot", provider)}
	}

	if err := provider.Register(r.repo); err != nil {
		return fmt.Errorf("provider %T: %w", provider, err)
	}

	for _, id := range provider.Provides() {
		if !r.isRegistered(id) {
			return fmt.Errorf("provider %T: declares [%s] but did not register it: %w",
				provider, id, &NotFoundError{TypeID: id})
		}
	}

	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	return nil
}

func (r *ProviderRegistry) isRegistered(id TypeID) bool {
	for _, v := range r.repo.Registered() {
		if v == id {
			return true
		}
	}
	return false
}

// Boot calls Boot() on every provider in registration order. The repository
// must be composed. Every provider is booted even if an earlier one fails.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	if !r.repo.Composed() {
		return &LifecycleMisuseError{Reason: "providers booted before Compose"}
	}
	r.booted = true

	var errs *multierror.Error
	for _, provider := range r.providers {
		if err := provider.Boot(r.repo); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("booting provider %T: %w", provider, err))
		}
	}
	return errs.ErrorOrNil()
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
