// Package container provides a typed dependency-injection container with an
// ordered component lifecycle.
//
// # Overview
//
// Each component is described by a Metadata record: the TypeID it is looked
// up by (normally its declared interface type), the TypeIDs it depends on and
// a build function. The Repository collects records, computes a build plan
// (a deterministic topological order) and constructs every component exactly
// once, in plan order. The Orchestrator then starts components in plan order
// and stops them in reverse.
//
// Metadata is written by hand or with the Provide[T]() builder.
//
// # Lifecycle
//
//  1. Create: repo := container.NewRepository(container.WithLogger(logger))
//  2. Register: repo.Register(record) (or through a ServiceProvider)
//  3. Compose: repo.Compose() builds the plan and every component.
//  4. Start: orch.StartAll(ctx) walks the plan forward, all or nothing.
//  5. Stop: orch.StopAll(ctx) walks it backward, best effort.
//
// # Declaring components
//
//	// Hand-written record
//	repo.Register(container.Metadata{
//	    TypeID:    container.TypeIDOf[Store](),
//	    DependsOn: []container.TypeID{container.TypeIDOf[Clock]()},
//	    Build: func(r *container.Repository) (any, error) {
//	        return newMemoryStore(container.MustGet[Clock](r)), nil
//	    },
//	})
//
//	// Builder
//	repo.Register(container.Provide[Greeter]().
//	    Needs(container.TypeIDOf[Store]()).
//	    Give(func(r *container.Repository) (Greeter, error) {
//	        return newGreeter(container.MustGet[Store](r)), nil
//	    }))
//
//	// Pre-built value
//	repo.Register(container.Provide[*config.Config]().GiveValue(cfg))
//
// # Resolving
//
//	// Untyped
//	raw, err := repo.GetByTypeID(container.TypeIDOf[Store]())
//
//	// Generic (preferred)
//	store, err := container.Get[Store](repo)
//
//	// Explicit id
//	primary, err := container.Lookup[Store](repo, "store.primary")
//
// Lookups distinguish ErrNotFound (nothing composed under the id) from
// ErrDowncastMismatch (the slot holds a different type).
//
// # Lifecycle capabilities
//
// A component opts into lifecycle hooks by implementing Starter and/or
// Stopper. Anything else is treated as a no-op lifecycle.
//
//	func (s *Server) Start(ctx context.Context) error { ... }
//	func (s *Server) Stop(ctx context.Context) error  { ... }
//
// # Errors
//
// Every failure is a typed error that also matches a sentinel:
//
//	errors.Is(err, container.ErrCircularDependency)
//
//	var missing *container.MissingDependencyError
//	if errors.As(err, &missing) {
//	    log.Printf("%s needs %s", missing.Requester, missing.Missing)
//	}
//
// StopAll aggregates failures; use StopFailures to list them.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(repo *container.Repository) error {
//	    return repo.Register(container.Provide[Mailer]().Give(newMailer))
//	}
//
//	registry := container.NewProviderRegistry(repo)
//	registry.Register(&AppServiceProvider{})
//	repo.Compose()
//	registry.Boot()
package container
