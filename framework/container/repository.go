package container

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ── Repository ────────────────────────────────────────────────────────────────

// Repository owns every component instance, keyed by TypeID.
//
// Lifecycle:
//
//  1. Register metadata records (nothing is constructed yet)
//  2. Compose: compute the build plan and construct each component in order
//  3. Look components up with GetByTypeID / Get / Lookup
//
// The instance map is written only by Compose, from the composing goroutine,
// and is read-only afterwards: lookups take no lock. Build functions may call
// lookups on the repository they receive while Compose is running.
type Repository struct {
	mu   sync.Mutex
	id   string
	opts options

	// TypeID → metadata, plus registration order for deterministic plans
	records map[TypeID]Metadata
	order   []TypeID

	composing bool
	composed  bool
	plan      Plan
	instances map[TypeID]any
}

// NewRepository creates an empty repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		id:      uuid.NewString(),
		opts:    applyOptions(opts),
		records: make(map[TypeID]Metadata),
	}
	r.opts.logger = r.opts.logger.With(slog.String("composition_id", r.id))
	return r
}

// ID identifies this composition in logs.
func (r *Repository) ID() string { return r.id }

// ── Registration ──────────────────────────────────────────────────────────────

// Register records metadata for later composition. It fails on a duplicate
// TypeID and once the repository has been composed.
//
//	repo.Register(container.Metadata{
//	    TypeID: container.TypeIDOf[Clock](),
//	    Build:  func(*container.Repository) (any, error) { return systemClock{}, nil },
//	})
func (r *Repository) Register(m Metadata) error {
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.composed || r.composing {
		return &LifecycleMisuseError{Reason: fmt.Sprintf("cannot register [%s]: repository is already composed", m.TypeID)}
	}
	if _, exists := r.records[m.TypeID]; exists {
		return &DuplicateRegistrationError{TypeID: m.TypeID}
	}

	deps := make([]TypeID, len(m.DependsOn))
	copy(deps, m.DependsOn)
	m.DependsOn = deps

	r.records[m.TypeID] = m
	r.order = append(r.order, m.TypeID)

	r.opts.logger.Debug("registered component",
		slog.String("component", string(m.TypeID)),
		slog.Int("dependencies", len(deps)))
	return nil
}

// MustRegister is like Register but panics on error (useful for bootstrap code).
func (r *Repository) MustRegister(records ...Metadata) {
	for _, m := range records {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// ── Composition ───────────────────────────────────────────────────────────────

// Compose builds the plan and constructs every component in plan order.
//
// Any failure aborts the whole composition: instances built so far are
// discarded and the repository goes back to its registered state, so the
// caller may fix the cause and compose again. After a successful Compose the
// repository is immutable.
func (r *Repository) Compose() error {
	records, err := r.beginCompose()
	if err != nil {
		return err
	}

	err = r.compose(records)

	r.mu.Lock()
	r.composing = false
	r.composed = err == nil
	r.mu.Unlock()
	return err
}

// beginCompose snapshots the records and blocks further registration. The
// lock is not held while build functions run, so they may use every
// read-only method of the repository.
func (r *Repository) beginCompose() ([]Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.composed:
		return nil, &LifecycleMisuseError{Reason: "repository is already composed"}
	case r.composing:
		return nil, &LifecycleMisuseError{Reason: "repository is being composed"}
	}
	r.composing = true

	records := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		records = append(records, r.records[id])
	}
	return records, nil
}

func (r *Repository) compose(records []Metadata) error {
	plan, err := BuildPlan(records)
	if err != nil {
		r.opts.logger.Error("dependency graph rejected", slog.Any("error", err))
		return err
	}

	byID := make(map[TypeID]Metadata, len(records))
	for _, m := range records {
		byID[m.TypeID] = m
	}

	r.plan = plan
	r.instances = make(map[TypeID]any, len(plan))

	began := time.Now()
	for _, id := range plan {
		start := time.Now()
		instance, err := r.build(byID[id])
		took := time.Since(start)
		r.opts.observer.ComponentBuilt(id, took, err)

		if err != nil {
			r.opts.logger.Error("component construction failed",
				slog.String("component", string(id)),
				slog.Any("error", err))
			r.plan = nil
			r.instances = nil
			return err
		}

		r.instances[id] = instance
		r.opts.logger.Debug("built component",
			slog.String("component", string(id)),
			slog.String("type", fmt.Sprintf("%T", instance)),
			slog.Duration("duration", took))
	}

	r.opts.logger.Info("repository composed",
		slog.Int("components", len(plan)),
		slog.Duration("duration", time.Since(began)))
	return nil
}

// build runs a single build function, turning errors, nil results and panics
// into a ConstructionError.
func (r *Repository) build(m Metadata) (instance any, err error) {
	defer func() {
		if p := recover(); p != nil {
			instance = nil
			err = &ConstructionError{TypeID: m.TypeID, Cause: panicError(p)}
		}
	}()

	instance, err = m.Build(r)
	if err != nil {
		return nil, &ConstructionError{TypeID: m.TypeID, Cause: err}
	}
	if isNil(instance) {
		return nil, &ConstructionError{TypeID: m.TypeID, Cause: errors.New("build returned nil")}
	}
	return instance, nil
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ── Resolution ────────────────────────────────────────────────────────────────

// GetByTypeID returns the type-erased instance stored for id. During Compose
// only components earlier in the plan are visible.
func (r *Repository) GetByTypeID(id TypeID) (any, error) {
	instance, ok := r.instances[id]
	if !ok {
		return nil, &NotFoundError{TypeID: id}
	}
	return instance, nil
}

// Lookup fetches the instance stored under id and downcasts it to T.
func Lookup[T any](r *Repository, id TypeID) (T, error) {
	var zero T
	instance, err := r.GetByTypeID(id)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &DowncastError{
			TypeID:    id,
			Requested: typeName(reflect.TypeFor[T]()),
			Actual:    typeName(reflect.TypeOf(instance)),
		}
	}
	return typed, nil
}

// Get fetches the component registered under TypeIDOf[T]().
//
//	store, err := container.Get[Store](repo)
func Get[T any](r *Repository) (T, error) {
	return Lookup[T](r, TypeIDOf[T]())
}

// MustGet is like Get but panics on error. Inside a build function the panic
// is recovered and reported as a ConstructionError.
//
//	Build: func(r *container.Repository) (any, error) {
//	    return &greeter{store: container.MustGet[Store](r)}, nil
//	}
func MustGet[T any](r *Repository) T {
	typed, err := Get[T](r)
	if err != nil {
		panic(err)
	}
	return typed
}

// ── Introspection ─────────────────────────────────────────────────────────────

// Composed reports whether Compose has succeeded.
func (r *Repository) Composed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.composed
}

// Plan returns a copy of the build plan (nil before Compose).
func (r *Repository) Plan() Plan {
	if r.plan == nil {
		return nil
	}
	out := make(Plan, len(r.plan))
	copy(out, r.plan)
	return out
}

// Registered returns the registered TypeIDs in registration order.
func (r *Repository) Registered() []TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TypeID, len(r.order))
	copy(out, r.order)
	return out
}

// Dependencies returns the declared dependencies of id.
func (r *Repository) Dependencies(id TypeID) []TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.records[id]
	if !ok {
		return nil
	}
	out := make([]TypeID, len(m.DependsOn))
	copy(out, m.DependsOn)
	return out
}

// Len returns the number of registered components.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
