package container

import (
	"context"
	"fmt"
	"reflect"
)

// ── Identity ──────────────────────────────────────────────────────────────────

// TypeID identifies a component by the capability it is looked up by,
// usually its declared interface type, never the concrete implementation.
type TypeID string

// TypeIDOf returns the TypeID of T.
//
//	container.TypeIDOf[Store]()   // "github.com/acme/app.Store"
//	container.TypeIDOf[*Cache]()  // "*github.com/acme/app.Cache"
func TypeIDOf[T any]() TypeID {
	return TypeID(typeName(reflect.TypeFor[T]()))
}

// typeName is a package-qualified rendering of t. Named types use their
// import path so two packages declaring the same name never collide.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// ── Metadata ──────────────────────────────────────────────────────────────────

// BuildFunc constructs a component. The repository it receives already holds
// every component listed in the record's DependsOn.
type BuildFunc func(r *Repository) (any, error)

// Metadata is the per-type record the container composes from.
//
//	container.Metadata{
//	    TypeID:    container.TypeIDOf[Greeter](),
//	    DependsOn: []container.TypeID{container.TypeIDOf[Store]()},
//	    Build: func(r *container.Repository) (any, error) {
//	        return &greeter{store: container.MustGet[Store](r)}, nil
//	    },
//	}
type Metadata struct {
	TypeID    TypeID
	DependsOn []TypeID
	Build     BuildFunc
}

func (m Metadata) validate() error {
	if m.TypeID == "" {
		return &LifecycleMisuseError{Reason: "metadata has an empty type id"}
	}
	if m.Build == nil {
		return &LifecycleMisuseError{Reason: fmt.Sprintf("metadata for [%s] has no build function", m.TypeID)}
	}
	return nil
}

// ── Lifecycle capabilities ────────────────────────────────────────────────────

// Starter is implemented by components that need to acquire resources after
// every dependency has started.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by components that release resources on shutdown.
// Stop is invoked after every dependent component has stopped.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Lifecycle is the full start/stop capability.
type Lifecycle interface {
	Starter
	Stopper
}

// State is the lifecycle state of a single component.
type State int

const (
	StateRegistered State = iota
	StateBuilt
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateBuilt:
		return "built"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
