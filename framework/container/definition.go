package container

// Definition is the fluent way to declare a component's Metadata without
// writing the type-erased build function by hand.
//
//	container.Provide[Greeter]().
//	    Needs(container.TypeIDOf[Store](), container.TypeIDOf[*slog.Logger]()).
//	    Give(func(r *container.Repository) (Greeter, error) {
//	        return newGreeter(container.MustGet[Store](r)), nil
//	    })
type Definition[T any] struct {
	id    TypeID
	needs []TypeID
}

// Provide starts a definition for the component looked up as T.
func Provide[T any]() *Definition[T] {
	return &Definition[T]{id: TypeIDOf[T]()}
}

// ProvideAs starts a definition stored under an explicit id. Lookups must go
// through Lookup[T](repo, id).
func ProvideAs[T any](id TypeID) *Definition[T] {
	return &Definition[T]{id: id}
}

// Needs appends dependencies. Order is kept and only affects tie-breaking in
// the build plan.
func (d *Definition[T]) Needs(ids ...TypeID) *Definition[T] {
	d.needs = append(d.needs, ids...)
	return d
}

// Give finishes the definition with a typed build function.
func (d *Definition[T]) Give(build func(r *Repository) (T, error)) Metadata {
	deps := make([]TypeID, len(d.needs))
	copy(deps, d.needs)
	return Metadata{
		TypeID:    d.id,
		DependsOn: deps,
		Build: func(r *Repository) (any, error) {
			v, err := build(r)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// GiveValue finishes the definition with a pre-built instance.
//
//	repo.Register(container.Provide[*config.Config]().GiveValue(cfg))
func (d *Definition[T]) GiveValue(value T) Metadata {
	return d.Give(func(*Repository) (T, error) { return value, nil })
}
