package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-component/framework/container"
)

func TestProvide_UsesInterfaceTypeID(t *testing.T) {
	m := storeRecord()

	assert.Equal(t, container.TypeIDOf[Store](), m.TypeID)
	assert.Equal(t, []container.TypeID{container.TypeIDOf[Clock]()}, m.DependsOn)
}

func TestProvide_NeedsAccumulatesInOrder(t *testing.T) {
	m := container.Provide[Greeter]().
		Needs("b").
		Needs("a", "c").
		GiveValue(&greeter{})

	assert.Equal(t, []container.TypeID{"b", "a", "c"}, m.DependsOn)
}

func TestProvide_GiveErrorIsPropagated(t *testing.T) {
	boom := errors.New("no connection")
	repo := container.NewRepository()
	repo.MustRegister(container.Provide[Store]().Give(func(*container.Repository) (Store, error) {
		return nil, boom
	}))

	err := repo.Compose()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, container.ErrConstructionFailed)
}

func TestProvideAs_ExplicitID(t *testing.T) {
	repo := container.NewRepository()
	repo.MustRegister(
		container.ProvideAs[Clock]("clock.primary").GiveValue(fixedClock{t: 1}),
		container.ProvideAs[Clock]("clock.replica").GiveValue(fixedClock{t: 2}),
	)
	require.NoError(t, repo.Compose())

	primary, err := container.Lookup[Clock](repo, "clock.primary")
	require.NoError(t, err)
	replica, err := container.Lookup[Clock](repo, "clock.replica")
	require.NoError(t, err)

	assert.Equal(t, 1, primary.Now())
	assert.Equal(t, 2, replica.Now())

	_, err = container.Get[Clock](repo)
	assert.ErrorIs(t, err, container.ErrNotFound, "explicit ids do not fill the type slot")
}

func TestProvide_GiveValueReturnsSameInstance(t *testing.T) {
	shared := &greeter{}
	repo := container.NewRepository()
	repo.MustRegister(container.Provide[Greeter]().GiveValue(shared))
	require.NoError(t, repo.Compose())

	got, err := container.Get[Greeter](repo)
	require.NoError(t, err)
	assert.Same(t, shared, got.(*greeter))
}
