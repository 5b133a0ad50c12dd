package container_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-component/framework/container"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// journal records lifecycle hook invocations across components.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	copy(out, j.events)
	return out
}

func (j *journal) count(e string) int {
	n := 0
	for _, v := range j.all() {
		if v == e {
			n++
		}
	}
	return n
}

// hooked implements both lifecycle hooks with optional failures.
type hooked struct {
	name     string
	j        *journal
	startErr error
	stopErr  error
	startFn  func(ctx context.Context) error
	stopFn   func() error
}

func (h *hooked) Start(ctx context.Context) error {
	h.j.add("start " + h.name)
	if h.startFn != nil {
		return h.startFn(ctx)
	}
	return h.startErr
}

func (h *hooked) Stop(context.Context) error {
	h.j.add("stop " + h.name)
	if h.stopFn != nil {
		return h.stopFn()
	}
	return h.stopErr
}

type startOnly struct {
	name string
	j    *journal
}

func (s *startOnly) Start(context.Context) error {
	s.j.add("start " + s.name)
	return nil
}

type stopOnly struct {
	name string
	j    *journal
}

func (s *stopOnly) Stop(context.Context) error {
	s.j.add("stop " + s.name)
	return nil
}

type plain struct{}

func register(t *testing.T, repo *container.Repository, id container.TypeID, instance any, deps ...container.TypeID) {
	t.Helper()
	require.NoError(t, repo.Register(container.Metadata{
		TypeID:    id,
		DependsOn: deps,
		Build:     func(*container.Repository) (any, error) { return instance, nil },
	}))
}

func composed(t *testing.T, setup func(repo *container.Repository), opts ...container.Option) *container.Orchestrator {
	t.Helper()
	repo := container.NewRepository(opts...)
	setup(repo)
	require.NoError(t, repo.Compose())
	return container.NewOrchestrator(repo, opts...)
}

// ── Ordering ─────────────────────────────────────────────────────────────────

func TestOrchestrator_StartForwardStopReverse(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "C", &hooked{name: "C", j: j}, "A", "B")
		register(t, repo, "B", &hooked{name: "B", j: j}, "A")
		register(t, repo, "A", &hooked{name: "A", j: j})
	})

	require.NoError(t, orch.StartAll(context.Background()))
	assert.True(t, orch.Running())
	require.NoError(t, orch.StopAll(context.Background()))
	assert.False(t, orch.Running())

	assert.Equal(t, []string{
		"start A", "start B", "start C",
		"stop C", "stop B", "stop A",
	}, j.all())
}

func TestOrchestrator_StopIsExactReverseOfStart(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		for _, id := range []container.TypeID{"e", "d", "c", "b", "a"} {
			register(t, repo, id, &hooked{name: string(id), j: j})
		}
	})

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))

	events := j.all()
	require.Len(t, events, 10)
	for i := 0; i < 5; i++ {
		started := events[i][len("start "):]
		stopped := events[9-i][len("stop "):]
		assert.Equal(t, started, stopped)
	}
}

func TestOrchestrator_NoOpComponentsRoundTrip(t *testing.T) {
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "plain", &plain{})
	})

	require.NoError(t, orch.StartAll(context.Background()))
	assert.Equal(t, container.StateStarted, orch.State("plain"))
	require.NoError(t, orch.StopAll(context.Background()))
	assert.Equal(t, container.StateStopped, orch.State("plain"))
}

func TestOrchestrator_StopOnlyComponentIsStopped(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "pool", &stopOnly{name: "pool", j: j})
		register(t, repo, "svc", &hooked{name: "svc", j: j}, "pool")
	})

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))
	assert.Equal(t, []string{"start svc", "stop svc", "stop pool"}, j.all())
}

// ── Partial failure ──────────────────────────────────────────────────────────

func TestOrchestrator_StartFailureRollsBackStarted(t *testing.T) {
	j := &journal{}
	boom := errors.New("port in use")
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
		register(t, repo, "B", &hooked{name: "B", j: j, startErr: boom}, "A")
		register(t, repo, "C", &hooked{name: "C", j: j}, "B")
	})

	err := orch.StartAll(context.Background())
	require.ErrorIs(t, err, container.ErrStartFailed)
	assert.ErrorIs(t, err, boom)

	var se *container.StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, container.TypeID("B"), se.TypeID)
	assert.NoError(t, se.Rollback)

	assert.Equal(t, []string{"start A", "start B", "stop A"}, j.all())
	assert.Equal(t, 1, j.count("stop A"))
	assert.Zero(t, j.count("stop B"))
	assert.Equal(t, container.StateStopped, orch.State("A"))
	assert.Equal(t, container.StateBuilt, orch.State("B"))
	assert.Equal(t, container.StateBuilt, orch.State("C"))
	assert.False(t, orch.Running())
}

func TestOrchestrator_RollbackFailuresAreReported(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j, stopErr: errors.New("stuck")})
		register(t, repo, "B", &hooked{name: "B", j: j, startErr: errors.New("boom")}, "A")
	})

	err := orch.StartAll(context.Background())

	var se *container.StartError
	require.True(t, errors.As(err, &se))
	require.Error(t, se.Rollback)
	failures := container.StopFailures(se.Rollback)
	require.Len(t, failures, 1)
	assert.Equal(t, container.TypeID("A"), failures[0].TypeID)
	assert.Contains(t, err.Error(), "rollback")
}

func TestOrchestrator_StopFailuresAreAggregated(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j, stopErr: errors.New("a failed")})
		register(t, repo, "B", &hooked{name: "B", j: j}, "A")
		register(t, repo, "C", &hooked{name: "C", j: j, stopErr: errors.New("c failed")}, "B")
	})
	require.NoError(t, orch.StartAll(context.Background()))

	err := orch.StopAll(context.Background())
	require.ErrorIs(t, err, container.ErrStopFailed)

	assert.Equal(t, []string{"stop C", "stop B", "stop A"}, j.all()[3:], "every component must be stopped")

	failures := container.StopFailures(err)
	require.Len(t, failures, 2)
	assert.Equal(t, container.TypeID("C"), failures[0].TypeID)
	assert.Equal(t, container.TypeID("A"), failures[1].TypeID)
	assert.Contains(t, err.Error(), "2 components failed to stop")

	for _, id := range []container.TypeID{"A", "B", "C"} {
		assert.Equal(t, container.StateStopped, orch.State(id))
	}
}

func TestOrchestrator_StartTimeout(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "slow", &hooked{name: "slow", j: j, startFn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}})
	}, container.WithStartTimeout(20*time.Millisecond))

	err := orch.StartAll(context.Background())
	require.ErrorIs(t, err, container.ErrStartFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_CancelledContextStartsNothing(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := orch.StartAll(ctx)
	require.ErrorIs(t, err, container.ErrStartFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, j.all())

	var se *container.StartError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, se.TypeID, "no component ran, none is blamed")
	assert.Contains(t, err.Error(), "startup aborted")
}

func TestOrchestrator_RollbackRunsWhenContextCancelledMidStart(t *testing.T) {
	j := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j, startFn: func(context.Context) error {
			cancel()
			return nil
		}})
		register(t, repo, "B", &hooked{name: "B", j: j}, "A")
	})

	err := orch.StartAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"start A", "stop A"}, j.all())
}

// ── Panicking hooks ──────────────────────────────────────────────────────────

func TestOrchestrator_StartPanicRollsBack(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
		register(t, repo, "B", &hooked{name: "B", j: j, startFn: func(context.Context) error {
			panic("listener exploded")
		}}, "A")
	})

	var err error
	require.NotPanics(t, func() { err = orch.StartAll(context.Background()) })
	require.ErrorIs(t, err, container.ErrStartFailed)

	var se *container.StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, container.TypeID("B"), se.TypeID)
	assert.Contains(t, err.Error(), "listener exploded")

	assert.Equal(t, []string{"start A", "start B", "stop A"}, j.all())
	assert.Equal(t, 1, j.count("stop A"))
	assert.Equal(t, container.StateStopped, orch.State("A"))
	assert.False(t, orch.Running())
}

func TestOrchestrator_StopPanicDoesNotAbortShutdown(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
		register(t, repo, "B", &hooked{name: "B", j: j, stopFn: func() error {
			panic(errors.New("flush failed"))
		}}, "A")
	})
	require.NoError(t, orch.StartAll(context.Background()))

	var err error
	require.NotPanics(t, func() { err = orch.StopAll(context.Background()) })
	require.ErrorIs(t, err, container.ErrStopFailed)

	failures := container.StopFailures(err)
	require.Len(t, failures, 1)
	assert.Equal(t, container.TypeID("B"), failures[0].TypeID)
	assert.Contains(t, err.Error(), "flush failed")

	assert.Equal(t, []string{"start A", "start B", "stop B", "stop A"}, j.all())
	assert.Equal(t, container.StateStopped, orch.State("A"))
	assert.Equal(t, container.StateStopped, orch.State("B"))
}

// ── Misuse ───────────────────────────────────────────────────────────────────

func TestOrchestrator_StartBeforeCompose(t *testing.T) {
	orch := container.NewOrchestrator(container.NewRepository())
	assert.ErrorIs(t, orch.StartAll(context.Background()), container.ErrLifecycleMisuse)
}

func TestOrchestrator_DoubleStartIsRejected(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
	})

	require.NoError(t, orch.StartAll(context.Background()))
	assert.ErrorIs(t, orch.StartAll(context.Background()), container.ErrLifecycleMisuse)
	assert.Equal(t, 1, j.count("start A"))
}

func TestOrchestrator_DoubleStopIsRejected(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
	})

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))
	assert.ErrorIs(t, orch.StopAll(context.Background()), container.ErrLifecycleMisuse)
	assert.Equal(t, 1, j.count("stop A"))
}

func TestOrchestrator_StopBeforeStartIsRejected(t *testing.T) {
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &plain{})
	})
	assert.ErrorIs(t, orch.StopAll(context.Background()), container.ErrLifecycleMisuse)
}

func TestOrchestrator_RestartAfterFailedStartIsRejected(t *testing.T) {
	j := &journal{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j, startErr: errors.New("boom")})
	})

	require.Error(t, orch.StartAll(context.Background()))
	assert.ErrorIs(t, orch.StartAll(context.Background()), container.ErrLifecycleMisuse)
	assert.ErrorIs(t, orch.StopAll(context.Background()), container.ErrLifecycleMisuse)
}

// ── Observer ─────────────────────────────────────────────────────────────────

type recordingObserver struct {
	mu      sync.Mutex
	built   []container.TypeID
	started []container.TypeID
	stopped []container.TypeID
	errs    int
}

func (o *recordingObserver) ComponentBuilt(id container.TypeID, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.built = append(o.built, id)
	if err != nil {
		o.errs++
	}
}

func (o *recordingObserver) ComponentStarted(id container.TypeID, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, id)
	if err != nil {
		o.errs++
	}
}

func (o *recordingObserver) ComponentStopped(id container.TypeID, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, id)
	if err != nil {
		o.errs++
	}
}

func TestOrchestrator_ObserverSeesEveryHook(t *testing.T) {
	j := &journal{}
	obs := &recordingObserver{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &hooked{name: "A", j: j})
		register(t, repo, "B", &plain{}, "A")
	}, container.WithObserver(obs))

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))

	assert.Equal(t, []container.TypeID{"A", "B"}, obs.built)
	assert.Equal(t, []container.TypeID{"A"}, obs.started, "components without hooks are not observed")
	assert.Equal(t, []container.TypeID{"A"}, obs.stopped)
	assert.Zero(t, obs.errs)
}

func TestOrchestrator_ObserverSeesStartOnlyComponentStop(t *testing.T) {
	j := &journal{}
	obs := &recordingObserver{}
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "A", &startOnly{name: "A", j: j})
	}, container.WithObserver(obs))

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))

	assert.Equal(t, []container.TypeID{"A"}, obs.started)
	assert.Equal(t, []container.TypeID{"A"}, obs.stopped)
	assert.Zero(t, obs.errs)
}

// ── States ───────────────────────────────────────────────────────────────────

func TestOrchestrator_StatesInPlanOrder(t *testing.T) {
	orch := composed(t, func(repo *container.Repository) {
		register(t, repo, "B", &plain{}, "A")
		register(t, repo, "A", &plain{})
	})

	states := orch.States()
	require.Len(t, states, 2)
	assert.Equal(t, container.TypeID("A"), states[0].TypeID)
	assert.Equal(t, container.StateBuilt, states[0].State)
	assert.Equal(t, []container.TypeID{"A"}, states[1].DependsOn)

	raw, err := json.Marshal(states[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type_id":"B","state":"built","depends_on":["A"]}`, string(raw))
}

func TestOrchestrator_StatesBeforeCompose(t *testing.T) {
	repo := container.NewRepository()
	register(t, repo, "A", &plain{})
	orch := container.NewOrchestrator(repo)

	states := orch.States()
	require.Len(t, states, 1)
	assert.Equal(t, container.StateRegistered, states[0].State)
}
