package container

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type phase int

const (
	phaseIdle phase = iota
	phaseStarting
	phaseRunning
	phaseStopping
	phaseStopped
)

// ── Orchestrator ──────────────────────────────────────────────────────────────

// Orchestrator drives a composed Repository through start and stop.
//
// Components start one at a time in plan order and stop one at a time in
// reverse plan order; each call is awaited before the next is issued, so a
// component never starts before its dependencies nor outlives them. Start is
// all-or-nothing, stop is best-effort. Each of StartAll and StopAll may be
// called once.
type Orchestrator struct {
	repo *Repository
	opts options

	mu      sync.Mutex
	phase   phase
	states  map[TypeID]State
	started []TypeID // start order, for rollback and shutdown
}

// NewOrchestrator wraps repo. repo must be composed before StartAll.
func NewOrchestrator(repo *Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:   repo,
		opts:   applyOptions(opts),
		states: make(map[TypeID]State),
	}
	o.opts.logger = o.opts.logger.With(slog.String("composition_id", repo.ID()))
	return o
}

// StartAll starts every component in plan order. Components that do not
// implement Starter pass straight to the started state.
//
// If a Start fails (or ctx is cancelled between starts), every component
// already started is stopped in reverse start order before the StartError is
// returned.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	if err := o.enter(phaseIdle, phaseStarting, "StartAll"); err != nil {
		return err
	}

	plan := o.repo.Plan()
	o.mu.Lock()
	for _, id := range plan {
		o.states[id] = StateBuilt
	}
	o.mu.Unlock()

	began := time.Now()
	for _, id := range plan {
		instance, _ := o.repo.GetByTypeID(id)

		// a cancelled ctx aborts before id runs, so no component is blamed
		var (
			err    error
			failed TypeID
		)
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		} else if starter, ok := instance.(Starter); ok {
			failed = id
			err = o.start(ctx, id, starter)
		}

		if err != nil {
			rollback := o.rollback(ctx)
			o.setPhase(phaseStopped)
			return &StartError{TypeID: failed, Cause: err, Rollback: rollback}
		}

		o.mu.Lock()
		o.states[id] = StateStarted
		o.started = append(o.started, id)
		o.mu.Unlock()
	}

	o.setPhase(phaseRunning)
	o.opts.logger.Info("all components started",
		slog.Int("components", len(plan)),
		slog.Duration("duration", time.Since(began)))
	return nil
}

func (o *Orchestrator) start(ctx context.Context, id TypeID, starter Starter) error {
	ctx, span := o.opts.tracer.Start(ctx, "component.start",
		trace.WithAttributes(attribute.String("component.type_id", string(id))))
	defer span.End()

	ctx, cancel := withOptionalTimeout(ctx, o.opts.startTimeout)
	defer cancel()

	o.opts.logger.Info("starting component", slog.String("component", string(id)))
	began := time.Now()
	err := callHook(ctx, starter.Start)
	took := time.Since(began)
	o.opts.observer.ComponentStarted(id, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.opts.logger.Error("component failed to start",
			slog.String("component", string(id)),
			slog.Duration("duration", took),
			slog.Any("error", err))
		return err
	}
	o.opts.logger.Info("component started",
		slog.String("component", string(id)),
		slog.Duration("duration", took))
	return nil
}

// rollback stops what StartAll already started. The caller's cancellation is
// detached so compensation still runs when ctx is what failed the start.
func (o *Orchestrator) rollback(ctx context.Context) error {
	o.mu.Lock()
	started := o.started
	o.started = nil
	o.mu.Unlock()

	if len(started) == 0 {
		return nil
	}
	o.opts.logger.Warn("rolling back startup", slog.Int("components", len(started)))

	base := context.WithoutCancel(ctx)
	var agg *multierror.Error
	for i := len(started) - 1; i >= 0; i-- {
		id := started[i]
		rctx, cancel := withOptionalTimeout(base, o.opts.rollbackTimeout)
		if err := o.stopOne(rctx, id); err != nil {
			agg = appendStopError(agg, id, err)
		}
		cancel()
	}
	return agg.ErrorOrNil()
}

// StopAll stops every started component in reverse order. Failures are
// recorded and the remaining components are still stopped; the returned
// error aggregates every StopError (see StopFailures).
func (o *Orchestrator) StopAll(ctx context.Context) error {
	if err := o.enter(phaseRunning, phaseStopping, "StopAll"); err != nil {
		return err
	}

	o.mu.Lock()
	started := o.started
	o.started = nil
	o.mu.Unlock()

	o.opts.logger.Info("stopping all components", slog.Int("components", len(started)))
	began := time.Now()

	var agg *multierror.Error
	for i := len(started) - 1; i >= 0; i-- {
		id := started[i]
		sctx, cancel := withOptionalTimeout(ctx, o.opts.stopTimeout)
		if err := o.stopOne(sctx, id); err != nil {
			agg = appendStopError(agg, id, err)
		}
		cancel()
	}

	o.setPhase(phaseStopped)
	if err := agg.ErrorOrNil(); err != nil {
		o.opts.logger.Error("shutdown finished with failures",
			slog.Int("failures", len(agg.Errors)),
			slog.Duration("duration", time.Since(began)))
		return err
	}
	o.opts.logger.Info("all components stopped", slog.Duration("duration", time.Since(began)))
	return nil
}

// stopOne invokes Stop if the component has it and marks it stopped either way.
func (o *Orchestrator) stopOne(ctx context.Context, id TypeID) error {
	defer func() {
		o.mu.Lock()
		o.states[id] = StateStopped
		o.mu.Unlock()
	}()

	instance, _ := o.repo.GetByTypeID(id)
	stopper, ok := instance.(Stopper)
	if !ok {
		// start-only components still leave the started state for observers
		if _, started := instance.(Starter); started {
			o.opts.observer.ComponentStopped(id, 0, nil)
		}
		return nil
	}

	ctx, span := o.opts.tracer.Start(ctx, "component.stop",
		trace.WithAttributes(attribute.String("component.type_id", string(id))))
	defer span.End()

	o.opts.logger.Info("stopping component", slog.String("component", string(id)))
	began := time.Now()
	err := callHook(ctx, stopper.Stop)
	took := time.Since(began)
	o.opts.observer.ComponentStopped(id, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			o.opts.logger.Warn("component exceeded its stop deadline",
				slog.String("component", string(id)),
				slog.Duration("duration", took))
		} else {
			o.opts.logger.Error("component failed to stop",
				slog.String("component", string(id)),
				slog.Any("error", err))
		}
		return err
	}
	o.opts.logger.Info("component stopped",
		slog.String("component", string(id)),
		slog.Duration("duration", took))
	return nil
}

// ── Phase bookkeeping ─────────────────────────────────────────────────────────

func (o *Orchestrator) enter(from, to phase, op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != from {
		return &LifecycleMisuseError{Reason: op + " called while " + o.phase.String()}
	}
	if from == phaseIdle && !o.repo.Composed() {
		return &LifecycleMisuseError{Reason: op + " called before Compose"}
	}
	o.phase = to
	return nil
}

func (o *Orchestrator) setPhase(p phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseStarting:
		return "starting"
	case phaseRunning:
		return "running"
	case phaseStopping:
		return "stopping"
	case phaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ── Introspection ─────────────────────────────────────────────────────────────

// State returns the lifecycle state of id. Components never seen by StartAll
// report StateBuilt once the repository is composed, StateRegistered before.
func (o *Orchestrator) State(id TypeID) State {
	o.mu.Lock()
	s, ok := o.states[id]
	o.mu.Unlock()
	if ok {
		return s
	}
	if _, err := o.repo.GetByTypeID(id); err == nil {
		return StateBuilt
	}
	return StateRegistered
}

// States returns the state of every component in plan order.
func (o *Orchestrator) States() []ComponentState {
	plan := o.repo.Plan()
	if plan == nil {
		plan = Plan(o.repo.Registered())
	}
	out := make([]ComponentState, 0, len(plan))
	for _, id := range plan {
		out = append(out, ComponentState{
			TypeID:    id,
			State:     o.State(id),
			DependsOn: o.repo.Dependencies(id),
		})
	}
	return out
}

// Running reports whether StartAll succeeded and StopAll has not been called.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase == phaseRunning
}

// ComponentState is a snapshot row used for diagnostics.
type ComponentState struct {
	TypeID    TypeID   `json:"type_id"`
	State     State    `json:"state"`
	DependsOn []TypeID `json:"depends_on"`
}

// callHook runs a Start or Stop hook, turning a panic into an error.
func callHook(ctx context.Context, hook func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	return hook(ctx)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
