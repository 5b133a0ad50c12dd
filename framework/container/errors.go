package container

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Sentinels for errors.Is. Every concrete error type below matches exactly
// one of them.
var (
	ErrDuplicateRegistration = errors.New("container: duplicate registration")
	ErrMissingDependency     = errors.New("container: missing dependency")
	ErrCircularDependency    = errors.New("container: circular dependency")
	ErrConstructionFailed    = errors.New("container: construction failed")
	ErrNotFound              = errors.New("container: component not found")
	ErrDowncastMismatch      = errors.New("container: downcast mismatch")
	ErrStartFailed           = errors.New("container: start failed")
	ErrStopFailed            = errors.New("container: stop failed")
	ErrLifecycleMisuse       = errors.New("container: lifecycle misuse")
)

// DuplicateRegistrationError is returned when a TypeID is registered twice.
type DuplicateRegistrationError struct {
	TypeID TypeID
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("container: [%s] is already registered", e.TypeID)
}

func (e *DuplicateRegistrationError) Is(target error) bool { return target == ErrDuplicateRegistration }

// MissingDependencyError names a component and the dependency nobody registered.
type MissingDependencyError struct {
	Requester TypeID
	Missing   TypeID
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("container: [%s] depends on [%s], which is not registered", e.Requester, e.Missing)
}

func (e *MissingDependencyError) Is(target error) bool { return target == ErrMissingDependency }

// CircularDependencyError carries the cycle as a path whose first and last
// element are the same component.
type CircularDependencyError struct {
	Cycle []TypeID
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = string(id)
	}
	return "container: circular dependency: " + strings.Join(parts, " -> ")
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// ConstructionError wraps a failing (or panicking) build function.
type ConstructionError struct {
	TypeID TypeID
	Cause  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("container: building [%s]: %v", e.TypeID, e.Cause)
}

func (e *ConstructionError) Is(target error) bool { return target == ErrConstructionFailed }
func (e *ConstructionError) Unwrap() error        { return e.Cause }

// NotFoundError is returned by lookups for ids that were never composed.
type NotFoundError struct {
	TypeID TypeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("container: [%s] not found in repository", e.TypeID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DowncastError means the slot exists but holds a value of another type.
// It points at a metadata bug, not at a missing registration.
type DowncastError struct {
	TypeID    TypeID
	Requested string
	Actual    string
}

func (e *DowncastError) Error() string {
	return fmt.Sprintf("container: [%s] holds %s, cannot use it as %s", e.TypeID, e.Actual, e.Requested)
}

func (e *DowncastError) Is(target error) bool { return target == ErrDowncastMismatch }

// StartError reports the component whose Start failed. TypeID is empty
// when the context was cancelled between starts. Rollback holds the stop
// failures hit while compensating, if any.
type StartError struct {
	TypeID   TypeID
	Cause    error
	Rollback error
}

func (e *StartError) Error() string {
	msg := fmt.Sprintf("container: starting [%s]: %v", e.TypeID, e.Cause)
	if e.TypeID == "" {
		msg = fmt.Sprintf("container: startup aborted: %v", e.Cause)
	}
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

func (e *StartError) Is(target error) bool { return target == ErrStartFailed }
func (e *StartError) Unwrap() error        { return e.Cause }

// StopError reports a single component whose Stop failed.
type StopError struct {
	TypeID TypeID
	Cause  error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("container: stopping [%s]: %v", e.TypeID, e.Cause)
}

func (e *StopError) Is(target error) bool { return target == ErrStopFailed }
func (e *StopError) Unwrap() error        { return e.Cause }

// LifecycleMisuseError is returned for calls made in the wrong phase,
// e.g. a second StartAll.
type LifecycleMisuseError struct {
	Reason string
}

func (e *LifecycleMisuseError) Error() string {
	return "container: " + e.Reason
}

func (e *LifecycleMisuseError) Is(target error) bool { return target == ErrLifecycleMisuse }

// ── Aggregation ───────────────────────────────────────────────────────────────

// appendStopError accumulates stop failures without short-circuiting.
func appendStopError(agg *multierror.Error, id TypeID, cause error) *multierror.Error {
	agg = multierror.Append(agg, &StopError{TypeID: id, Cause: cause})
	agg.ErrorFormat = formatStopErrors
	return agg
}

func formatStopErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  * " + err.Error()
	}
	return fmt.Sprintf("container: %d components failed to stop:\n%s", len(errs), strings.Join(lines, "\n"))
}

// StopFailures extracts every StopError from an error returned by StopAll
// (or from StartError.Rollback), in the order the stops were attempted.
func StopFailures(err error) []*StopError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]*StopError, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			var se *StopError
			if errors.As(e, &se) {
				out = append(out, se)
			}
		}
		return out
	}
	var se *StopError
	if errors.As(err, &se) {
		return []*StopError{se}
	}
	return nil
}
