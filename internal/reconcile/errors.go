package reconcile

import (
	"errors"
	"fmt"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

// Kind classifies why a status change did not go through cleanly.
type Kind int

const (
	// KindValidation: the backend (or a local check) rejected the record.
	KindValidation Kind = iota
	// KindAuth: the session was rejected.
	KindAuth
	// KindConflict: the device already has an update being applied.
	KindConflict
	// KindNetwork: the request never got a response.
	KindNetwork
	// KindServer: the backend answered with a non-validation failure.
	KindServer
	// KindConvergenceTimeout: the write was accepted but never showed up in reads.
	KindConvergenceTimeout
	// KindNotFound: the device is not in the local cache.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindConvergenceTimeout:
		return "convergence_timeout"
	case KindNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is.
var (
	ErrConflict           = errors.New("status update already in progress")
	ErrConvergenceTimeout = errors.New("backend did not confirm the update")
	ErrDeviceNotFound     = errors.New("device not in cache")
	ErrClosed             = errors.New("engine closed")
)

// Error describes a failed or unconfirmed status change with enough context
// to render it without looking anything up.
type Error struct {
	Kind     Kind
	DeviceID codec.ID
	Status   fleetapi.Status // the status that was attempted
	Phase    Phase
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("set %s to %s: %s during %s", e.DeviceID, e.Status, e.Kind, e.Phase)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrConvergenceTimeout:
		return e.Kind == KindConvergenceTimeout
	case ErrDeviceNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// classify maps a transport failure onto a Kind.
func classify(err error) Kind {
	switch {
	case fleetapi.IsValidationError(err):
		return KindValidation
	case fleetapi.IsAuthError(err):
		return KindAuth
	case fleetapi.IsNetworkError(err):
		return KindNetwork
	default:
		return KindServer
	}
}
