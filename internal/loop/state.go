// Package loop drives the generate, run, diagnose, correct cycle for one
// project build. It owns the build state machine and the retry budget.
package loop

// State is a build's position in the correction cycle.
type State string

const (
	StateIdle          State = "idle"
	StateEnsuringEnv   State = "ensuring_env"
	StateGenerating    State = "generating"
	StateInstallingDep State = "installing_dep"
	StateRunning       State = "running"
	StateClassifying   State = "classifying"
	StateRequestingFix State = "requesting_fix"
	StateSucceeded     State = "succeeded"
	StateExhausted     State = "exhausted"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed"
)

// IsTerminal reports whether the state ends the build.
func IsTerminal(s State) bool {
	switch s {
	case StateSucceeded, StateExhausted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// allowedTransition encodes the build state machine. Every transition the
// controller performs must appear here; anything else is a bug.
func allowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateEnsuringEnv
	case StateEnsuringEnv:
		return to == StateGenerating || to == StateRunning ||
			to == StateCancelled || to == StateFailed
	case StateGenerating:
		return to == StateInstallingDep || to == StateRunning ||
			to == StateCancelled || to == StateFailed
	case StateInstallingDep:
		return to == StateRunning || to == StateRequestingFix ||
			to == StateCancelled || to == StateFailed
	case StateRunning:
		return to == StateSucceeded || to == StateClassifying || to == StateCancelled
	case StateClassifying:
		return to == StateInstallingDep || to == StateRequestingFix ||
			to == StateExhausted || to == StateCancelled
	case StateRequestingFix:
		return to == StateRunning || to == StateCancelled || to == StateFailed
	default:
		return false
	}
}

// Event reports a state transition to an observer.
type Event struct {
	// Project is the project name the build belongs to.
	Project string

	// State the build just entered.
	State State

	// Correction is how many corrective re-runs have been spent so far.
	Correction int

	// Detail is a short human-readable note: the diagnosis, the package
	// being installed, the failure reason.
	Detail string
}

// Notifier receives build events. It is called synchronously from the build
// goroutine; implementations must not block.
type Notifier func(Event)
