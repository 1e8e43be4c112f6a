package pipeline

import "fmt"

// State enumerates the run lifecycle. A run moves strictly forward:
//
//	LOADED -> ATTESTED -> RUNNING -> INTEGRITY_CHECKED -> COMPLETED
//
// with FAILED terminal and reachable from LOADED (parse or validation),
// the ATTESTED gate (digest mismatch), and any RUNNING step.
type State string

const (
	StateLoaded           State = "LOADED"
	StateAttested         State = "ATTESTED"
	StateRunning          State = "RUNNING"
	StateIntegrityChecked State = "INTEGRITY_CHECKED"
	StateCompleted        State = "COMPLETED"
	StateFailed           State = "FAILED"
)

// IsTerminal reports whether the state ends a run.
func IsTerminal(s State) bool {
	return s == StateCompleted || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	if to == StateFailed {
		return from == StateLoaded || from == StateAttested || from == StateRunning
	}
	switch from {
	case StateLoaded:
		return to == StateAttested
	case StateAttested:
		return to == StateRunning
	case StateRunning:
		return to == StateIntegrityChecked
	case StateIntegrityChecked:
		return to == StateCompleted
	default:
		return false
	}
}

// transition validates and applies a state change on the run.
func (r *Run) transition(to State) error {
	if !isAllowedTransition(r.State, to) {
		return fmt.Errorf("pipeline: disallowed transition %s -> %s for plan %s", r.State, to, r.PlanID)
	}
	r.State = to
	return nil
}
