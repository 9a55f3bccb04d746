package enums

import "fmt"

// WorkerState is the supervised dispatch worker lifecycle state.
type WorkerState string

const (
	WorkerStateStopped  WorkerState = "stopped"
	WorkerStateStarting WorkerState = "starting"
	WorkerStateRunning  WorkerState = "running"
	WorkerStateDraining WorkerState = "draining"
	WorkerStateCrashed  WorkerState = "crashed"
)

var validWorkerStates = []WorkerState{
	WorkerStateStopped,
	WorkerStateStarting,
	WorkerStateRunning,
	WorkerStateDraining,
	WorkerStateCrashed,
}

// Online reports whether the worker is accepting or processing work.
func (s WorkerState) Online() bool {
	return s == WorkerStateStarting || s == WorkerStateRunning || s == WorkerStateDraining
}

// String implements fmt.Stringer.
func (s WorkerState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WorkerState.
func (s WorkerState) IsValid() bool {
	for _, candidate := range validWorkerStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWorkerState converts raw input into a WorkerState.
func ParseWorkerState(value string) (WorkerState, error) {
	for _, candidate := range validWorkerStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid worker state %q", value)
}
