package models

// State is the orchestrator's current activity. Only one non-idle state is
// ever active.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateBuilding
	StateCreating
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateBuilding:
		return "building"
	case StateCreating:
		return "creating"
	case StateDeleting:
		return "deleting"
	default:
		return "idle"
	}
}
