package raytrace

import "fmt"

// State is the phase of the per-frame state machine.
type State int

// Frame states, in execution order. Between frames the tracer is Idle.
const (
	StateIdle State = iota
	StateRebuildIfDirty
	StateUploadParameters
	StateDispatch
	StateComposite
)

var stateNames = [...]string{
	StateIdle:             "Idle",
	StateRebuildIfDirty:   "RebuildIfDirty",
	StateUploadParameters: "UploadParameters",
	StateDispatch:         "Dispatch",
	StateComposite:        "Composite",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
