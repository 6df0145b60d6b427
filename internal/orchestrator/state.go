package orchestrator

import "btwd/internal/ipc"

// State is the orchestrator's single owned mode, mutated only by the
// consumer goroutine running Run (§4.I, grounded on
// original_source/src/manager.rs's Manager.state).
type State int

const (
	Idle State = iota
	Capturing
	Transcribing
	Routing
	Executing
	Answering
	AwaitingConfirmation
)

func (s State) String() string {
	return ipc.DaemonState(s).String()
}

// PendingConfirmation is the one in-flight dangerous-command confirmation,
// ported from manager.rs's PendingCommand. Only one may exist at a time —
// a second wake event arriving while this is set is dropped (§5, §8
// Invariant 6).
type PendingConfirmation struct {
	RequestID   string
	CommandID   string
	Bindings    map[string]any
	Description string
}
