package session

// State is the single value the presentation layer renders.
type State string

const (
	StateInput         State = "input"
	StateValidating    State = "validating"
	StateConnected     State = "connected"
	StateFileSelection State = "file-selection"
	StateTransferring  State = "transferring"
	StateCompleted     State = "completed"
	StateError         State = "error"
)

type Trigger int

const (
	TriggerSubmitCode Trigger = iota
	TriggerJoinSucceeded
	TriggerJoinFailed
	TriggerReconnectFailed
	TriggerFileChosen
	TriggerCancelChoice
	TriggerSendInitiated
	TriggerServerAck
	TriggerTransferFailed
	TriggerUserCancel
	TriggerSendAnother
	TriggerRetry
	TriggerReset
)

var triggerNames = [...]string{
	"submit-code", "join-succeeded", "join-failed", "reconnect-failed", "file-chosen",
	"cancel-choice", "send-initiated", "server-ack", "transfer-failed", "user-cancel",
	"send-another", "retry", "reset",
}

func (t Trigger) String() string {
	if int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return "unknown"
}

var transitions = map[State]map[Trigger]State{
	StateInput: {
		TriggerSubmitCode: StateValidating,
	},
	StateValidating: {
		TriggerJoinSucceeded: StateConnected,
		TriggerJoinFailed:    StateInput,
	},
	StateConnected: {
		TriggerFileChosen:      StateFileSelection,
		TriggerReconnectFailed: StateInput,
	},
	StateFileSelection: {
		TriggerCancelChoice:    StateConnected,
		TriggerSendInitiated:   StateTransferring,
		TriggerReconnectFailed: StateInput,
	},
	StateTransferring: {
		TriggerServerAck:      StateCompleted,
		TriggerTransferFailed: StateError,
		TriggerUserCancel:     StateError,
	},
	StateCompleted: {
		TriggerSendAnother: StateConnected,
	},
	StateError: {
		TriggerRetry: StateInput,
	},
}

// Next returns the state reached from s on t. Reset is legal everywhere.
// ok is false, and s is returned unchanged, for any pair not in the table.
func Next(s State, t Trigger) (next State, ok bool) {
	if t == TriggerReset {
		return StateInput, true
	}
	next, ok = transitions[s][t]
	if !ok {
		return s, false
	}
	return next, true
}

// Paired reports whether s expects a live socket.
func (s State) Paired() bool {
	return s == StateConnected || s == StateFileSelection
}

func (s State) String() string {
	return string(s)
}
