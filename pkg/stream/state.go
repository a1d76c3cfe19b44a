package stream

// State is the lifecycle of one turn's stream.
//
//	Idle → Connecting → Streaming → {Done | Failed}
//
// Streaming loops on every token, ignored line or error frame. Done and
// Failed are terminal.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
