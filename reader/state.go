package reader

// State is a step of the session lifecycle:
// DISCONNECTED -> CONNECTING -> SUBSCRIBING -> STREAMING -> (ERROR|CLOSED).
// ERROR loops back through DISCONNECTED unless the context was cancelled.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateStreaming:
		return "STREAMING"
	case StateError:
		return "ERROR"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
