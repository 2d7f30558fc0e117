package client

// State is the lifecycle phase of the controller's single connection.
type State int

const (
	Disconnected State = iota
	Connecting
	AwaitingAuthAck
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingAuthAck:
		return "awaiting_auth_ack"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
