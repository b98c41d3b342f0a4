package relay

// State is the lifecycle stage of one connection
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateWaiting
	StatePaired
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
