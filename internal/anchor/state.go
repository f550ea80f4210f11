package anchor

// State is the lifecycle position of the owned anchor.
type State int

const (
	StateNone State = iota
	StateHosting
	StateHosted
	StateResolving
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateHosting:
		return "hosting"
	case StateHosted:
		return "hosted"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// InFlight reports whether the state waits on the anchor provider.
func (s State) InFlight() bool { return s == StateHosting || s == StateResolving }
