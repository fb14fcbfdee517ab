package relay

// ControllerState tracks legal command sequencing for one controller
// connection. It exists only for the lifetime of that connection.
//
// Legal transitions: Unpaired -> Paired -> Played <-> Stopped, with Unpair
// accepted from any paired state. Every rejected command resets the state to
// Unpaired, since the engine responds to a rejection by force-unpairing.
type ControllerState int

const (
	StateUnpaired ControllerState = iota
	StatePaired
	StatePlayed
	StateStopped
)

// String returns the state name for logs.
func (s ControllerState) String() string {
	switch s {
	case StateUnpaired:
		return "unpaired"
	case StatePaired:
		return "paired"
	case StatePlayed:
		return "played"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pair reports whether a Pair command is accepted in the current state.
func (s *ControllerState) Pair() bool {
	if *s == StateUnpaired {
		*s = StatePaired
		return true
	}
	*s = StateUnpaired
	return false
}

// Play reports whether a Play command is accepted in the current state.
func (s *ControllerState) Play() bool {
	switch *s {
	case StatePaired, StateStopped:
		*s = StatePlayed
		return true
	default:
		*s = StateUnpaired
		return false
	}
}

// Stop reports whether a Stop command is accepted in the current state.
func (s *ControllerState) Stop() bool {
	if *s == StatePlayed {
		*s = StateStopped
		return true
	}
	*s = StateUnpaired
	return false
}

// Unpair reports whether an Unpair command is accepted in the current state.
// The state ends up Unpaired either way.
func (s *ControllerState) Unpair() bool {
	switch *s {
	case StatePaired, StatePlayed, StateStopped:
		*s = StateUnpaired
		return true
	default:
		*s = StateUnpaired
		return false
	}
}

// Apply runs one command through the transition table and reports whether it
// was accepted.
func (s *ControllerState) Apply(cmd Command) bool {
	switch cmd {
	case CommandPair:
		return s.Pair()
	case CommandPlay:
		return s.Play()
	case CommandStop:
		return s.Stop()
	case CommandUnpair:
		return s.Unpair()
	default:
		*s = StateUnpaired
		return false
	}
}
