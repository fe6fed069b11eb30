package socket

import (
	"encoding/json"
	"fmt"
)

// State is the connection state of a socket
type State uint8

const (
	Idle State = iota
	Resolving
	Connecting
	Open
	Closing
	Closed
	Failed
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalJSON serializes a State as its string form
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the string form of a State
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st := Idle; st <= Failed; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", name)
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// transitions lists the allowed edges of the state machine
var transitions = map[State][]State{
	Idle:       {Resolving, Open, Closing},
	Resolving:  {Connecting, Failed, Closing},
	Connecting: {Open, Failed, Closing},
	Open:       {Closing, Failed},
	Closing:    {Closed},
}

// CanMove reports whether the state machine has an edge from s to next
func (s State) CanMove(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
