package domain

import (
	"fmt"
	"strings"
)

// State is a conversation state of the ordering state machine.
type State string

const (
	StateIdle            State = "IDLE"
	StateCollectingOrder State = "COLLECTING_ORDER"
	StateCollectingName  State = "COLLECTING_NAME"
	StateCollectingEmail State = "COLLECTING_EMAIL"
	StateConfirmingOrder State = "CONFIRMING_ORDER"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateCollectingOrder, StateCollectingName, StateCollectingEmail, StateConfirmingOrder:
		return true
	}
	return false
}

// Session is the full conversation state round-tripped between turns.
type Session struct {
	ID      string        `json:"id"`
	State   State         `json:"state"`
	History []ChatMessage `json:"history"`
	Order   Order         `json:"order"`
}

// NewSession returns an empty session in the initial state.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateIdle}
}

// Normalize validates a session decoded from an untrusted source and
// recomputes derived fields.
func (s *Session) Normalize() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("domain: session id is empty")
	}
	if s.State == "" {
		s.State = StateIdle
	}
	if !s.State.Valid() {
		return fmt.Errorf("domain: unknown session state %q", s.State)
	}
	for _, l := range s.Order.Lines {
		if l.Quantity <= 0 || l.UnitPrice < 0 {
			return fmt.Errorf("domain: invalid order line %q", l.Flavor)
		}
	}
	s.Order.Recalculate()
	return nil
}

// Append adds a turn to the history.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, ChatMessage{Role: role, Content: content})
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.History = append([]ChatMessage(nil), s.History...)
	c.Order = s.Order.Clone()
	return &c
}
