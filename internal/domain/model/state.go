package model

import (
	"fmt"
	"strings"
)

// LifecycleState represents where a job record sits in the application lifecycle.
//
// Valid state graph:
//
//	discovered ──► queued ──► applying ──► applied
//	     │            │           │
//	     │            │           ├──► failed ──► queued (retry below limit)
//	     └────────────┴───────────┴──► skipped
//
// applied and skipped are terminal states.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type LifecycleState string

const (
	// StateDiscovered indicates a posting was seen but not yet evaluated.
	StateDiscovered LifecycleState = "discovered"
	// StateQueued indicates a posting passed filters and awaits an application attempt.
	StateQueued LifecycleState = "queued"
	// StateApplying indicates an application attempt is in flight.
	StateApplying LifecycleState = "applying"
	// StateApplied indicates an application was submitted successfully.
	StateApplied LifecycleState = "applied"
	// StateFailed indicates the last application attempt failed.
	StateFailed LifecycleState = "failed"
	// StateSkipped indicates the posting was rejected by filters or a permanent
	// apply error and will never be attempted.
	StateSkipped LifecycleState = "skipped"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[LifecycleState][]LifecycleState{
	StateDiscovered: {StateQueued, StateSkipped},
	StateQueued:     {StateApplying, StateSkipped},
	StateApplying:   {StateApplied, StateFailed, StateSkipped},
	StateFailed:     {StateQueued},
	// applied and skipped are terminal, no outgoing transitions
}

// ParseState converts a raw string to a LifecycleState, returning an error for
// unknown values.
func ParseState(s string) (LifecycleState, error) {
	st := LifecycleState(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler for LifecycleState to allow env parsing.
func (s *LifecycleState) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Valid returns true if the LifecycleState is a known state.
func (s LifecycleState) Valid() bool {
	switch s {
	case StateDiscovered, StateQueued, StateApplying, StateApplied, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Terminal returns true when the state has no outgoing transitions.
func (s LifecycleState) Terminal() bool {
	return s == StateApplied || s == StateSkipped
}

// CanTransition returns true when moving from → to is permitted by the state machine.
func CanTransition(from, to LifecycleState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
