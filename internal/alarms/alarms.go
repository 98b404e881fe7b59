// Package alarms holds the static alarm definitions and the mutable alarm
// states derived from them at runtime.
//
// AlarmDefinition is immutable configuration (tag, description, priority,
// action, latching, auto-ack); AlarmState is the mutable runtime record
// (active, acknowledged, timestamp, value) driven by the safety evaluator.
package alarms

import "time"

// Priority orders alarms for annunciation and summary reporting.
type Priority int

const (
	Info Priority = iota
	Low
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Info:
		return "INFO"
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Action describes what the safety evaluator does when an alarm activates.
type Action int

const (
	LogOnly Action = iota
	Annunciate
	Divert
	Shutdown
	EmergencyStop
)

// Definition is immutable alarm configuration.
type Definition struct {
	Tag         string
	Description string
	Priority    Priority
	Action      Action
	// Latching alarms require acknowledgement before they can clear, even
	// after the underlying condition goes away.
	Latching bool
	// AutoAck alarms acknowledge themselves the instant they deactivate.
	AutoAck bool
}

// State is the mutable runtime record for one alarm definition.
//
// Invariants (spec.md §3):
//   - A latching alarm cannot clear (Active=false) until it has been
//     acknowledged, even if its condition has gone away.
//   - An inactive alarm is always considered acknowledged.
type State struct {
	Definition    Definition
	Active        bool
	Acknowledged  bool
	Timestamp     time.Time
	Value         float64
}

// NewState creates the initial (inactive, acknowledged) state for a
// definition.
func NewState(def Definition) *State {
	return &State{Definition: def, Acknowledged: true}
}

// Activate marks the alarm active, resetting its acknowledgement. No-op if
// already active (the original condition re-triggering does not reset the
// activation timestamp).
func (s *State) Activate(now time.Time, value float64) {
	if s.Active {
		return
	}
	s.Active = true
	s.Acknowledged = false
	s.Timestamp = now
	s.Value = value
}

// Deactivate clears the alarm, unless it is latching and not yet
// acknowledged.
func (s *State) Deactivate() {
	if !s.Definition.Latching || s.Acknowledged {
		s.Active = false
		s.Acknowledged = true
	}
}

// Acknowledge marks the alarm acknowledged. A non-latching alarm becomes
// inactive as soon as it is acknowledged; an active latching alarm stays
// active until the next Deactivate call.
func (s *State) Acknowledge() {
	s.Acknowledged = true
	if !s.Active || !s.Definition.Latching {
		s.Active = false
	}
}
