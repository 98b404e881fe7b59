// Package statemachine drives the LACT unit through its custody-transfer
// lifecycle: IDLE, STARTUP, RUNNING, DIVERT, PROVING, SHUTDOWN, and
// E_STOP, each with a fixed legal-transition table.
package statemachine

import (
	"fmt"
	"sync"
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// State is one node of the custody-transfer lifecycle.
type State uint8

const (
	Idle State = iota
	Startup
	Running
	Divert
	Proving
	Shutdown
	EStop
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Startup:
		return "STARTUP"
	case Running:
		return "RUNNING"
	case Divert:
		return "DIVERT"
	case Proving:
		return "PROVING"
	case Shutdown:
		return "SHUTDOWN"
	case EStop:
		return "E_STOP"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// transitions is the fixed legal-transition table. It is not monotonic:
// DIVERT and PROVING both return to RUNNING.
var transitions = map[State][]State{
	Idle:     {Startup, EStop},
	Startup:  {Running, Idle, EStop},
	Running:  {Divert, Proving, Shutdown, EStop},
	Divert:   {Running, Shutdown, EStop},
	Proving:  {Running, Shutdown, EStop},
	Shutdown: {Idle, EStop},
	EStop:    {Idle},
}

func isLegal(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine holds the mutable state-machine state and drives the sub-step
// sequences for startup and shutdown.
type Machine struct {
	mu sync.Mutex

	current   State
	enteredAt time.Time
	justMoved bool

	pendingRequest *State

	startupStep  int
	startupSince time.Time

	shutdownStep  int
	shutdownSince time.Time

	estopClearedSince time.Time
	estopClearing     bool

	now func() time.Time
}

// New creates a Machine starting in IDLE.
func New() *Machine {
	return &Machine{current: Idle, enteredAt: time.Now(), now: time.Now}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// RequestTransition queues a transition request for the next Execute
// call. An illegal request is silently ignored (logged by the caller if
// desired), matching the original's defensive behavior: a rejected
// request never panics the scan loop.
func (m *Machine) RequestTransition(to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isLegal(m.current, to) {
		return false
	}
	m.pendingRequest = &to
	return true
}

func (m *Machine) transition(to State, ds *tagstore.Store) {
	ds.WriteString(tagstore.PrevState, m.current.String())
	m.current = to
	m.enteredAt = m.now()
	m.justMoved = true
	ds.WriteString(tagstore.LACTState, m.current.String())
	if to == Startup {
		m.startupStep = 0
		m.startupSince = m.now()
	}
	if to == Shutdown {
		m.shutdownStep = 0
		m.shutdownSince = m.now()
	}
}

// Execute advances the state machine by exactly one scan cycle: it
// applies a pending request (an E-Stop condition always overrides),
// then, unless a transition just occurred this cycle, dispatches to the
// current state's handler.
//
// estopActive is the live condition of DI_ESTOP (already debounced by
// the safety evaluator is not required here; this machine applies its
// own 2-second clear debounce before leaving E_STOP).
func (m *Machine) Execute(ds *tagstore.Store, sp *setpoints.Setpoints, estopActive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.justMoved = false

	if estopActive && m.current != EStop {
		m.transition(EStop, ds)
	} else if m.pendingRequest != nil {
		req := *m.pendingRequest
		m.pendingRequest = nil
		if isLegal(m.current, req) {
			m.transition(req, ds)
		}
	}

	if m.justMoved {
		return
	}

	switch m.current {
	case Idle:
		// No autonomous activity; waits for an operator start command.
	case Startup:
		m.handleStartup(ds, sp)
	case Running:
		m.handleRunning(ds)
	case Divert:
		m.handleDivert(ds)
	case Proving:
		// Proving progression is owned by internal/prover; the state
		// machine only reacts to the prover's completion signal via
		// RequestTransition.
	case Shutdown:
		m.handleShutdown(ds, sp)
	case EStop:
		m.handleEStop(ds, estopActive, sp)
	}
}

func (m *Machine) handleStartup(ds *tagstore.Store, sp *setpoints.Setpoints) {
	elapsed := m.now().Sub(m.startupSince).Seconds()
	switch m.startupStep {
	case 0: // verify inlet/outlet valve-open limits, else abort to IDLE
		if ds.ReadBool(tagstore.DIInletValveOpen) && ds.ReadBool(tagstore.DIOutletValveOpen) {
			m.advanceStartup(1)
		} else {
			m.transitionFromStartupToIdle(ds)
		}
	case 1: // command divert valve to DIVERT
		ds.WriteBool(tagstore.DODivertCmd, true)
		m.advanceStartup(2)
	case 2: // wait for divert-position limit, or abort on travel timeout
		if ds.ReadBool(tagstore.DIDivertDivert) {
			m.advanceStartup(3)
		} else if elapsed > sp.DivertTravelTimeoutSec {
			m.transitionFromStartupToIdle(ds)
		}
	case 3: // wait pump start delay, then command pump start
		if elapsed >= sp.PumpStartDelaySec {
			ds.WriteBool(tagstore.DOPumpStart, true)
			m.advanceStartup(4)
		}
	case 4: // wait for pump run feedback, or abort on timeout
		if ds.ReadBool(tagstore.DIPumpRunning) {
			m.advanceStartup(5)
		} else if elapsed > sp.PumpStartDelaySec+10.0 {
			m.transitionFromStartupToIdle(ds)
		}
	case 5: // wait for BS&W to stabilize, then settle into RUNNING or DIVERT
		if elapsed > sp.PumpStartDelaySec+sp.BSWSampleDelaySec+10.0 {
			if ds.ReadFloat(tagstore.BSWPct) < sp.BSWDivertPct {
				ds.WriteBool(tagstore.DODivertCmd, false)
				ds.WriteFloat(tagstore.BatchStartTime, float64(m.now().Unix()))
				m.transition(Running, ds)
			} else {
				m.transition(Divert, ds)
			}
		}
	}
}

func (m *Machine) advanceStartup(step int) {
	m.startupStep = step
	m.startupSince = m.now()
}

func (m *Machine) transitionFromStartupToIdle(ds *tagstore.Store) {
	ds.WriteBool(tagstore.DOPumpStart, false)
	m.current = Idle
	m.enteredAt = m.now()
	ds.WriteString(tagstore.LACTState, m.current.String())
}

func (m *Machine) handleRunning(ds *tagstore.Store) {
	ds.WriteBool(tagstore.DODivertCmd, false)
	ds.WriteBool(tagstore.DOStatusGreen, true)
	start := ds.ReadFloat(tagstore.BatchStartTime)
	if start > 0 {
		ds.WriteFloat(tagstore.BatchElapsedSec, float64(m.now().Unix())-start)
	}
}

func (m *Machine) handleDivert(ds *tagstore.Store) {
	ds.WriteBool(tagstore.DODivertCmd, true)
	ds.WriteBool(tagstore.DOStatusGreen, false)
}

func (m *Machine) handleShutdown(ds *tagstore.Store, sp *setpoints.Setpoints) {
	elapsed := m.now().Sub(m.shutdownSince).Seconds()
	switch m.shutdownStep {
	case 0: // divert to off-spec for protection during coast-down
		ds.WriteBool(tagstore.DODivertCmd, true)
		ds.WriteBool(tagstore.DOStatusGreen, false)
		ds.WriteBool(tagstore.DOSampleSol, false)
		ds.WriteBool(tagstore.DOSampleMixPump, false)
		m.shutdownStep = 1
		m.shutdownSince = m.now()
	case 1: // wait pump stop delay, then command pump stop
		if elapsed >= sp.PumpStopDelaySec {
			ds.WriteBool(tagstore.DOPumpStart, false)
			m.shutdownStep = 2
			m.shutdownSince = m.now()
		}
	case 2: // wait for pump run feedback to clear, or force after timeout
		if !ds.ReadBool(tagstore.DIPumpRunning) || elapsed > sp.PumpStopDelaySec+15.0 {
			m.current = Idle
			m.enteredAt = m.now()
			ds.WriteString(tagstore.LACTState, m.current.String())
		}
	}
}

func (m *Machine) handleEStop(ds *tagstore.Store, estopActive bool, sp *setpoints.Setpoints) {
	ds.WriteBool(tagstore.DOPumpStart, false)
	ds.WriteBool(tagstore.DODivertCmd, true)
	ds.WriteBool(tagstore.DOSampleSol, false)
	ds.WriteBool(tagstore.DOSampleMixPump, false)
	ds.WriteBool(tagstore.DOProverValveCmd, false)
	ds.WriteBool(tagstore.DOStatusGreen, false)
	ds.WriteBool(tagstore.DOAlarmBeacon, true)
	ds.WriteBool(tagstore.DOAlarmHorn, true)

	if estopActive {
		m.estopClearing = false
		return
	}
	if !m.estopClearing {
		m.estopClearing = true
		m.estopClearedSince = m.now()
	}
}

// ReadyToExitEStop reports whether the 2-second clear debounce has
// elapsed, i.e. whether an operator's reset command would now succeed.
func (m *Machine) ReadyToExitEStop(estopActive bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != EStop || estopActive {
		return false
	}
	return m.estopClearing && m.now().Sub(m.estopClearedSince).Seconds() > 2.0
}
