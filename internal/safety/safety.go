// Package safety runs the fixed battery of protective checks every scan
// cycle, activating and clearing alarms and raising ephemeral transition
// requests for the state machine. Apart from the alarm beacon and horn, it
// never actuates outputs directly: shutdown and divert are requests the
// state machine decides whether and how to honor.
package safety

import (
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// Evaluator runs the safety check battery against the tag store each
// cycle.
type Evaluator struct {
	ds  *tagstore.Store
	sp  *setpoints.Setpoints
	reg *alarms.Registry
	now func() time.Time

	// ShutdownRequested and DivertRequested are reset at the start of
	// every Execute call and set by individual checks. The scan engine
	// reads them immediately after Execute and must not retain them
	// across cycles.
	ShutdownRequested bool
	DivertRequested   bool

	hornSilenced   bool
	hornSilencedAt time.Time
}

// New creates an Evaluator over the given tag store, setpoints, and alarm
// registry. The setpoints pointer is read each cycle, so callers may swap
// its contents (via an operator update) between cycles without
// reconstructing the evaluator.
func New(ds *tagstore.Store, sp *setpoints.Setpoints, reg *alarms.Registry) *Evaluator {
	return &Evaluator{ds: ds, sp: sp, reg: reg, now: time.Now}
}

// Execute runs every safety check once, then updates the alarm summary
// tags and drives the annunciator outputs.
func (e *Evaluator) Execute() {
	e.ShutdownRequested = false
	e.DivertRequested = false

	e.checkEStop()
	e.checkPump()
	e.checkBSW()
	e.checkPressures()
	e.checkTemperatures()
	e.checkFlow()
	e.checkDivertValve()
	e.checkSampler()
	e.checkAirEliminator()

	e.updateAlarmSummary()
	e.driveAnnunciators()
}

func (e *Evaluator) activate(tag string, value float64) {
	s := e.reg.Get(tag)
	if s == nil {
		return
	}
	wasActive := s.Active
	s.Activate(e.now(), value)
	if !wasActive {
		switch s.Definition.Action {
		case alarms.Shutdown, alarms.EmergencyStop:
			e.ShutdownRequested = true
		case alarms.Divert:
			e.DivertRequested = true
		}
	}
	// An already-active alarm whose action demands shutdown/divert must
	// keep re-asserting the request every cycle its condition holds;
	// ShutdownRequested/DivertRequested are ephemeral per-cycle flags.
	if s.Active {
		switch s.Definition.Action {
		case alarms.Shutdown, alarms.EmergencyStop:
			e.ShutdownRequested = true
		case alarms.Divert:
			e.DivertRequested = true
		}
	}
}

func (e *Evaluator) deactivate(tag string) {
	if s := e.reg.Get(tag); s != nil {
		s.Deactivate()
	}
}

func (e *Evaluator) checkEStop() {
	if e.ds.ReadBool(tagstore.DIEstop) {
		e.activate("ALM_ESTOP", 1)
	} else {
		e.deactivate("ALM_ESTOP")
	}
}

func (e *Evaluator) checkPump() {
	running := e.ds.ReadBool(tagstore.DIPumpRunning)
	overload := e.ds.ReadBool(tagstore.DIPumpOverload)

	if overload {
		e.activate("ALM_PUMP_OVERLOAD", 1)
	} else {
		e.deactivate("ALM_PUMP_OVERLOAD")
	}

	// Fail-to-start: the command was issued more than the configured
	// start delay ago (its own write timestamp is the edge marker) and
	// the pump still shows no run feedback.
	cmdEntry, ok := e.ds.ReadEntry(tagstore.DOPumpStart)
	if ok && cmdEntry.Value.AsBool() && !running {
		if e.now().Sub(cmdEntry.Timestamp).Seconds() > e.sp.PumpStartDelaySec {
			e.activate("ALM_PUMP_FAIL_START", 1)
		}
	} else {
		e.deactivate("ALM_PUMP_FAIL_START")
	}
}

func (e *Evaluator) checkBSW() {
	entry, _ := e.ds.ReadEntry(tagstore.AIBSWProbe)
	if entry.Quality == tagstore.Bad {
		e.activate("ALM_BSW_PROBE_FAIL", 0)
		return
	}
	e.deactivate("ALM_BSW_PROBE_FAIL")

	bsw := e.ds.ReadFloat(tagstore.BSWPct)
	if bsw >= e.sp.BSWDivertPct {
		e.activate("ALM_BSW_DIVERT", bsw)
	} else {
		e.deactivate("ALM_BSW_DIVERT")
	}
	if bsw >= e.sp.BSWAlarmPct {
		e.activate("ALM_BSW_HIGH", bsw)
	} else {
		e.deactivate("ALM_BSW_HIGH")
	}
}

func (e *Evaluator) checkPressures() {
	running := e.ds.ReadBool(tagstore.DIPumpRunning)

	inlet := e.ds.ReadFloat(tagstore.AIInletPress)
	if running && inlet < e.sp.InletPressLoPSI {
		e.activate("ALM_INLET_PRESS_LO", inlet)
	} else {
		e.deactivate("ALM_INLET_PRESS_LO")
	}
	if inlet > e.sp.InletPressHiPSI {
		e.activate("ALM_INLET_PRESS_HI", inlet)
	} else {
		e.deactivate("ALM_INLET_PRESS_HI")
	}

	loop := e.ds.ReadFloat(tagstore.AILoopHiPress)
	if loop > e.sp.LoopPressHiPSI {
		e.activate("ALM_LOOP_PRESS_HI", loop)
	} else {
		e.deactivate("ALM_LOOP_PRESS_HI")
	}

	outlet := e.ds.ReadFloat(tagstore.AIOutletPress)
	if running && outlet < e.sp.OutletPressLoPSI {
		e.activate("ALM_OUTLET_PRESS_LO", outlet)
	} else {
		e.deactivate("ALM_OUTLET_PRESS_LO")
	}

	dp := e.ds.ReadFloat(tagstore.AIStrainerDP)
	if dp > e.sp.StrainerDPHiPSI {
		e.activate("ALM_STRAINER_DP_HI", dp)
	} else {
		e.deactivate("ALM_STRAINER_DP_HI")
	}
}

func (e *Evaluator) checkTemperatures() {
	temp := e.ds.ReadFloat(tagstore.TempCorrectedF)
	if temp < e.sp.TempLoAlarmF {
		e.activate("ALM_TEMP_LO", temp)
	} else {
		e.deactivate("ALM_TEMP_LO")
	}
	if temp > e.sp.TempHiAlarmF {
		e.activate("ALM_TEMP_HI", temp)
	} else {
		e.deactivate("ALM_TEMP_HI")
	}

	test := e.ds.ReadFloat(tagstore.AITestThermo)
	meter := e.ds.ReadFloat(tagstore.AIMeterTemp)
	delta := meter - test
	if delta < 0 {
		delta = -delta
	}
	if delta > e.sp.TempMaxDeltaF {
		e.activate("ALM_TEMP_DELTA", delta)
	} else {
		e.deactivate("ALM_TEMP_DELTA")
	}
}

func (e *Evaluator) checkFlow() {
	running := e.ds.ReadBool(tagstore.DIPumpRunning)
	if !running {
		e.deactivate("ALM_FLOW_LO")
		e.deactivate("ALM_FLOW_HI")
		e.deactivate("ALM_NO_FLOW")
		return
	}

	rate := e.ds.ReadFloat(tagstore.FlowRateBPH)
	if rate < e.sp.MeterMinFlowBPH {
		e.activate("ALM_FLOW_LO", rate)
	} else {
		e.deactivate("ALM_FLOW_LO")
	}
	if rate > e.sp.MeterMaxFlowBPH {
		e.activate("ALM_FLOW_HI", rate)
	} else {
		e.deactivate("ALM_FLOW_HI")
	}

	// No-flow: the pump's own run-feedback timestamp is the edge marker
	// for how long it has been running continuously.
	pumpEntry, ok := e.ds.ReadEntry(tagstore.DIPumpRunning)
	if ok && rate <= 0 {
		if e.now().Sub(pumpEntry.Timestamp).Seconds() > e.sp.MeterNoFlowTimeoutSec {
			e.activate("ALM_NO_FLOW", rate)
		}
	} else {
		e.deactivate("ALM_NO_FLOW")
	}
}

func (e *Evaluator) checkDivertValve() {
	cmdEntry, ok := e.ds.ReadEntry(tagstore.DODivertCmd)
	if !ok {
		e.deactivate("ALM_DIVERT_FAIL")
		return
	}
	wantDivert := cmdEntry.Value.AsBool()
	sales := e.ds.ReadBool(tagstore.DIDivertSales)
	divert := e.ds.ReadBool(tagstore.DIDivertDivert)

	atTarget := (wantDivert && divert) || (!wantDivert && sales)
	if atTarget {
		e.deactivate("ALM_DIVERT_FAIL")
		return
	}
	if e.now().Sub(cmdEntry.Timestamp).Seconds() > e.sp.DivertTravelTimeoutSec {
		e.activate("ALM_DIVERT_FAIL", 1)
	} else {
		e.deactivate("ALM_DIVERT_FAIL")
	}
}

func (e *Evaluator) checkSampler() {
	if e.ds.ReadBool(tagstore.DISamplePotHi) {
		e.activate("ALM_SAMPLE_POT_FULL", 1)
	} else {
		e.deactivate("ALM_SAMPLE_POT_FULL")
	}
}

func (e *Evaluator) checkAirEliminator() {
	if e.ds.ReadBool(tagstore.DIAirElimFloat) {
		e.activate("ALM_GAS_DETECTED", 1)
	} else {
		e.deactivate("ALM_GAS_DETECTED")
	}
}

func (e *Evaluator) updateAlarmSummary() {
	active := e.reg.Active()
	unacked := e.reg.Unacknowledged()
	sum := alarms.Summarize(active)
	e.ds.WriteInt(tagstore.AlarmActiveCount, int64(sum.ActiveCount))
	e.ds.WriteInt(tagstore.AlarmUnackCount, int64(len(unacked)))
	e.ds.WriteInt(tagstore.HighestAlarmPri, int64(sum.HighestPri))
}

// driveAnnunciators sets the beacon and horn outputs. The horn silences
// once an operator silences it, but rearms immediately if an alarm newer
// than the silence request becomes unacknowledged.
func (e *Evaluator) driveAnnunciators() {
	unacked := e.reg.Unacknowledged()
	shouldAnnunciate := alarms.ShouldAnnunciate(unacked)

	e.ds.WriteBool(tagstore.DOAlarmBeacon, shouldAnnunciate)

	if !shouldAnnunciate {
		e.hornSilenced = false
		e.ds.WriteBool(tagstore.DOAlarmHorn, false)
		return
	}

	if e.hornSilenced {
		for _, s := range unacked {
			if s.Timestamp.After(e.hornSilencedAt) {
				e.hornSilenced = false
				break
			}
		}
	}

	e.ds.WriteBool(tagstore.DOAlarmHorn, !e.hornSilenced)
}

// SilenceHorn silences the horn until a newer alarm activates.
func (e *Evaluator) SilenceHorn() {
	e.hornSilenced = true
	e.hornSilencedAt = e.now()
}

// AcknowledgeAlarm acknowledges a single alarm by tag. Reports false if
// the tag is unknown.
func (e *Evaluator) AcknowledgeAlarm(tag string) bool {
	s := e.reg.Get(tag)
	if s == nil {
		return false
	}
	s.Acknowledge()
	return true
}

// AcknowledgeAll acknowledges every currently active alarm.
func (e *Evaluator) AcknowledgeAll() {
	e.reg.AcknowledgeAll()
}

// ActiveAlarms returns every currently active alarm state.
func (e *Evaluator) ActiveAlarms() []*alarms.State {
	return e.reg.Active()
}

// UnacknowledgedAlarms returns every active-but-unacknowledged alarm state.
func (e *Evaluator) UnacknowledgedAlarms() []*alarms.State {
	return e.reg.Unacknowledged()
}
