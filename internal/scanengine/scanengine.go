// Package scanengine runs the fixed-period scan cycle that ties every
// other package together: read inputs, evaluate safety, drive the state
// machine, run the process modules in a fixed order, then write outputs.
package scanengine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/bsw"
	"github.com/scstechnologies/lactd/internal/divert"
	"github.com/scstechnologies/lactd/internal/flow"
	"github.com/scstechnologies/lactd/internal/historian"
	"github.com/scstechnologies/lactd/internal/iobridge"
	"github.com/scstechnologies/lactd/internal/observability"
	"github.com/scstechnologies/lactd/internal/pressure"
	"github.com/scstechnologies/lactd/internal/prover"
	"github.com/scstechnologies/lactd/internal/pump"
	"github.com/scstechnologies/lactd/internal/safety"
	"github.com/scstechnologies/lactd/internal/sampler"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/statemachine"
	"github.com/scstechnologies/lactd/internal/tagstore"
	"github.com/scstechnologies/lactd/internal/temperature"
	"github.com/scstechnologies/lactd/internal/validate"
)

// Engine wires the tag store, I/O bridge, safety evaluator, state
// machine, and process modules into a single scan loop.
type Engine struct {
	ds     *tagstore.Store
	bridge *iobridge.Bridge
	sp     setpoints.Setpoints
	alarms *alarms.Registry
	safety *safety.Evaluator
	sm     *statemachine.Machine

	pressure    *pressure.Monitor
	temperature *temperature.Monitor
	flow        *flow.Totalizer
	bsw         *bsw.Monitor
	sampler     *sampler.Sampler
	divert      *divert.Valve
	pump        *pump.Supervisor
	prover      *prover.Prover

	log *zap.Logger

	scanPeriod   time.Duration
	overruns     uint64
	scanCount    uint64
	lastScanTime time.Duration
	maxScanTime  time.Duration

	hist            *historian.DB
	validator       *validate.Validator
	lastState       statemachine.State
	lastAlarmActive map[string]bool

	metrics *observability.Metrics
}

// New wires a complete Engine. The setpoints value is copied into the
// engine; use Setpoints/ReplaceSetpoints to read and replace it between
// cycles.
func New(ds *tagstore.Store, bridge *iobridge.Bridge, sp setpoints.Setpoints, reg *alarms.Registry, log *zap.Logger) *Engine {
	e := &Engine{
		ds:         ds,
		bridge:     bridge,
		sp:         sp,
		alarms:     reg,
		log:        log,
		scanPeriod: time.Duration(sp.ScanRateMS) * time.Millisecond,
	}
	e.safety = safety.New(ds, &e.sp, reg)
	e.sm = statemachine.New()
	e.pressure = pressure.New()
	e.temperature = temperature.New()
	e.flow = flow.New()
	e.bsw = bsw.New()
	e.sampler = sampler.New()
	e.divert = divert.New()
	e.pump = pump.New(reg)
	e.prover = prover.New(reg)
	return e
}

// Setpoints returns a copy of the engine's current setpoints.
func (e *Engine) Setpoints() setpoints.Setpoints { return e.sp }

// SetAudit wires the optional historian/validator pair used to persist
// state transitions and proving certificates. Either may be nil; a nil
// historian disables persistence entirely (used by tests).
func (e *Engine) SetAudit(hist *historian.DB, v *validate.Validator) {
	e.hist = hist
	e.validator = v
}

// SetMetrics wires the optional Prometheus metrics sink used to instrument
// scan duration, state transitions, pump starts, and proving outcomes
// directly from the points in the scan cycle where they occur. May be
// left unset; every call site below is a nil check away from a no-op.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// ReplaceSetpoints swaps the live setpoints, e.g. after an operator save.
func (e *Engine) ReplaceSetpoints(sp setpoints.Setpoints) { e.sp = sp }

// State returns the current custody-transfer state.
func (e *Engine) State() statemachine.State { return e.sm.Current() }

// RequestStart requests the IDLE->STARTUP transition.
func (e *Engine) RequestStart() bool { return e.sm.RequestTransition(statemachine.Startup) }

// RequestStop requests transition to SHUTDOWN from whatever state allows
// it.
func (e *Engine) RequestStop() bool { return e.sm.RequestTransition(statemachine.Shutdown) }

// RequestProve requests the RUNNING->PROVING transition and starts the
// prover sequence.
func (e *Engine) RequestProve() bool {
	if !e.sm.RequestTransition(statemachine.Proving) {
		return false
	}
	e.prover.Start()
	return true
}

// RequestEStopReset requests the E_STOP->IDLE transition. Succeeds only
// once the state machine's clear debounce has elapsed.
func (e *Engine) RequestEStopReset() bool {
	if !e.sm.ReadyToExitEStop(e.ds.ReadBool(tagstore.DIEstop)) {
		return false
	}
	return e.sm.RequestTransition(statemachine.Idle)
}

// AcknowledgeAlarm acknowledges a single alarm.
func (e *Engine) AcknowledgeAlarm(tag string) bool { return e.safety.AcknowledgeAlarm(tag) }

// AcknowledgeAllAlarms acknowledges every active alarm.
func (e *Engine) AcknowledgeAllAlarms() { e.safety.AcknowledgeAll() }

// SilenceHorn silences the alarm horn until a newer alarm activates.
func (e *Engine) SilenceHorn() { e.safety.SilenceHorn() }

// SingleScan runs exactly one scan cycle, in the fixed phase order:
// read inputs, evaluate safety, apply safety-driven transition requests,
// advance the state machine, run process modules, write outputs. It
// tracks per-cycle timing (for GetStatus) around the fixed dispatch.
func (e *Engine) SingleScan() {
	start := time.Now()
	e.runScanGuarded()
	elapsed := time.Since(start)

	e.scanCount++
	e.lastScanTime = elapsed
	if elapsed > e.maxScanTime {
		e.maxScanTime = elapsed
	}
	if e.metrics != nil {
		e.metrics.ScanDurationSeconds.Observe(elapsed.Seconds())
	}
}

// runScanGuarded runs one scan cycle, recovering from any panic so a single
// bad cycle degrades to fail-safe outputs instead of taking down the scan
// loop. The loop itself keeps ticking on the next period regardless.
func (e *Engine) runScanGuarded() {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Error("scan cycle panicked, forcing fail-safe outputs",
					zap.Any("panic", r))
			}
			e.safeState()
		}
	}()
	e.doScan()
}

func (e *Engine) doScan() {
	e.bridge.ReadInputs(e.ds)

	e.safety.Execute()
	e.recordAlarmEvents()

	beforeState := e.sm.Current()
	state := beforeState
	if e.safety.ShutdownRequested && state != statemachine.EStop && state != statemachine.Shutdown && state != statemachine.Idle {
		e.sm.RequestTransition(statemachine.Shutdown)
	}
	if e.safety.DivertRequested && state == statemachine.Running {
		e.sm.RequestTransition(statemachine.Divert)
	}

	e.sm.Execute(e.ds, &e.sp, e.ds.ReadBool(tagstore.DIEstop))
	state = e.sm.Current()
	e.recordTransition(beforeState, state)

	e.pressure.Execute(e.ds, &e.sp)
	e.temperature.Execute(e.ds, &e.sp)
	e.flow.Execute(e.ds, &e.sp)
	e.bsw.Execute(e.ds, &e.sp)

	if state == statemachine.Running || state == statemachine.Divert {
		e.sampler.Execute(e.ds, &e.sp, state)
	}
	if state == statemachine.Proving {
		e.prover.Execute(e.ds, &e.sp)
		if e.prover.Done() {
			e.recordProvingCertificate()
			e.sm.RequestTransition(statemachine.Running)
		}
	}

	e.divert.Execute(e.ds)
	e.pump.Execute(e.ds, &e.sp)
	if e.metrics != nil {
		e.metrics.PumpStartsLastHour.Set(float64(e.pump.StartsInLastHour()))
	}

	if err := e.bridge.WriteOutputs(e.ds); err != nil && e.log != nil {
		e.log.Warn("io output write failed", zap.Error(err))
	}
}

// safeState forces every actuated output to its fail-safe value: pump
// stopped, divert to the off-spec side, sampler and prover idle, and the
// annunciators silent. It runs once after a panicking scan cycle and when
// Run returns. The state machine's E_STOP handler drives the same pump,
// divert, sampler and prover outputs every cycle it is active, but turns
// the beacon and horn on.
func (e *Engine) safeState() {
	e.ds.WriteBool(tagstore.DOPumpStart, false)
	e.ds.WriteBool(tagstore.DODivertCmd, true)
	e.ds.WriteBool(tagstore.DOSampleSol, false)
	e.ds.WriteBool(tagstore.DOSampleMixPump, false)
	e.ds.WriteBool(tagstore.DOProverValveCmd, false)
	e.ds.WriteBool(tagstore.DOAlarmBeacon, false)
	e.ds.WriteBool(tagstore.DOAlarmHorn, false)
	e.ds.WriteBool(tagstore.DOStatusGreen, false)
	if err := e.bridge.WriteOutputs(e.ds); err != nil && e.log != nil {
		e.log.Warn("failed to write fail-safe outputs", zap.Error(err))
	}
}

// Run drives the scan loop at a fixed period until ctx is canceled,
// using a monotonic clock and sleeping only the remainder of the period
// so timing debt never accumulates across cycles. A cycle that overruns
// its period runs immediately again rather than waiting out a second
// full period.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.scanPeriod)
	defer ticker.Stop()
	defer e.safeState()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SingleScan()
			if e.lastScanTime > e.scanPeriod {
				e.overruns++
				if e.log != nil {
					e.log.Warn("scan cycle overrun",
						zap.Duration("elapsed", e.lastScanTime),
						zap.Duration("period", e.scanPeriod),
						zap.Uint64("total_overruns", e.overruns))
				}
			}
		}
	}
}

// recordAlarmEvents persists one audit record per alarm that activated or
// deactivated this cycle, when an historian is wired. The activity map is
// maintained regardless, so the edge detection stays correct even while no
// historian is attached (e.g. in tests).
func (e *Engine) recordAlarmEvents() {
	if e.lastAlarmActive == nil {
		e.lastAlarmActive = make(map[string]bool)
	}
	for _, s := range e.alarms.All() {
		was := e.lastAlarmActive[s.Definition.Tag]
		if was == s.Active {
			continue
		}
		e.lastAlarmActive[s.Definition.Tag] = s.Active
		if e.hist == nil {
			continue
		}
		ev := historian.AlarmEvent{
			Tag:         s.Definition.Tag,
			Description: s.Definition.Description,
			Priority:    s.Definition.Priority.String(),
			Active:      s.Active,
			Value:       s.Value,
			Timestamp:   time.Now(),
		}
		if err := e.timedAppend(func() error { return e.hist.AppendAlarmEvent(ev) }); err != nil && e.log != nil {
			e.log.Warn("failed to persist alarm event", zap.Error(err))
		}
	}
}

// timedAppend runs a historian write, observing its latency when a
// metrics sink is wired. write is always run regardless of e.metrics.
func (e *Engine) timedAppend(write func() error) error {
	if e.metrics == nil {
		return write()
	}
	start := time.Now()
	err := write()
	e.metrics.StorageWriteLatency.Observe(time.Since(start).Seconds())
	return err
}

// recordTransition persists a validated audit record of a custody-transfer
// state change, when an historian is wired. Validation/hashing failures
// are logged but never block the scan loop — the tag store and state
// machine remain the authoritative live state regardless.
func (e *Engine) recordTransition(from, to statemachine.State) {
	if from == to {
		return
	}
	e.lastState = to
	if e.metrics != nil {
		e.metrics.StateTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	}
	if e.hist == nil {
		return
	}
	rec := historian.StateTransition{FromState: from.String(), ToState: to.String(), Timestamp: time.Now()}
	if e.validator != nil {
		vrec := &validate.TransitionRecord{
			FromState: rec.FromState,
			ToState:   rec.ToState,
			Timestamp: rec.Timestamp,
			Values: map[string]float64{
				"bsw_pct":       e.ds.ReadFloat(tagstore.BSWPct),
				"flow_rate_bph": e.ds.ReadFloat(tagstore.FlowRateBPH),
			},
		}
		if err := e.validator.Validate(vrec); err != nil {
			if e.log != nil {
				e.log.Warn("transition failed validation, recording unchained", zap.Error(err))
			}
		} else {
			rec.Hash = vrec.Hash
			rec.ParentHash = vrec.ParentHash
		}
	}
	if err := e.timedAppend(func() error { return e.hist.AppendStateTransition(rec) }); err != nil && e.log != nil {
		e.log.Warn("failed to persist state transition", zap.Error(err))
	}
}

// recordProvingCertificate persists the outcome of a just-completed
// proving sequence, when an historian is wired.
func (e *Engine) recordProvingCertificate() {
	avg, repeatPct := e.prover.Repeatability()
	passed := e.prover.Phase() == prover.PhaseComplete
	cert := historian.ProvingCertificate{
		RunResults:       e.prover.RunResults(),
		AvgMeterFactor:   avg,
		RepeatabilityPct: repeatPct,
		Passed:           passed,
		FailReason:       e.prover.FailReason(),
		Timestamp:        time.Now(),
	}

	if e.metrics != nil {
		outcome := "fail"
		if passed {
			outcome = "pass"
		}
		e.metrics.ProvingRunsTotal.WithLabelValues(outcome).Inc()
	}

	if e.hist == nil {
		return
	}
	if err := e.timedAppend(func() error { return e.hist.AppendProvingCertificate(cert) }); err != nil && e.log != nil {
		e.log.Warn("failed to persist proving certificate", zap.Error(err))
	}
}

// RequestEStop requests an immediate transition to E_STOP, legal from
// every operational state. Used by the operator "estop" command as a
// manual trip distinct from the DI_ESTOP hardware input.
func (e *Engine) RequestEStop() bool { return e.sm.RequestTransition(statemachine.EStop) }

// ResetBatch zeros the flow totalizer's batch accumulators and the batch
// start and elapsed-time tags, matching a fresh batch start. The sampler's
// grab counters are not reset. Legal in any state; typically issued while
// IDLE between loads.
func (e *Engine) ResetBatch() {
	e.flow.ResetTotals(e.ds)
	e.ds.WriteFloat(tagstore.BatchStartTime, 0)
	e.ds.WriteFloat(tagstore.BatchElapsedSec, 0)
}

// Status is the structured snapshot returned by the operator "get_status"
// command: the tags an operator console most needs to render at a glance.
type Status struct {
	State         string  `json:"state"`
	ScanCount     uint64  `json:"scan_count"`
	ScanTimeMS    float64 `json:"scan_time_ms"`
	MaxScanTimeMS float64 `json:"max_scan_time_ms"`
	Overruns      uint64  `json:"overruns"`

	FlowRateBPH  float64 `json:"flow_rate_bph"`
	FlowTotalBBL float64 `json:"flow_total_bbl"`
	FlowNetBBL   float64 `json:"flow_net_bbl"`
	BatchGross   float64 `json:"batch_gross_bbl"`
	BatchNet     float64 `json:"batch_net_bbl"`
	BatchElapsed float64 `json:"batch_elapsed_sec"`

	BSWPct      float64 `json:"bsw_pct"`
	MeterTempF  float64 `json:"meter_temp_f"`
	TestThermoF float64 `json:"test_thermo_f"`
	CTLFactor   float64 `json:"ctl_factor"`
	MeterFactor float64 `json:"meter_factor"`

	InletPressPSI  float64 `json:"inlet_press_psi"`
	OutletPressPSI float64 `json:"outlet_press_psi"`
	LoopPressPSI   float64 `json:"loop_press_psi"`

	PumpRunning  bool `json:"pump_running"`
	PumpLockedOut bool `json:"pump_locked_out"`
	DivertActive bool `json:"divert_active"`

	ProverPhase string `json:"prover_phase"`

	AlarmActiveCount int    `json:"alarm_active_count"`
	AlarmUnackCount  int    `json:"alarm_unack_count"`
	HighestAlarmPri  string `json:"highest_alarm_priority"`
}

// GetStatus returns a structured snapshot of the tags most relevant to
// an operator console.
func (e *Engine) GetStatus() Status {
	return Status{
		State:         e.sm.Current().String(),
		ScanCount:     e.scanCount,
		ScanTimeMS:    e.lastScanTime.Seconds() * 1000,
		MaxScanTimeMS: e.maxScanTime.Seconds() * 1000,
		Overruns:      e.overruns,

		FlowRateBPH:  e.ds.ReadFloat(tagstore.FlowRateBPH),
		FlowTotalBBL: e.ds.ReadFloat(tagstore.FlowTotalBBL),
		FlowNetBBL:   e.ds.ReadFloat(tagstore.FlowNetBBL),
		BatchGross:   e.ds.ReadFloat(tagstore.BatchGrossBBL),
		BatchNet:     e.ds.ReadFloat(tagstore.BatchNetBBL),
		BatchElapsed: e.ds.ReadFloat(tagstore.BatchElapsedSec),

		BSWPct:      e.ds.ReadFloat(tagstore.BSWPct),
		MeterTempF:  e.ds.ReadFloat(tagstore.TempCorrectedF),
		TestThermoF: e.ds.ReadFloat(tagstore.AITestThermo),
		CTLFactor:   e.ds.ReadFloat(tagstore.CTLFactor),
		MeterFactor: e.ds.ReadFloat(tagstore.MeterFactor),

		InletPressPSI:  e.ds.ReadFloat(tagstore.AIInletPress),
		OutletPressPSI: e.ds.ReadFloat(tagstore.AIOutletPress),
		LoopPressPSI:   e.ds.ReadFloat(tagstore.AILoopHiPress),

		PumpRunning:   e.ds.ReadBool(tagstore.DIPumpRunning),
		PumpLockedOut: e.pump.LockedOut(),
		DivertActive:  e.ds.ReadBool(tagstore.DODivertCmd),

		ProverPhase: e.prover.Phase().String(),

		AlarmActiveCount: len(e.safety.ActiveAlarms()),
		AlarmUnackCount:  len(e.safety.UnacknowledgedAlarms()),
		HighestAlarmPri:  highestPriority(e.alarms),
	}
}

func highestPriority(reg *alarms.Registry) string {
	highest := alarms.Info
	for _, s := range reg.Active() {
		if s.Definition.Priority > highest {
			highest = s.Definition.Priority
		}
	}
	return highest.String()
}

// Overruns returns the lifetime count of scan cycles that exceeded their
// configured period.
func (e *Engine) Overruns() uint64 { return e.overruns }
