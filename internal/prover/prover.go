// Package prover runs a small-volume prover calibration sequence:
// a fixed battery of timed runs whose repeatability and resulting meter
// factor must both fall within configured tolerances before the new
// meter factor is accepted.
package prover

import (
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// Phase is one state of the proving sub-machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseSetup
	PhaseRunning
	PhaseCalculating
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSetup:
		return "SETUP"
	case PhaseRunning:
		return "RUNNING"
	case PhaseCalculating:
		return "CALCULATING"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

const (
	setupTimeout = 30 * time.Second
	runTimeout   = 60 * time.Second
)

// Prover runs a multi-run proving sequence and averages the resulting
// meter factor across runs, gated on a repeatability check.
type Prover struct {
	phase        Phase
	phaseSince   time.Time
	runsComplete int
	runStartBBL  float64
	runResults   []float64
	failReason   string

	reg *alarms.Registry
	now func() time.Time
}

// New creates a Prover at rest (IDLE). reg is used to raise the
// repeatability and meter-factor-range validation alarms; it may be nil
// in tests that don't exercise the failing paths.
func New(reg *alarms.Registry) *Prover {
	return &Prover{phase: PhaseIdle, reg: reg, now: time.Now}
}

// Phase returns the current proving sub-state.
func (p *Prover) Phase() Phase { return p.phase }

// FailReason returns the reason the last proving sequence failed, if any.
func (p *Prover) FailReason() string { return p.failReason }

// RunResults returns the per-run meter factors from the most recently
// completed (or failed) proving sequence.
func (p *Prover) RunResults() []float64 { return append([]float64(nil), p.runResults...) }

// Repeatability returns the (max-min)/avg*100 repeatability figure for
// the most recently calculated sequence. Returns 0 if fewer than one run
// has completed.
func (p *Prover) Repeatability() (avg, repeatPct float64) {
	if len(p.runResults) == 0 {
		return 0, 0
	}
	min, max, sum := p.runResults[0], p.runResults[0], 0.0
	for _, v := range p.runResults {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg = sum / float64(len(p.runResults))
	if avg != 0 {
		repeatPct = (max - min) / avg * 100.0
	}
	return avg, repeatPct
}

// Start begins a proving sequence from IDLE. No-op if a sequence is
// already in progress.
func (p *Prover) Start() bool {
	if p.phase != PhaseIdle && p.phase != PhaseComplete && p.phase != PhaseFailed {
		return false
	}
	p.phase = PhaseSetup
	p.phaseSince = p.now()
	p.runsComplete = 0
	p.runResults = nil
	p.failReason = ""
	return true
}

// Done reports whether the sequence has finished (pass or fail) and the
// state machine should transition back to RUNNING.
func (p *Prover) Done() bool {
	return p.phase == PhaseComplete || p.phase == PhaseFailed
}

// Execute advances the proving sub-machine by one scan cycle.
func (p *Prover) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	switch p.phase {
	case PhaseSetup:
		p.handleSetup(ds, sp)
	case PhaseRunning:
		p.handleRunning(ds, sp)
	case PhaseCalculating:
		p.handleCalculating(ds, sp)
	}
}

func (p *Prover) handleSetup(ds *tagstore.Store, sp *setpoints.Setpoints) {
	ds.WriteBool(tagstore.DOProverValveCmd, true)
	if ds.ReadBool(tagstore.DIProverValveOpen) {
		p.phase = PhaseRunning
		p.phaseSince = p.now()
		p.runStartBBL = ds.ReadFloat(tagstore.FlowTotalBBL)
		return
	}
	if p.now().Sub(p.phaseSince) > setupTimeout {
		p.fail("PROVER_VALVE_TIMEOUT")
	}
}

// handleRunning waits out the fixed run duration unconditionally — a real
// prover run ends on its own detector switches, but absent those here the
// run is timed, and the meter factor is computed from whatever volume the
// meter measured over that fixed interval rather than exiting early once a
// reference volume happens to be crossed.
func (p *Prover) handleRunning(ds *tagstore.Store, sp *setpoints.Setpoints) {
	if p.now().Sub(p.phaseSince) < runTimeout {
		return
	}
	measuredBBL := ds.ReadFloat(tagstore.FlowTotalBBL) - p.runStartBBL
	if measuredBBL <= 0 {
		p.fail("RUN_NO_VOLUME")
		return
	}
	mf := sp.ProveReferenceVolumeBBL / measuredBBL
	p.runResults = append(p.runResults, mf)
	p.runsComplete++
	if p.runsComplete >= sp.ProveNumRuns {
		p.phase = PhaseCalculating
		p.phaseSince = p.now()
	} else {
		p.phase = PhaseSetup
		p.phaseSince = p.now()
		ds.WriteBool(tagstore.DOProverValveCmd, false)
	}
}

func (p *Prover) handleCalculating(ds *tagstore.Store, sp *setpoints.Setpoints) {
	ds.WriteBool(tagstore.DOProverValveCmd, false)

	min, max, sum := p.runResults[0], p.runResults[0], 0.0
	for _, v := range p.runResults {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(p.runResults))
	repeatPct := 0.0
	if avg != 0 {
		repeatPct = (max - min) / avg * 100.0
	}

	if repeatPct > sp.ProveRepeatabilityPct {
		p.activateAlarm("ALM_PROVE_REPEAT_FAIL", repeatPct)
		p.fail("REPEATABILITY")
		return
	}
	if avg < sp.ProveMeterFactorMin || avg > sp.ProveMeterFactorMax {
		p.activateAlarm("ALM_PROVE_MF_RANGE", avg)
		p.fail("METER_FACTOR_RANGE")
		return
	}

	ds.WriteFloat(tagstore.MeterFactor, avg)
	p.phase = PhaseComplete
	p.phaseSince = p.now()
}

func (p *Prover) activateAlarm(tag string, value float64) {
	if p.reg == nil {
		return
	}
	if s := p.reg.Get(tag); s != nil {
		s.Activate(p.now(), value)
	}
}

func (p *Prover) fail(reason string) {
	p.failReason = reason
	p.phase = PhaseFailed
	p.phaseSince = p.now()
}
