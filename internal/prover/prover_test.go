package prover

import (
	"testing"
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// runOneRun drives one full run to completion by letting the fixed 60s run
// timer elapse, not by crossing the reference volume early — a run's
// duration is unconditional, and the meter factor is computed from
// whatever volume accumulated over that fixed 60s regardless of how it
// compares to the reference volume.
func runOneRun(t *testing.T, p *Prover, ds *tagstore.Store, sp *setpoints.Setpoints, clock *time.Time, volumeDelta float64) {
	t.Helper()
	p.Execute(ds, sp) // SETUP: commands valve open
	ds.WriteBool(tagstore.DIProverValveOpen, true)
	p.Execute(ds, sp) // transitions to RUNNING, captures start volume
	ds.WriteFloat(tagstore.FlowTotalBBL, ds.ReadFloat(tagstore.FlowTotalBBL)+volumeDelta)
	*clock = clock.Add(60 * time.Second)
	p.Execute(ds, sp) // run duration elapsed, meter factor computed
}

func Test_SuccessfulProveSequenceSetsMeterFactor(t *testing.T) {
	reg := alarms.NewRegistry()
	p := New(reg)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.ProveNumRuns = 2
	sp.ProveReferenceVolumeBBL = 10.0
	sp.ProveRepeatabilityPct = 5.0
	sp.ProveMeterFactorMin = 0.5
	sp.ProveMeterFactorMax = 1.5

	base := time.Now()
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()
	runOneRun(t, p, ds, &sp, &clock, 10.0)
	ds.WriteBool(tagstore.DIProverValveOpen, false)
	runOneRun(t, p, ds, &sp, &clock, 10.0)
	p.Execute(ds, &sp) // CALCULATING

	if p.Phase() != PhaseComplete {
		t.Fatalf("got phase %v, want COMPLETE", p.Phase())
	}
	if got := ds.ReadFloat(tagstore.MeterFactor); got != 1.0 {
		t.Fatalf("got meter factor %v, want 1.0", got)
	}
}

func Test_RunCompletesAtFixedDurationNotOnVolumeThreshold(t *testing.T) {
	reg := alarms.NewRegistry()
	p := New(reg)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.ProveNumRuns = 1
	sp.ProveReferenceVolumeBBL = 10.0
	sp.ProveRepeatabilityPct = 5.0
	sp.ProveMeterFactorMin = 0.1
	sp.ProveMeterFactorMax = 10.0

	base := time.Now()
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()
	p.Execute(ds, &sp) // SETUP
	ds.WriteBool(tagstore.DIProverValveOpen, true)
	p.Execute(ds, &sp) // RUNNING, captures start volume

	// Cross the reference volume well before the run duration elapses.
	ds.WriteFloat(tagstore.FlowTotalBBL, ds.ReadFloat(tagstore.FlowTotalBBL)+sp.ProveReferenceVolumeBBL)
	p.Execute(ds, &sp)
	if p.Phase() != PhaseRunning {
		t.Fatalf("got phase %v, want RUNNING — crossing the reference volume must not end the run early", p.Phase())
	}

	// Keep accumulating volume until the fixed run duration elapses.
	ds.WriteFloat(tagstore.FlowTotalBBL, ds.ReadFloat(tagstore.FlowTotalBBL)+5.0)
	clock = base.Add(60 * time.Second)
	p.Execute(ds, &sp)
	if p.Phase() != PhaseCalculating {
		t.Fatalf("got phase %v, want CALCULATING once the run duration elapses", p.Phase())
	}
	want := sp.ProveReferenceVolumeBBL / 15.0
	if got := p.runResults[0]; got != want {
		t.Fatalf("got meter factor %v, want %v computed over the full measured volume", got, want)
	}
}

func Test_RepeatabilityFailureRaisesAlarm(t *testing.T) {
	reg := alarms.NewRegistry()
	p := New(reg)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.ProveNumRuns = 2
	sp.ProveReferenceVolumeBBL = 10.0
	sp.ProveRepeatabilityPct = 1.0
	sp.ProveMeterFactorMin = 0.5
	sp.ProveMeterFactorMax = 1.5

	base := time.Now()
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()
	runOneRun(t, p, ds, &sp, &clock, 10.0) // mf 1.0
	ds.WriteBool(tagstore.DIProverValveOpen, false)
	runOneRun(t, p, ds, &sp, &clock, 20.0) // mf 0.5, way off repeatability
	p.Execute(ds, &sp)

	if p.Phase() != PhaseFailed {
		t.Fatalf("got phase %v, want FAILED", p.Phase())
	}
	if !reg.Get("ALM_PROVE_REPEAT_FAIL").Active {
		t.Fatalf("expected repeatability alarm active")
	}
}

func Test_SetupTimesOutIfValveNeverConfirmsOpen(t *testing.T) {
	reg := alarms.NewRegistry()
	p := New(reg)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	base := time.Now()
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()
	p.Execute(ds, &sp)
	clock = base.Add(31 * time.Second)
	p.Execute(ds, &sp)
	if p.Phase() != PhaseFailed {
		t.Fatalf("got phase %v, want FAILED after setup timeout", p.Phase())
	}
}
