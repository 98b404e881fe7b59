package statemachine

import (
	"testing"
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func Test_IllegalTransitionRejected(t *testing.T) {
	m := New()
	if m.RequestTransition(Running) {
		t.Fatalf("IDLE->RUNNING should be illegal")
	}
}

func Test_LegalTransitionQueuedAndApplied(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	if !m.RequestTransition(Startup) {
		t.Fatalf("IDLE->STARTUP should be legal")
	}
	m.Execute(ds, &sp, false)
	if m.Current() != Startup {
		t.Fatalf("got %v, want STARTUP", m.Current())
	}
}

func Test_TransitionSkipsHandlerOnMoveCycle(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	m.RequestTransition(Startup)
	m.Execute(ds, &sp, false)
	if m.startupStep != 0 {
		t.Fatalf("handler should not have run on the transition cycle itself")
	}
}

func Test_DivertCanReturnToRunning(t *testing.T) {
	m := New()
	m.current = Running
	if !m.RequestTransition(Divert) {
		t.Fatalf("RUNNING->DIVERT should be legal")
	}
	if !isLegal(Divert, Running) {
		t.Fatalf("DIVERT->RUNNING should be legal (non-monotonic)")
	}
}

func Test_EStopOverridesAnyPendingRequest(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	m.current = Running
	m.RequestTransition(Proving)
	m.Execute(ds, &sp, true)
	if m.Current() != EStop {
		t.Fatalf("got %v, want E_STOP when estop active overrides pending request", m.Current())
	}
}

func Test_EStopRequiresTwoSecondClearDebounce(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	m.current = EStop
	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	m.Execute(ds, &sp, false)
	if m.ReadyToExitEStop(false) {
		t.Fatalf("should not be ready immediately after clearing")
	}
	clock = base.Add(3 * time.Second)
	m.Execute(ds, &sp, false)
	if !m.ReadyToExitEStop(false) {
		t.Fatalf("should be ready after 2s debounce elapses")
	}
}

func Test_StartupSequenceProgressesThroughSteps(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	ds.WriteBool(tagstore.DIInletValveOpen, true)
	ds.WriteBool(tagstore.DIOutletValveOpen, true)

	m.RequestTransition(Startup)
	m.Execute(ds, &sp, false) // transition cycle, handler skipped
	m.Execute(ds, &sp, false) // step 0 -> 1 (valve limits confirmed)
	if m.startupStep != 1 {
		t.Fatalf("got step %d, want 1", m.startupStep)
	}

	m.Execute(ds, &sp, false) // step 1 -> 2
	if m.startupStep != 2 {
		t.Fatalf("got step %d, want 2", m.startupStep)
	}
	if !ds.ReadBool(tagstore.DODivertCmd) {
		t.Fatalf("step 1 should command divert valve to DIVERT")
	}

	ds.WriteBool(tagstore.DIDivertDivert, true)
	m.Execute(ds, &sp, false) // step 2 -> 3
	if m.startupStep != 3 {
		t.Fatalf("got step %d, want 3", m.startupStep)
	}
}

func Test_StartupAbortsToIdleWhenValvesNotOpen(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	m.RequestTransition(Startup)
	m.Execute(ds, &sp, false) // transition cycle
	m.Execute(ds, &sp, false) // step 0: neither valve open -> abort
	if m.Current() != Idle {
		t.Fatalf("got %v, want IDLE when valve limits are not confirmed", m.Current())
	}
}

func Test_StartupSettlesToRunningWhenBSWBelowDivertThreshold(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	m.current = Startup
	m.startupStep = 5
	m.startupSince = base
	ds.WriteFloat(tagstore.BSWPct, 0.3)

	clock = base.Add(time.Duration((sp.PumpStartDelaySec+sp.BSWSampleDelaySec+10.0+1)*float64(time.Second)))
	m.Execute(ds, &sp, false)
	if m.Current() != Running {
		t.Fatalf("got %v, want RUNNING when BS&W settles below divert threshold", m.Current())
	}
	if ds.ReadBool(tagstore.DODivertCmd) {
		t.Fatalf("divert command should clear on settle into RUNNING")
	}
}

func Test_StartupSettlesToDivertWhenBSWAboveDivertThreshold(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	m.current = Startup
	m.startupStep = 5
	m.startupSince = base
	ds.WriteFloat(tagstore.BSWPct, 5.0)

	clock = base.Add(time.Duration((sp.PumpStartDelaySec+sp.BSWSampleDelaySec+10.0+1)*float64(time.Second)))
	m.Execute(ds, &sp, false)
	if m.Current() != Divert {
		t.Fatalf("got %v, want DIVERT when BS&W is still above threshold at settle", m.Current())
	}
}
