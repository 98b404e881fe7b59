package scanengine

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/historian"
	"github.com/scstechnologies/lactd/internal/iobridge"
	"github.com/scstechnologies/lactd/internal/iobridge/simulator"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/statemachine"
	"github.com/scstechnologies/lactd/internal/tagstore"
	"github.com/scstechnologies/lactd/internal/validate"
)

func newTestEngine() *Engine {
	e, _ := newTestEngineWithSim()
	return e
}

// newTestEngineWithSim also returns the simulator backend, so a test can
// drive hardware inputs that the bridge re-reads at the start of each scan.
func newTestEngineWithSim() (*Engine, *simulator.Simulator) {
	ds := tagstore.New()
	sim := simulator.New(1)
	bridge := iobridge.New(sim, iobridge.Points, zap.NewNop())
	sp := setpoints.Defaults()
	reg := alarms.NewRegistry()
	return New(ds, bridge, sp, reg, zap.NewNop()), sim
}

func Test_SingleScanDoesNotPanic(t *testing.T) {
	e := newTestEngine()
	e.SingleScan()
}

func Test_StartRequestAdvancesFromIdleToStartup(t *testing.T) {
	e := newTestEngine()
	if !e.RequestStart() {
		t.Fatalf("expected IDLE->STARTUP to be a legal request")
	}
	e.SingleScan()
	if e.State() != statemachine.Startup {
		t.Fatalf("got %v, want STARTUP", e.State())
	}
}

func Test_EStopOverridesEverythingImmediately(t *testing.T) {
	e, sim := newTestEngineWithSim()
	e.RequestStart()
	e.SingleScan()
	sim.SetEstop(true)
	e.SingleScan()
	if e.State() != statemachine.EStop {
		t.Fatalf("got %v, want E_STOP", e.State())
	}
}

func Test_SafeStateForcesFailSafeOutputs(t *testing.T) {
	e := newTestEngine()
	e.ds.WriteBool(tagstore.DOPumpStart, true)
	e.safeState()
	if e.ds.ReadBool(tagstore.DOPumpStart) {
		t.Fatalf("expected pump start forced false in safe state")
	}
	if !e.ds.ReadBool(tagstore.DODivertCmd) {
		t.Fatalf("expected divert commanded in safe state")
	}
}

func Test_GetStatusReflectsState(t *testing.T) {
	e := newTestEngine()
	e.SingleScan()
	st := e.GetStatus()
	if st.State != statemachine.Idle.String() {
		t.Fatalf("got state %q, want IDLE", st.State)
	}
	if st.ScanCount != 1 {
		t.Fatalf("got scan count %d, want 1", st.ScanCount)
	}
}

func Test_ResetBatchZeroesAccumulators(t *testing.T) {
	e := newTestEngine()
	e.ds.WriteFloat(tagstore.BatchGrossBBL, 12.5)
	e.ds.WriteFloat(tagstore.BatchStartTime, 1000)
	e.ResetBatch()
	if e.ds.ReadFloat(tagstore.BatchGrossBBL) != 0 {
		t.Fatalf("expected batch gross reset to 0")
	}
	if e.ds.ReadFloat(tagstore.BatchStartTime) != 0 {
		t.Fatalf("expected batch start time reset to 0")
	}
}

func Test_SetAuditRecordsStateTransition(t *testing.T) {
	e := newTestEngine()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	hist, err := historian.Open(dbPath)
	if err != nil {
		t.Fatalf("historian.Open: %v", err)
	}
	defer hist.Close()
	e.SetAudit(hist, validate.New(zap.NewNop()))

	e.RequestStart()
	e.SingleScan()

	records, err := hist.ReadStateTransitions()
	if err != nil {
		t.Fatalf("ReadStateTransitions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d transition records, want 1", len(records))
	}
	if records[0].ToState != statemachine.Startup.String() {
		t.Fatalf("got transition to %q, want STARTUP", records[0].ToState)
	}
}

func Test_SetAuditRecordsAlarmEvents(t *testing.T) {
	e, sim := newTestEngineWithSim()
	dbPath := filepath.Join(t.TempDir(), "alarms.db")
	hist, err := historian.Open(dbPath)
	if err != nil {
		t.Fatalf("historian.Open: %v", err)
	}
	defer hist.Close()
	e.SetAudit(hist, validate.New(zap.NewNop()))

	sim.SetEstop(true)
	e.SingleScan()

	events, err := hist.ReadAlarmEvents()
	if err != nil {
		t.Fatalf("ReadAlarmEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d alarm events, want 1", len(events))
	}
	if events[0].Tag != "ALM_ESTOP" || !events[0].Active {
		t.Fatalf("got event %+v, want active ALM_ESTOP", events[0])
	}
}

func Test_RequestEStopTransitionsImmediately(t *testing.T) {
	e := newTestEngine()
	if !e.RequestEStop() {
		t.Fatalf("expected manual estop request to be legal from IDLE")
	}
	e.SingleScan()
	if e.State() != statemachine.EStop {
		t.Fatalf("got %v, want E_STOP", e.State())
	}
}
