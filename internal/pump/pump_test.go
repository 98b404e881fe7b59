package pump

import (
	"testing"
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func Test_OverloadRisingEdgeLocksOutAndForcesStop(t *testing.T) {
	p := New(nil)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteBool(tagstore.DOPumpStart, true)
	ds.WriteBool(tagstore.DIPumpOverload, true)
	p.Execute(ds, &sp)
	if !p.LockedOut() {
		t.Fatalf("expected lockout on overload rising edge")
	}
	if ds.ReadBool(tagstore.DOPumpStart) {
		t.Fatalf("expected DO_PUMP_START forced false while locked out")
	}
}

func Test_LockoutClearsAfterRestartDelayOnceOverloadClears(t *testing.T) {
	p := New(nil)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.PumpRestartLockoutSec = 30
	base := time.Now()
	clock := base
	p.now = func() time.Time { return clock }

	ds.WriteBool(tagstore.DIPumpOverload, true)
	p.Execute(ds, &sp)
	ds.WriteBool(tagstore.DIPumpOverload, false)
	clock = base.Add(10 * time.Second)
	p.Execute(ds, &sp)
	if !p.LockedOut() {
		t.Fatalf("lockout should still hold before restart delay elapses")
	}
	clock = base.Add(31 * time.Second)
	p.Execute(ds, &sp)
	if p.LockedOut() {
		t.Fatalf("expected lockout to clear after restart delay elapses")
	}
}

func Test_StartsPerHourLimitLocksOutPump(t *testing.T) {
	reg := alarms.NewRegistry()
	p := New(reg)
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.PumpMaxStartsPerHour = 2

	for i := 0; i < 3; i++ {
		ds.WriteBool(tagstore.DIPumpRunning, false)
		p.Execute(ds, &sp)
		ds.WriteBool(tagstore.DIPumpRunning, true)
		p.Execute(ds, &sp)
	}
	if !p.LockedOut() {
		t.Fatalf("expected lockout after exceeding max starts per hour")
	}
	if p.StartsInLastHour() < 2 {
		t.Fatalf("expected at least 2 recorded starts")
	}
	if s := reg.Get("ALM_PUMP_MAX_STARTS"); s == nil || !s.Active {
		t.Fatalf("expected ALM_PUMP_MAX_STARTS to be active after the trip")
	}
}
