package flow

import (
	"testing"
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func Test_FirstScanEstablishesBaselineWithoutVolume(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	if ds.ReadFloat(tagstore.FlowTotalBBL) != 0 {
		t.Fatalf("first scan should not produce volume from an unknown baseline")
	}
}

func Test_PulseDeltaAccumulatesGrossVolume(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)
	got := ds.ReadFloat(tagstore.FlowTotalBBL)
	want := 100.0 / sp.MeterKFactor
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_CounterWrapTreatsCurrentValueAsDelta(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 50) // counter reset
	f.Execute(ds, &sp)
	got := ds.ReadFloat(tagstore.FlowTotalBBL)
	want := 50.0 / sp.MeterKFactor
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_ZeroKFactorProducesZeroDelta(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.MeterKFactor = 0
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)
	if ds.ReadFloat(tagstore.FlowTotalBBL) != 0 {
		t.Fatalf("zero k-factor must not divide by zero or accumulate volume")
	}
}

func Test_RateDecaysAfterNoPulseTimeout(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	base := time.Now()
	clock := base
	f.now = func() time.Time { return clock }

	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)
	if ds.ReadFloat(tagstore.FlowRateBPH) <= 0 {
		t.Fatalf("expected nonzero rate right after a pulse delta")
	}

	clock = base.Add(3 * time.Second)
	f.Execute(ds, &sp) // no new pulses
	if ds.ReadFloat(tagstore.FlowRateBPH) != 0 {
		t.Fatalf("expected rate to decay to zero after 2s with no pulses")
	}
}

func Test_BatchGrossAppliesMeterFactor(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteFloat(tagstore.MeterFactor, 1.01)
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)

	gross := ds.ReadFloat(tagstore.FlowTotalBBL)
	want := gross * 1.01
	got := ds.ReadFloat(tagstore.BatchGrossBBL)
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_RateUsesActualElapsedTimeNotNominalPeriod(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	sp.ScanRateMS = 100 // nominal 0.1s period
	base := time.Now()
	clock := base
	f.now = func() time.Time { return clock }

	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)

	clock = base.Add(1 * time.Second) // cycle overran far past the nominal period
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)

	deltaBBL := 100.0 / sp.MeterKFactor
	want := deltaBBL * 3600.0 / 1.0
	got := ds.ReadFloat(tagstore.FlowRateBPH)
	if got != want {
		t.Fatalf("got %v, want %v (rate should use the real 1s elapsed, not the nominal period)", got, want)
	}
}

func Test_NetVolumeAppliesMeterFactorAndCTL(t *testing.T) {
	f := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteFloat(tagstore.MeterFactor, 1.01)
	ds.WriteFloat(tagstore.CTLFactor, 0.99)
	ds.WriteInt(tagstore.PIMeterPulse, 1000)
	f.Execute(ds, &sp)
	ds.WriteInt(tagstore.PIMeterPulse, 1100)
	f.Execute(ds, &sp)

	gross := ds.ReadFloat(tagstore.FlowTotalBBL)
	want := gross * 1.01 * 0.99
	got := ds.ReadFloat(tagstore.FlowNetBBL)
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
