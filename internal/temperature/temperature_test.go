package temperature

import (
	"testing"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func Test_CTLIsExactlyOneAtBaseTemperature(t *testing.T) {
	if got := CTL(60.0, 60.0); got != 1.0 {
		t.Fatalf("got %v, want 1.0", got)
	}
}

func Test_CTLDecreasesAboveBaseTemperature(t *testing.T) {
	got := CTL(100.0, 60.0)
	if got >= 1.0 {
		t.Fatalf("expected CTL < 1.0 for oil warmer than base, got %v", got)
	}
}

func Test_CTLClampsToRange(t *testing.T) {
	got := CTL(1000.0, 60.0)
	if got != 0.9 {
		t.Fatalf("got %v, want clamped to 0.9", got)
	}
}

func Test_MonitorWritesCorrectedTempAndCTL(t *testing.T) {
	m := New()
	ds := tagstore.New()
	sp := setpoints.Defaults()
	ds.WriteFloat(tagstore.AIMeterTemp, 80)
	m.Execute(ds, &sp)
	if ds.ReadFloat(tagstore.TempCorrectedF) != 80 {
		t.Fatalf("expected corrected temp to pass through meter temp")
	}
	if ds.ReadFloat(tagstore.CTLFactor) == 0 {
		t.Fatalf("expected CTL factor to be written")
	}
}
