package tagstore

import "testing"

func Test_NewPreRegistersCanonicalTags(t *testing.T) {
	s := New()
	for _, tag := range []string{DIEstop, DOPumpStart, AIBSWProbe, PIMeterPulse, LACTState} {
		if !s.Exists(tag) {
			t.Fatalf("expected tag %s to be pre-registered", tag)
		}
	}
	if s.Exists("NOT_A_TAG") {
		t.Fatalf("unregistered tag reported as existing")
	}
}

func Test_WriteReadRoundTrip(t *testing.T) {
	s := New()
	s.WriteFloat(AIInletPress, 42.5)
	if got := s.ReadFloat(AIInletPress); got != 42.5 {
		t.Fatalf("got %v, want 42.5", got)
	}
	entry, ok := s.ReadEntry(AIInletPress)
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if entry.Quality != Good {
		t.Fatalf("got quality %v, want Good", entry.Quality)
	}
}

func Test_WriteQualityBad(t *testing.T) {
	s := New()
	s.WriteQuality(AIBSWProbe, Float(99), Bad)
	entry, _ := s.ReadEntry(AIBSWProbe)
	if entry.Quality != Bad {
		t.Fatalf("got quality %v, want Bad", entry.Quality)
	}
}

func Test_ReadMultipleIsCoherentSnapshot(t *testing.T) {
	s := New()
	s.WriteBool(DIPumpRunning, true)
	s.WriteFloat(AIInletPress, 10)
	got := s.ReadMultiple([]string{DIPumpRunning, AIInletPress, "MISSING"})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if !got[DIPumpRunning].AsBool() {
		t.Fatalf("expected DI_PUMP_RUNNING true")
	}
}

func Test_WriteMultipleAtomic(t *testing.T) {
	s := New()
	s.WriteMultiple(map[string]Value{
		DOPumpStart: Bool(true),
		DODivertCmd: Bool(false),
	}, Good)
	if !s.ReadBool(DOPumpStart) {
		t.Fatalf("expected DO_PUMP_START true")
	}
	if s.ReadBool(DODivertCmd) {
		t.Fatalf("expected DO_DIVERT_CMD false")
	}
}

func Test_ReadMissingTagReturnsZeroValue(t *testing.T) {
	s := New()
	if v := s.Read("DOES_NOT_EXIST"); v.AsBool() || v.AsFloat() != 0 {
		t.Fatalf("expected zero value for missing tag, got %+v", v)
	}
}
