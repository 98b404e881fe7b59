package alarms

import (
	"testing"
	"time"
)

func Test_NonLatchingAlarmClearsWithCondition(t *testing.T) {
	s := NewState(Definition{Tag: "X", Latching: false})
	s.Activate(time.Now(), 1.0)
	if !s.Active {
		t.Fatalf("expected active")
	}
	s.Deactivate()
	if s.Active {
		t.Fatalf("expected non-latching alarm to clear without ack")
	}
}

func Test_LatchingAlarmRequiresAckBeforeClearing(t *testing.T) {
	s := NewState(Definition{Tag: "X", Latching: true})
	s.Activate(time.Now(), 1.0)
	s.Deactivate()
	if !s.Active {
		t.Fatalf("latching alarm must not clear before acknowledgement")
	}
	s.Acknowledge()
	s.Deactivate()
	if s.Active {
		t.Fatalf("latching alarm should clear once acknowledged and condition gone")
	}
}

func Test_InactiveAlarmIsAlwaysAcknowledged(t *testing.T) {
	s := NewState(Definition{Tag: "X", Latching: true})
	if !s.Acknowledged {
		t.Fatalf("initial state should be acknowledged")
	}
}

func Test_ActivateIsIdempotentWhileActive(t *testing.T) {
	s := NewState(Definition{Tag: "X", Latching: true})
	t1 := time.Now()
	s.Activate(t1, 1.0)
	s.Acknowledge()
	s.Activate(t1.Add(time.Second), 2.0)
	if s.Timestamp != t1 {
		t.Fatalf("re-activating an already-active alarm should not reset its timestamp")
	}
}

func Test_RegistryContainsCanonicalDefinitions(t *testing.T) {
	r := NewRegistry()
	for _, tag := range []string{"ALM_ESTOP", "ALM_PUMP_MAX_STARTS", "ALM_PROVE_REPEAT_FAIL", "ALM_PROVE_MF_RANGE"} {
		if r.Get(tag) == nil {
			t.Fatalf("expected alarm %s to be registered", tag)
		}
	}
}

func Test_SummarizePicksHighestPriority(t *testing.T) {
	low := NewState(Definition{Tag: "L", Priority: Low})
	crit := NewState(Definition{Tag: "C", Priority: Critical})
	low.Activate(time.Now(), 0)
	crit.Activate(time.Now(), 0)
	sum := Summarize([]*State{low, crit})
	if sum.HighestPri != Critical {
		t.Fatalf("got %v, want Critical", sum.HighestPri)
	}
	if sum.ActiveCount != 2 {
		t.Fatalf("got %d, want 2", sum.ActiveCount)
	}
}
