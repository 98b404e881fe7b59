// Package bsw monitors the Basic Sediment & Water probe, rejecting
// out-of-range signals and maintaining a rolling average with a divert
// debounce timer.
package bsw

import (
	"fmt"
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

const (
	signalRejectLowPct  = -0.1
	signalRejectHighPct = 5.5
	rollingWindow       = 10
)

// Monitor tracks the BS&W probe reading and derives the averaged
// BSW_PCT tag plus a divert-condition debounce.
type Monitor struct {
	avg *rollingAverage

	divertConditionSince time.Time
	divertConditionHeld  bool

	now func() time.Time
}

// New creates a Monitor with an empty rolling average.
func New() *Monitor {
	return &Monitor{avg: newRollingAverage(rollingWindow), now: time.Now}
}

// Execute reads the raw BS&W probe signal, rejects out-of-range readings
// as BAD quality without updating the average, otherwise folds the
// sample into the rolling average and runs the divert debounce timer.
func (m *Monitor) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	entry, _ := ds.ReadEntry(tagstore.AIBSWProbe)
	raw := entry.Value.AsFloat()

	if raw < signalRejectLowPct || raw > signalRejectHighPct {
		ds.WriteQuality(tagstore.AIBSWProbe, entry.Value, tagstore.Bad)
		ds.WriteFloat(tagstore.BSWPct, raw)
		return
	}

	avg := m.avg.Update(raw)
	ds.WriteFloat(tagstore.BSWPct, avg)

	if avg >= sp.BSWDivertPct {
		if !m.divertConditionHeld {
			m.divertConditionHeld = true
			m.divertConditionSince = m.now()
		}
		if m.now().Sub(m.divertConditionSince).Seconds() >= sp.BSWDivertDelaySec {
			ds.WriteString(tagstore.DivertReason, fmt.Sprintf("BS&W %.2f%%", avg))
		}
	} else {
		m.divertConditionHeld = false
	}
}
