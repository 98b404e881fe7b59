// Package flow totalizes turbine meter pulses into gross, corrected, and
// net volumes, and derives an instantaneous flow rate that decays when
// pulses stop arriving.
package flow

import (
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

const rateDecayTimeout = 2 * time.Second

// Totalizer accumulates meter pulses into volume and rate tags.
type Totalizer struct {
	lastPulseCount int64
	havePulse      bool
	lastPulseTime  time.Time
	lastCycleTime  time.Time

	grossBBL float64
	now      func() time.Time
}

// New creates a Totalizer with zeroed accumulators.
func New() *Totalizer {
	return &Totalizer{now: time.Now}
}

// Execute reads the current pulse counter and setpoints, updates the
// totalizer state, and writes FLOW_RATE_BPH, FLOW_TOTAL_BBL, FLOW_NET_BBL,
// TEMP_CORRECTED_F-dependent NET_VOLUME_BBL inputs, and MeterFactor/CTL
// composition.
func (f *Totalizer) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	count := ds.ReadInt(tagstore.PIMeterPulse)
	now := f.now()

	var elapsedSec float64
	if !f.lastCycleTime.IsZero() {
		elapsedSec = now.Sub(f.lastCycleTime).Seconds()
	}
	if elapsedSec <= 0 {
		elapsedSec = scanIntervalSeconds(sp)
	}
	f.lastCycleTime = now

	var deltaPulses int64
	if !f.havePulse {
		f.havePulse = true
		f.lastPulseCount = count
	} else {
		deltaPulses = count - f.lastPulseCount
		if deltaPulses < 0 {
			// Counter wrap or meter reset: treat the current reading as
			// the delta rather than producing a negative volume.
			deltaPulses = count
		}
		f.lastPulseCount = count
	}

	var deltaBBL float64
	if sp.MeterKFactor > 0 {
		deltaBBL = float64(deltaPulses) / sp.MeterKFactor
	}

	if deltaPulses > 0 {
		f.lastPulseTime = now
		f.grossBBL += deltaBBL
	}

	var rateBPH float64
	if !f.lastPulseTime.IsZero() && now.Sub(f.lastPulseTime) > rateDecayTimeout {
		rateBPH = 0
	} else {
		rateBPH = ds.ReadFloat(tagstore.FlowRateBPH)
		if deltaBBL > 0 {
			rateBPH = deltaBBL * 3600.0 / elapsedSec
		}
	}

	meterFactor := ds.ReadFloat(tagstore.MeterFactor)
	ctl := ds.ReadFloat(tagstore.CTLFactor)
	correctedBBL := f.grossBBL * meterFactor
	netBBL := correctedBBL * ctl

	ds.WriteFloat(tagstore.FlowRateBPH, rateBPH)
	ds.WriteFloat(tagstore.FlowTotalBBL, f.grossBBL)
	ds.WriteFloat(tagstore.FlowNetBBL, netBBL)
	ds.WriteFloat(tagstore.NetVolumeBBL, netBBL)
	ds.WriteFloat(tagstore.BatchGrossBBL, correctedBBL)
	ds.WriteFloat(tagstore.BatchNetBBL, netBBL)
}

// ResetTotals zeros the private gross-volume accumulator and every
// published volume tag, matching a fresh batch start. The pulse-counter
// baseline is also cleared so the next cycle's delta is computed against
// the current reading rather than spanning the reset.
func (f *Totalizer) ResetTotals(ds *tagstore.Store) {
	f.grossBBL = 0
	f.havePulse = false
	f.lastPulseTime = time.Time{}
	f.lastCycleTime = time.Time{}
	ds.WriteFloat(tagstore.FlowRateBPH, 0)
	ds.WriteFloat(tagstore.FlowTotalBBL, 0)
	ds.WriteFloat(tagstore.FlowNetBBL, 0)
	ds.WriteFloat(tagstore.NetVolumeBBL, 0)
	ds.WriteFloat(tagstore.BatchGrossBBL, 0)
	ds.WriteFloat(tagstore.BatchNetBBL, 0)
}

func scanIntervalSeconds(sp *setpoints.Setpoints) float64 {
	if sp.ScanRateMS <= 0 {
		return 0.1
	}
	return float64(sp.ScanRateMS) / 1000.0
}
