// Package sampler drives the flow-proportional grab sampler: a solenoid
// that pulses open to draw a grab into the sample pot, and a mixing pump
// that runs on a duty cycle to keep the pot homogenized.
package sampler

import (
	"time"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/statemachine"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

const (
	solenoidPulseDuration = 500 * time.Millisecond
	mixWindowSec          = 300.0 // 5 minutes
)

// Sampler tracks grab timing and solenoid pulse state.
type Sampler struct {
	lastGrabAt     time.Time
	haveGrabbed    bool
	solenoidOpenAt time.Time
	solenoidOpen   bool
	totalGrabs     int64
	totalML        float64

	now func() time.Time
}

// New creates a Sampler with no grabs recorded yet.
func New() *Sampler {
	return &Sampler{now: time.Now}
}

// Execute runs one scan cycle of sampler logic. Grab scheduling only
// fires while state is RUNNING; the solenoid is forced closed in every
// other state or when the pot is full.
func (s *Sampler) Execute(ds *tagstore.Store, sp *setpoints.Setpoints, state statemachine.State) {
	potFull := ds.ReadBool(tagstore.DISamplePotHi)

	if s.solenoidOpen && s.now().Sub(s.solenoidOpenAt) >= solenoidPulseDuration {
		s.solenoidOpen = false
	}

	if state != statemachine.Running || potFull {
		s.solenoidOpen = false
		ds.WriteBool(tagstore.DOSampleSol, false)
		ds.WriteBool(tagstore.DOSampleMixPump, false)
		return
	}

	flowRate := ds.ReadFloat(tagstore.FlowRateBPH)
	sinceLastGrab := sp.SampleRateSec + 1 // force a first grab once flowing
	if s.haveGrabbed {
		sinceLastGrab = s.now().Sub(s.lastGrabAt).Seconds()
	}
	if flowRate > 0 && sinceLastGrab >= sp.SampleRateSec {
		s.grab(ds, sp)
	}

	ds.WriteBool(tagstore.DOSampleSol, s.solenoidOpen)

	secIntoWindow := mod(float64(s.now().UnixNano())/1e9, mixWindowSec)
	ds.WriteBool(tagstore.DOSampleMixPump, secIntoWindow < sp.SampleMixTimeSec)
}

func (s *Sampler) grab(ds *tagstore.Store, sp *setpoints.Setpoints) {
	s.haveGrabbed = true
	s.lastGrabAt = s.now()
	s.solenoidOpen = true
	s.solenoidOpenAt = s.now()
	s.totalGrabs++
	s.totalML += sp.SampleVolumeML
	ds.WriteInt(tagstore.SampleTotalGrabs, s.totalGrabs)
	ds.WriteFloat(tagstore.SampleTotalML, s.totalML)
}

func mod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	if m < 0 {
		m += b
	}
	return m
}
