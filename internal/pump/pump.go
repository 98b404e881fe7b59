// Package pump supervises the transfer pump: overload trip-and-lockout,
// restart lockout timing, and a bounded starts-per-hour limit.
package pump

import (
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// Supervisor enforces pump protection independent of the state machine's
// own start/stop sequencing: it can force DO_PUMP_START false even while
// the state machine wants it on.
type Supervisor struct {
	limiter *startLimiter

	lockedOut    bool
	lockoutUntil time.Time
	lastOverload bool
	lastRunning  bool

	reg *alarms.Registry
	now func() time.Time
}

// New creates a Supervisor with no lockout in effect. reg is used to raise
// ALM_PUMP_MAX_STARTS when the hourly start limit trips; it may be nil in
// tests that don't exercise that path.
func New(reg *alarms.Registry) *Supervisor {
	return &Supervisor{limiter: newStartLimiter(), reg: reg, now: time.Now}
}

// Execute runs one scan cycle: detects an overload rising edge (trips and
// locks out), detects a pump-running rising edge (records a start against
// the hourly limit), and forces DO_PUMP_START false while locked out.
func (p *Supervisor) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	overload := ds.ReadBool(tagstore.DIPumpOverload)
	running := ds.ReadBool(tagstore.DIPumpRunning)

	if overload && !p.lastOverload {
		p.lockedOut = true
		p.lockoutUntil = p.now().Add(time.Duration(sp.PumpRestartLockoutSec * float64(time.Second)))
	}
	p.lastOverload = overload

	if running && !p.lastRunning {
		if p.limiter.RecordStart(sp.PumpMaxStartsPerHour) {
			p.lockedOut = true
			p.lockoutUntil = p.now().Add(time.Duration(sp.PumpRestartLockoutSec * float64(time.Second)))
			p.activateAlarm("ALM_PUMP_MAX_STARTS", float64(p.limiter.CountWithinHour()))
		}
	}
	p.lastRunning = running

	if p.lockedOut && !overload && p.now().After(p.lockoutUntil) {
		p.lockedOut = false
	}

	if p.lockedOut {
		ds.WriteBool(tagstore.DOPumpStart, false)
	}
}

// LockedOut reports whether the pump is currently held in its protective
// lockout.
func (p *Supervisor) LockedOut() bool {
	return p.lockedOut
}

// StartsInLastHour returns the number of pump starts recorded within the
// last rolling hour.
func (p *Supervisor) StartsInLastHour() int {
	return p.limiter.CountWithinHour()
}

func (p *Supervisor) activateAlarm(tag string, value float64) {
	if p.reg == nil {
		return
	}
	if s := p.reg.Get(tag); s != nil {
		s.Activate(p.now(), value)
	}
}
