// Package temperature applies the API MPMS Chapter 11.1 simplified
// correction-for-the-effect-of-temperature-on-liquid (CTL) formula. The
// test-thermowell/meter-temperature delta check lives in the safety
// package.
package temperature

import (
	"math"

	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// alpha is the thermal expansion coefficient used by the simplified
// generalized crude-oil table, per degree Fahrenheit.
const alpha = 0.00046

// CTL computes the correction-for-temperature factor for a crude oil
// at degF relative to baseDegF, clamped to [0.9, 1.1]. Exactly 1.0 when
// the delta is negligible (<0.01 degF), avoiding needless floating-point
// noise around the base temperature.
func CTL(degF, baseDegF float64) float64 {
	dT := degF - baseDegF
	if math.Abs(dT) < 0.01 {
		return 1.0
	}
	ctl := math.Exp(-alpha * dT * (1 + 0.8*alpha*dT))
	if ctl < 0.9 {
		return 0.9
	}
	if ctl > 1.1 {
		return 1.1
	}
	return ctl
}

// Monitor applies CTL each scan cycle and writes TEMP_CORRECTED_F /
// CTL_FACTOR.
type Monitor struct{}

// New creates a Monitor.
func New() *Monitor { return &Monitor{} }

// Execute reads the meter temperature, computes CTL against the
// configured base temperature, and writes the corrected-temperature and
// CTL tags.
func (m *Monitor) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	meterTemp := ds.ReadFloat(tagstore.AIMeterTemp)
	ds.WriteFloat(tagstore.TempCorrectedF, meterTemp)
	ds.WriteFloat(tagstore.CTLFactor, CTL(meterTemp, sp.TempBaseDegF))
}
