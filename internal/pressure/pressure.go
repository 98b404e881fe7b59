// Package pressure drives the backpressure valve setpoints each scan
// cycle. It has no internal state: it is a pure accessor over the
// configured sales/divert backpressure targets.
package pressure

import (
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

// Monitor writes the backpressure valve analog-output setpoints from
// configuration every cycle.
type Monitor struct{}

// New creates a Monitor.
func New() *Monitor { return &Monitor{} }

// Execute writes AO_BP_SALES_SP and AO_BP_DIVERT_SP from the configured
// targets.
func (m *Monitor) Execute(ds *tagstore.Store, sp *setpoints.Setpoints) {
	ds.WriteFloat(tagstore.AOBPSalesSP, sp.BackpressureSalesPSI)
	ds.WriteFloat(tagstore.AOBPDivertSP, sp.BackpressureDivertPSI)
}
