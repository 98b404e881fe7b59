// Package divert derives the divert valve's human-readable position from
// limit-switch feedback and the current command. Travel-timeout detection
// lives in the safety evaluator, keyed off the command tag's own write
// timestamp rather than a duplicate clock here.
package divert

import (
	"github.com/scstechnologies/lactd/internal/tagstore"
)

const (
	PosSales           = "SALES"
	PosDivert          = "DIVERT"
	PosTransitToSales  = "TRANSIT_TO_SALES"
	PosTransitToDivert = "TRANSIT_TO_DIVERT"
	PosFaultBothLimits = "FAULT_BOTH_LIMITS"
)

// Valve derives DIVERT_VALVE_POS from limit-switch feedback and the
// current command.
type Valve struct{}

// New creates a Valve tracker.
func New() *Valve {
	return &Valve{}
}

// Execute derives the position string from limit-switch feedback and the
// current command.
func (v *Valve) Execute(ds *tagstore.Store) {
	cmd := ds.ReadBool(tagstore.DODivertCmd)
	sales := ds.ReadBool(tagstore.DIDivertSales)
	divertLimit := ds.ReadBool(tagstore.DIDivertDivert)

	var pos string
	switch {
	case sales && divertLimit:
		pos = PosFaultBothLimits
	case sales:
		pos = PosSales
	case divertLimit:
		pos = PosDivert
	case cmd:
		pos = PosTransitToDivert
	default:
		pos = PosTransitToSales
	}
	ds.WriteString(tagstore.DivertValvePos, pos)
}
