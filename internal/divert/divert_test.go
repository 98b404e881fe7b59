package divert

import (
	"testing"

	"github.com/scstechnologies/lactd/internal/tagstore"
)

func Test_PositionSales(t *testing.T) {
	v := New()
	ds := tagstore.New()
	ds.WriteBool(tagstore.DIDivertSales, true)
	v.Execute(ds)
	if got := ds.Read(tagstore.DivertValvePos).AsString(); got != PosSales {
		t.Fatalf("got %v, want %v", got, PosSales)
	}
}

func Test_PositionBothLimitsIsFault(t *testing.T) {
	v := New()
	ds := tagstore.New()
	ds.WriteBool(tagstore.DIDivertSales, true)
	ds.WriteBool(tagstore.DIDivertDivert, true)
	v.Execute(ds)
	if got := ds.Read(tagstore.DivertValvePos).AsString(); got != PosFaultBothLimits {
		t.Fatalf("got %v, want %v", got, PosFaultBothLimits)
	}
}

func Test_PositionTransitWhileCommandedDivertButNoLimit(t *testing.T) {
	v := New()
	ds := tagstore.New()
	ds.WriteBool(tagstore.DODivertCmd, true)
	v.Execute(ds)
	if got := ds.Read(tagstore.DivertValvePos).AsString(); got != PosTransitToDivert {
		t.Fatalf("got %v, want %v", got, PosTransitToDivert)
	}
}

func Test_PositionTransitToSalesWhenNoCommandAndNoLimits(t *testing.T) {
	v := New()
	ds := tagstore.New()
	v.Execute(ds)
	if got := ds.Read(tagstore.DivertValvePos).AsString(); got != PosTransitToSales {
		t.Fatalf("got %v, want %v", got, PosTransitToSales)
	}
}
