package domain

import (
	"errors"
	"math"
)

// ErrUnitWeightMissing means the medicine has no positive unit weight, so a
// weight reading cannot be turned into a count.
var ErrUnitWeightMissing = errors.New("medicine has no unit weight configured")

// ReconcileInput is a scale reading together with the medicine state it
// applies to.
type ReconcileInput struct {
	Weight      float64
	UnitWeight  *float64
	Quantity    int
	MaxCapacity *int
}

// Reconciliation is the outcome of applying one reading.
type Reconciliation struct {
	OldQuantity  int
	NewQuantity  int
	Delta        int
	OverCapacity bool
}

// Reconcile converts a weight into a unit count. The count is the weight
// divided by the unit weight, rounded half to even, and never negative.
// Capacity is only flagged, never enforced.
func Reconcile(in ReconcileInput) (Reconciliation, error) {
	if in.UnitWeight == nil || *in.UnitWeight <= 0 || math.IsNaN(*in.UnitWeight) {
		return Reconciliation{}, ErrUnitWeightMissing
	}

	units := math.RoundToEven(in.Weight / *in.UnitWeight)
	newQty := 0
	switch {
	case math.IsNaN(units) || units <= 0:
	case units >= math.MaxInt32:
		newQty = math.MaxInt32
	default:
		newQty = int(units)
	}

	return Reconciliation{
		OldQuantity:  in.Quantity,
		NewQuantity:  newQty,
		Delta:        newQty - in.Quantity,
		OverCapacity: in.MaxCapacity != nil && newQty > *in.MaxCapacity,
	}, nil
}
