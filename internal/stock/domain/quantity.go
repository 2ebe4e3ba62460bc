package domain

import "fmt"

// QuantityEpsilon is the tolerance for "effectively zero" weight comparisons.
// Floating-point residue below this never blocks archival.
const QuantityEpsilon = 0.001

// IsEffectivelyZero reports whether q is zero within QuantityEpsilon.
func IsEffectivelyZero(q float64) bool {
	return q > -QuantityEpsilon && q < QuantityEpsilon
}

// ConsumptionOutcome is the result of applying the clamp-and-archive rule.
type ConsumptionOutcome struct {
	// Consumed is the quantity actually debited, min(requested, available).
	Consumed float64
	// Remaining is the item quantity after the debit, snapped to exactly
	// zero when within epsilon.
	Remaining float64
	// Clamped is true when less than the requested quantity was consumed.
	// Callers must surface this as a partial-fulfillment signal.
	Clamped bool
	// Archive is true when the item is exhausted and must transition to
	// the virtual archive location.
	Archive bool
}

// ApplyConsumption computes the debit for a consumption of requested against
// available stock. Consumption never produces a negative quantity: it clamps
// to what is there. A negative remaining quantity after clamping is an
// internal defect and panics.
func ApplyConsumption(available, requested float64) ConsumptionOutcome {
	consumed := requested
	clamped := false
	if consumed > available {
		consumed = available
		clamped = true
	}

	remaining := available - consumed
	if remaining < -QuantityEpsilon {
		panic(fmt.Sprintf("negative stock after clamped consumption: available=%f requested=%f", available, requested))
	}

	outcome := ConsumptionOutcome{
		Consumed:  consumed,
		Remaining: remaining,
		Clamped:   clamped,
	}
	if IsEffectivelyZero(remaining) {
		outcome.Remaining = 0
		outcome.Archive = true
	}
	return outcome
}
