// Package split computes per-participant cost allocations for expense line
// items. All money math goes through shopspring/decimal so that per-item
// splits reconcile exactly against the item amount.
package split

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Allocate distributes an item amount across the ratio's participants.
//
// Each participant with a positive share gets amount*share rounded to two
// decimal places (round half away from zero). Zero-share participants are
// excluded entirely. Any rounding drift is then added to the first split in
// the ratio's insertion order, so the returned splits always sum exactly to
// the item amount. That asymmetry toward the first-listed participant is
// intentional; it keeps the reconciliation rule trivial to reason about.
//
// When every share is zero the result is empty and the amount is left
// unallocated; callers that need accountability backfill a split themselves.
func Allocate(amount float64, ratio *model.SplitRatio) []model.Split {
	if ratio == nil || ratio.Len() == 0 {
		return nil
	}

	itemAmount := decimal.NewFromFloat(amount)
	allocated := decimal.Zero

	var splits []model.Split
	for _, p := range ratio.Participants() {
		share := ratio.Share(p)
		if share <= 0 {
			continue
		}
		portion := itemAmount.Mul(decimal.NewFromFloat(share)).Round(2)
		splits = append(splits, model.Split{
			Participant: p,
			Amount:      portion.InexactFloat64(),
		})
		allocated = allocated.Add(portion)
	}

	if len(splits) == 0 {
		return nil
	}

	// The reference only reconciled drift above a cent, relying on float
	// noise to trip the comparison. With exact decimal math we reconcile
	// every nonzero remainder, which is what the sum invariant requires.
	drift := itemAmount.Sub(allocated)
	if !drift.IsZero() {
		first := decimal.NewFromFloat(splits[0].Amount).Add(drift).Round(2)
		splits[0].Amount = first.InexactFloat64()
	}

	return splits
}

// Reconcile forces an existing split set to sum exactly to the item amount by
// adjusting the first split. Splits that already balance are returned
// unchanged. An empty split set is returned as-is.
func Reconcile(amount float64, splits []model.Split) []model.Split {
	if len(splits) == 0 {
		return splits
	}

	itemAmount := decimal.NewFromFloat(amount)
	total := decimal.Zero
	for _, s := range splits {
		total = total.Add(decimal.NewFromFloat(s.Amount))
	}

	drift := itemAmount.Sub(total)
	if drift.IsZero() {
		return splits
	}

	first := decimal.NewFromFloat(splits[0].Amount).Add(drift).Round(2)
	splits[0].Amount = first.InexactFloat64()
	return splits
}

// Sum adds a slice of float amounts exactly, rounded to two decimal places.
func Sum(amounts []float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}
