package split

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Aggregate folds per-item splits into a total owed per participant and an
// item-level breakdown showing which items each participant is paying for.
//
// Totals are rounded to two decimal places. Breakdown entries are appended in
// line-item order and only for positive split amounts. The function is pure
// and idempotent; it is safe to call repeatedly on a persisted record.
func Aggregate(items []model.LineItem) (map[string]float64, map[string][]model.BreakdownEntry) {
	totals := make(map[string]decimal.Decimal)
	breakdown := make(map[string][]model.BreakdownEntry)

	for _, item := range items {
		for _, s := range item.Splits {
			totals[s.Participant] = totals[s.Participant].Add(decimal.NewFromFloat(s.Amount))

			if s.Amount > 0 {
				breakdown[s.Participant] = append(breakdown[s.Participant], model.BreakdownEntry{
					Item:      item.Description,
					Amount:    decimal.NewFromFloat(s.Amount).Round(2).InexactFloat64(),
					ItemTotal: item.Amount,
				})
			}
		}
	}

	rounded := make(map[string]float64, len(totals))
	for p, t := range totals {
		rounded[p] = t.Round(2).InexactFloat64()
	}

	return rounded, breakdown
}
