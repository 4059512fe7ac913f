/*
schedule.go - Installment schedule construction

PURPOSE:
  Turns a purchase total and a split request into an ordered, gapless
  sequence of installments whose values sum exactly to the total.

CRITICAL INVARIANT:
  sum(installment.Value) == totalValue, penny-exact, for every split
  count. Each of the first count-1 installments gets floor(total/count)
  at two decimal places; the LAST installment absorbs the rounding
  remainder. 100.00 / 3 -> [33.33, 33.33, 33.34].

PURITY:
  No side effects here. The caller persists the result as part of the
  purchase transaction.

SEE ALSO:
  - service.go: RegisterPurchase persists schedules atomically
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxInstallments is the largest split the business offers.
const MaxInstallments = 6

// Schedule builds the installment sequence for a purchase.
//
// count == 1 yields a single installment due on firstDue with the full
// value. For count > 1, due dates step by intervalDays starting at
// firstDue, and values split per the floor-plus-remainder rule.
func Schedule(total Money, count, intervalDays int, firstDue time.Time) ([]Installment, error) {
	if !total.IsPositive() {
		return nil, &ValidationError{Field: "totalValue", Message: "must be positive"}
	}
	if count < 1 || count > MaxInstallments {
		return nil, &ValidationError{
			Field:   "count",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxInstallments, count),
		}
	}
	if intervalDays < 1 {
		return nil, &ValidationError{Field: "intervalDays", Message: "must be at least 1"}
	}

	installments := make([]Installment, count)

	base := total.divFloor(int64(count))
	assigned := ZeroMoney()

	for i := 0; i < count; i++ {
		value := base
		if i == count-1 {
			// Last installment absorbs the rounding remainder so the
			// sum invariant holds exactly.
			value = total.Sub(assigned)
		}
		assigned = assigned.Add(value)

		installments[i] = Installment{
			ID:      InstallmentID(uuid.NewString()),
			Number:  i + 1,
			DueDate: firstDue.AddDate(0, 0, i*intervalDays),
			Value:   value,
			Status:  StatusPending,
		}
	}

	return installments, nil
}
