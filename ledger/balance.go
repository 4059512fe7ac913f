/*
balance.go - Balance aggregation over a client's ledger

PURPOSE:
  Pure aggregation: total purchased, total paid, and the outstanding
  balance, computed by replaying the client's stored purchases and
  payments. There is no persisted balance counter to drift.

RECONCILIATION PROPERTY:
  balance == totalPurchased - totalPaid, and under normal operation it
  also equals the sum of non-paid installment values. That equivalence
  is a tested property, not an independently maintained number.

Negative balance is legal: the business extends store credit, so an
overpayment simply drives the balance below zero.
*/
package ledger

import "time"

// BalanceSummary is the derived money position of one client.
type BalanceSummary struct {
	TotalPurchased Money
	TotalPaid      Money
	Balance        Money
}

// Aggregate computes a client's balance summary. No side effects; safe
// to call repeatedly and concurrently.
func Aggregate(c Client) BalanceSummary {
	purchased := ZeroMoney()
	for _, p := range c.Purchases {
		purchased = purchased.Add(p.TotalValue)
	}

	paid := ZeroMoney()
	for _, pay := range c.Payments {
		paid = paid.Add(pay.Amount)
	}

	return BalanceSummary{
		TotalPurchased: purchased,
		TotalPaid:      paid,
		Balance:        purchased.Sub(paid),
	}
}

// OutstandingInstallments sums the value of every installment whose
// derived status is not paid. This is the secondary "outstanding by
// installment" view; it reconciles with Aggregate().Balance under
// normal operation.
func OutstandingInstallments(c Client, now time.Time) Money {
	outstanding := ZeroMoney()
	for _, p := range c.Purchases {
		for _, inst := range p.Installments {
			status, _ := DeriveStatus(inst, now)
			if status != StatusPaid {
				outstanding = outstanding.Add(inst.Value)
			}
		}
	}
	return outstanding
}
