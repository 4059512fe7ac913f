package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/client-ledger/ledger"
)

// =============================================================================
// BALANCE AGGREGATION TESTS
// =============================================================================

func TestAggregate_BalanceIsPurchasedMinusPaid(t *testing.T) {
	c := ledger.Client{
		ID: "c-1",
		Purchases: []ledger.Purchase{
			{ID: "p-1", TotalValue: money("100.00")},
			{ID: "p-2", TotalValue: money("49.90")},
		},
		Payments: []ledger.Payment{
			{ID: "pay-1", Amount: money("30.00"), Method: ledger.MethodCash},
			{ID: "pay-2", Amount: money("20.00"), Method: ledger.MethodPix},
		},
	}

	summary := ledger.Aggregate(c)

	assert.Equal(t, "149.90", summary.TotalPurchased.String())
	assert.Equal(t, "50.00", summary.TotalPaid.String())
	assert.Equal(t, "99.90", summary.Balance.String())
}

func TestAggregate_EmptyClientIsZero(t *testing.T) {
	summary := ledger.Aggregate(ledger.Client{ID: "c-1"})

	assert.True(t, summary.TotalPurchased.IsZero())
	assert.True(t, summary.TotalPaid.IsZero())
	assert.True(t, summary.Balance.IsZero())
}

func TestAggregate_OverpaymentGoesNegative(t *testing.T) {
	// Overpayment is store credit: the balance goes below zero instead
	// of being clamped.

	c := ledger.Client{
		ID:        "c-1",
		Purchases: []ledger.Purchase{{ID: "p-1", TotalValue: money("50.00")}},
		Payments:  []ledger.Payment{{ID: "pay-1", Amount: money("80.00"), Method: ledger.MethodPix}},
	}

	summary := ledger.Aggregate(c)
	assert.Equal(t, "-30.00", summary.Balance.String())
	assert.True(t, summary.Balance.IsNegative())
}

// =============================================================================
// RECONCILIATION PROPERTY
// =============================================================================

func TestOutstandingInstallments_ReconcilesWithBalance(t *testing.T) {
	// GIVEN: A 100.00 purchase in 3 installments, first one paid via
	//        the installment flow (payment recorded alongside)
	// THEN: balance == purchased - paid == sum of unpaid installments

	installments, err := ledger.Schedule(money("100.00"), 3, 30, date(2024, time.June, 1))
	require.NoError(t, err)

	paidAt := date(2024, time.June, 1)
	installments[0].PaidAt = &paidAt
	installments[0].Method = ledger.MethodCash
	installments[0].Status = ledger.StatusPaid

	c := ledger.Client{
		ID: "c-1",
		Purchases: []ledger.Purchase{{
			ID:           "p-1",
			TotalValue:   money("100.00"),
			Installments: installments,
		}},
		Payments: []ledger.Payment{
			{ID: "pay-1", Amount: installments[0].Value, Method: ledger.MethodCash},
		},
	}

	summary := ledger.Aggregate(c)
	outstanding := ledger.OutstandingInstallments(c, date(2024, time.June, 2))

	assert.True(t, summary.Balance.Equal(outstanding),
		"balance %s should equal outstanding installments %s", summary.Balance, outstanding)
	assert.Equal(t, "66.67", outstanding.String())
}
