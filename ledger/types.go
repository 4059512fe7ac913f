/*
Package ledger provides the customer ledger and installment engine.

PURPOSE:
  This package turns stored facts - purchases, installments, payments -
  into derived truth: outstanding balances and point-in-time installment
  status. Nothing here mutates status ad hoc; status and balance are
  always recomputable from the facts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: Fixed-point decimal amount (never binary floating point)
  - Client: Owner of purchases, payments, and relatives
  - Purchase: A sale or debt, carrying its installment schedule
  - Installment: One scheduled sub-payment with its own due date
  - Payment: Money received against a client's aggregate balance

DESIGN PRINCIPLES:
  1. Derivability: installment status is computed from due date, paid
     marker, and "now"; any persisted label is a cache, not truth.
  2. Precision: Money uses decimal.Decimal so installment splits sum
     penny-exact to the purchase total.
  3. Ownership: deleting a client removes everything it owns as one
     atomic unit.

SEE ALSO:
  - schedule.go: Installment schedule construction
  - status.go: Status derivation
  - balance.go: Balance aggregation
  - service.go: Mutating operations (reconciler, reversal)
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point decimal amount
// =============================================================================

// Money is a fixed-point monetary amount. All ledger arithmetic goes
// through this type; two decimal places are the working precision.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value).Round(2)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

// ParseMoney parses a decimal string like "33.34".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses s or returns zero. For stored values only.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) MulInt(n int64) Money       { return Money{Value: m.Value.Mul(decimal.NewFromInt(n))} }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// divFloor returns m/n truncated to two decimal places. Used by the
// scheduler; the last installment absorbs whatever this leaves over.
func (m Money) divFloor(n int64) Money {
	return Money{Value: m.Value.Div(decimal.NewFromInt(n)).RoundDown(2)}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type PurchaseID string
type InstallmentID string
type PaymentID string
type RelativeID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodPix        PaymentMethod = "Pix"
	MethodCash       PaymentMethod = "Cash"
	MethodCreditCard PaymentMethod = "Credit Card"
	MethodDebitCard  PaymentMethod = "Debit Card"

	// MethodNone is the "not selected" sentinel. It only appears in
	// not-yet-submitted input and is never persisted.
	MethodNone PaymentMethod = "none"
)

// ValidMethod reports whether m is a persistable payment method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodPix, MethodCash, MethodCreditCard, MethodDebitCard:
		return true
	}
	return false
}

// =============================================================================
// INSTALLMENT STATUS
// =============================================================================

type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "pending"
	StatusOverdue InstallmentStatus = "overdue"
	StatusPaid    InstallmentStatus = "paid"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Client owns its purchases, payments, and relatives. Deleting a client
// cascades to everything it owns.
type Client struct {
	ID        ClientID
	Name      string
	Phone     string
	Notes     string // contact/demographic detail, opaque to the ledger
	CreatedAt time.Time

	Purchases []Purchase
	Payments  []Payment
	Relatives []Relative
}

// Purchase is a sale or debt registered against exactly one client.
// INVARIANT: the sum of installment values equals TotalValue exactly.
type Purchase struct {
	ID         PurchaseID
	ClientID   ClientID
	Item       string
	TotalValue Money
	CreatedAt  time.Time

	Installments []Installment
}

// Installment is one scheduled sub-payment of a purchase.
//
// Status is a cached label refreshed by the sweep; the source of truth
// is DeriveStatus over (DueDate, PaidAt, now). PaidAt and Method are
// set only when the installment is paid, and paid is terminal.
type Installment struct {
	ID         InstallmentID
	PurchaseID PurchaseID
	Number     int // 1-based, contiguous at creation; gaps may appear after cancellation
	DueDate    time.Time
	Value      Money
	Status     InstallmentStatus
	PaidAt     *time.Time
	Method     PaymentMethod

	// BadDueDate marks a record whose stored due date failed to parse.
	// Derivation skips it and surfaces a data-integrity warning.
	BadDueDate bool
}

// Paid reports whether a payment was recorded for this installment.
func (i Installment) Paid() bool { return i.PaidAt != nil }

// Payment is money received from a client. It pays down the aggregate
// balance and is not tied to a single purchase.
type Payment struct {
	ID       PaymentID
	ClientID ClientID
	Amount   Money
	Date     time.Time
	Method   PaymentMethod
}

// Relative belongs to a client; carried for the birthday domain, which
// shares the ownership model but is otherwise outside the ledger.
type Relative struct {
	ID           RelativeID
	ClientID     ClientID
	Name         string
	BirthDate    time.Time
	Relationship string
}

// SplitSpec asks for an installment plan on a purchase.
type SplitSpec struct {
	Count        int
	IntervalDays int
	FirstDue     time.Time
}
