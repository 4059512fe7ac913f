/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts cross the API as decimal strings ("33.34"), never as floats.
  Parsing happens once at the handler boundary.

VALIDATION:
  Structural validation (required, min/max) lives in the struct tags and
  runs through go-playground/validator. Domain rules (payment methods,
  split bounds, stock) stay in the ledger package.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateClientRequest is the request to register a client.
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// SplitRequest asks for an installment plan on a purchase.
type SplitRequest struct {
	Count        int    `json:"count" validate:"required,min=1,max=6"`
	IntervalDays int    `json:"interval_days" validate:"required,min=1"`
	FirstDue     string `json:"first_due" validate:"required"` // "2006-01-02"
}

// CreatePurchaseRequest is the request to register a sale.
type CreatePurchaseRequest struct {
	Item   string        `json:"item" validate:"required"`
	Amount string        `json:"amount" validate:"required"`
	Split  *SplitRequest `json:"split,omitempty"`
}

// CreateDebtRequest is the request to register a product sale as a debt.
// The stock decrement and the debt record land atomically.
type CreateDebtRequest struct {
	Product   string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

// CreatePaymentRequest is the request to record a payment against the
// client's aggregate balance.
type CreatePaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
	Method string `json:"method" validate:"required"`
}

// PayInstallmentRequest settles one installment.
type PayInstallmentRequest struct {
	Method string `json:"method" validate:"required"`
}

// CreateRelativeRequest attaches a relative to a client.
type CreateRelativeRequest struct {
	Name         string `json:"name" validate:"required"`
	BirthDate    string `json:"birth_date" validate:"required"` // "2006-01-02"
	Relationship string `json:"relationship"`
}

// CreateProductRequest registers a stock product.
type CreateProductRequest struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=0"`
}

// StockInRequest records a manual restock.
type StockInRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BalanceDTO is the derived money position of a client.
type BalanceDTO struct {
	TotalPurchased string `json:"total_purchased"`
	TotalPaid      string `json:"total_paid"`
	Balance        string `json:"balance"`
}

// InstallmentDTO represents one installment with its derived status.
type InstallmentDTO struct {
	ID         string  `json:"id"`
	Number     int     `json:"number"`
	DueDate    string  `json:"due_date,omitempty"`
	Value      string  `json:"value"`
	Status     string  `json:"status"`
	PaidAt     *string `json:"paid_at,omitempty"`
	Method     string  `json:"method,omitempty"`
	BadDueDate bool    `json:"bad_due_date,omitempty"`
}

// PurchaseDTO represents a purchase with its installment schedule.
type PurchaseDTO struct {
	ID           string           `json:"id"`
	Item         string           `json:"item"`
	TotalValue   string           `json:"total_value"`
	CreatedAt    string           `json:"created_at"`
	Installments []InstallmentDTO `json:"installments"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
	Method string `json:"method"`
}

// RelativeDTO represents a client's relative.
type RelativeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date"`
	Relationship string `json:"relationship,omitempty"`
}

// ClientDTO represents a client with derived balance and statuses.
type ClientDTO struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt string        `json:"created_at"`
	Balance   BalanceDTO    `json:"balance"`
	Purchases []PurchaseDTO `json:"purchases"`
	Payments  []PaymentDTO  `json:"payments"`
	Relatives []RelativeDTO `json:"relatives"`
}

// ProductDTO represents a stock product.
type ProductDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	CreatedAt string `json:"created_at"`
}

// MovementDTO represents one stock movement.
type MovementDTO struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	At            string `json:"at"`
	RefClientID   string `json:"ref_client_id,omitempty"`
	RefPurchaseID string `json:"ref_purchase_id,omitempty"`
}

// RefreshReportDTO summarizes one status sweep.
type RefreshReportDTO struct {
	Checked  int `json:"checked"`
	Updated  int `json:"updated"`
	Warnings int `json:"warnings"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func toInstallmentDTO(inst ledger.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:         string(inst.ID),
		Number:     inst.Number,
		Value:      inst.Value.String(),
		Status:     string(inst.Status),
		BadDueDate: inst.BadDueDate,
	}
	if !inst.BadDueDate {
		dto.DueDate = inst.DueDate.Format("2006-01-02")
	}
	if inst.PaidAt != nil {
		s := inst.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
		dto.Method = string(inst.Method)
	}
	return dto
}

func toPurchaseDTO(p ledger.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:           string(p.ID),
		Item:         p.Item,
		TotalValue:   p.TotalValue.String(),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		Installments: make([]InstallmentDTO, len(p.Installments)),
	}
	for i, inst := range p.Installments {
		dto.Installments[i] = toInstallmentDTO(inst)
	}
	return dto
}

func toClientDTO(v ledger.ClientView) ClientDTO {
	dto := ClientDTO{
		ID:        string(v.ID),
		Name:      v.Name,
		Phone:     v.Phone,
		Notes:     v.Notes,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
		Balance: BalanceDTO{
			TotalPurchased: v.TotalPurchased.String(),
			TotalPaid:      v.TotalPaid.String(),
			Balance:        v.Balance.String(),
		},
		Purchases: make([]PurchaseDTO, len(v.Purchases)),
		Payments:  make([]PaymentDTO, len(v.Payments)),
		Relatives: make([]RelativeDTO, len(v.Relatives)),
	}
	for i, p := range v.Purchases {
		dto.Purchases[i] = toPurchaseDTO(p)
	}
	for i, p := range v.Payments {
		dto.Payments[i] = PaymentDTO{
			ID:     string(p.ID),
			Amount: p.Amount.String(),
			Date:   p.Date.Format(time.RFC3339),
			Method: string(p.Method),
		}
	}
	for i, r := range v.Relatives {
		dto.Relatives[i] = RelativeDTO{
			ID:           string(r.ID),
			Name:         r.Name,
			BirthDate:    r.BirthDate.Format("2006-01-02"),
			Relationship: r.Relationship,
		}
	}
	return dto
}

func toProductDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toMovementDTO(m inventory.Movement) MovementDTO {
	return MovementDTO{
		ID:            string(m.ID),
		ProductID:     string(m.ProductID),
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		At:            m.At.Format(time.RFC3339),
		RefClientID:   m.RefClientID,
		RefPurchaseID: m.RefPurchaseID,
	}
}
