/*
handlers.go - HTTP API handlers for the client ledger

PURPOSE:
  Exposes the ledger and stock engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                  List all clients with balances
    POST   /api/clients                  Register client
    GET    /api/clients/{id}             Client with derived statuses
    DELETE /api/clients/{id}             Delete client (cascades)
    POST   /api/clients/{id}/relatives   Attach relative

  Purchases and debts:
    POST   /api/clients/{id}/purchases   Register sale (optional split)
    POST   /api/clients/{id}/debts       Product sale as debt (stock-coupled)
    POST   /api/clients/{id}/payments    Record payment

  Installments:
    POST   /api/clients/{id}/purchases/{pid}/installments/{iid}/pay
    DELETE /api/clients/{id}/purchases/{pid}/installments/{iid}

  Stock:
    GET    /api/products                 List products
    POST   /api/products                 Create product
    POST   /api/products/{id}/movements  Manual stock-in
    GET    /api/products/{id}/movements  Movement history
    DELETE /api/products/{id}/movements/{mid}  Reverse movement

  Admin:
    POST   /api/admin/refresh-statuses   Force a status sweep

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (already paid, duplicate name, insufficient stock)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/service.go: The domain logic behind every handler
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. Stock reads go
// straight to the inventory store; every stock mutation goes through
// the Service so it shares the Gateway code path.
type Handler struct {
	Service  *ledger.Service
	Stock    inventory.Store
	Log      zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a new handler around the ledger service.
func NewHandler(svc *ledger.Service, stock inventory.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Stock:    stock,
		Log:      log,
		validate: validator.New(),
	}
}

// decode parses the JSON body into dst and runs structural validation.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Message: "malformed JSON"}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients with derived balances.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.ListClients(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ClientDTO, len(views))
	for i, v := range views {
		dtos[i] = toClientDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient registers a client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	c, err := h.Service.RegisterClient(r.Context(), req.Name, req.Phone, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.Service.GetClient(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(*view))
}

// GetClient returns a single client with derived statuses and balance.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	view, err := h.Service.GetClient(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*view))
}

// DeleteClient removes a client and everything it owns.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	if err := h.Service.DeleteClient(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRelative attaches a relative to a client.
func (h *Handler) CreateRelative(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	var req CreateRelativeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	birthDate, err := parseDate(req.BirthDate, "birth_date")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	rel, err := h.Service.AddRelative(r.Context(), id, req.Name, birthDate, req.Relationship)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RelativeDTO{
		ID:           string(rel.ID),
		Name:         rel.Name,
		BirthDate:    rel.BirthDate.Format("2006-01-02"),
		Relationship: rel.Relationship,
	})
}

// =============================================================================
// PURCHASE AND DEBT HANDLERS
// =============================================================================

// CreatePurchase registers a sale, optionally split into installments.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	var req CreatePurchaseRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	amount, err := parseMoney(req.Amount, "amount")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var split *ledger.SplitSpec
	if req.Split != nil {
		firstDue, err := parseDate(req.Split.FirstDue, "first_due")
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		split = &ledger.SplitSpec{
			Count:        req.Split.Count,
			IntervalDays: req.Split.IntervalDays,
			FirstDue:     firstDue,
		}
	}

	p, err := h.Service.RegisterPurchase(r.Context(), id, req.Item, amount, split)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(p))
}

// CreateDebt registers a product sale as a debt. Stock decrement and
// debt record are one atomic unit.
func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	var req CreateDebtRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	unitPrice, err := parseMoney(req.UnitPrice, "unit_price")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.Service.RegisterDebt(r.Context(), id, req.Product, req.Quantity, unitPrice)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(p))
}

// CreatePayment records a payment against the client's balance.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))

	var req CreatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	amount, err := parseMoney(req.Amount, "amount")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pay, err := h.Service.RegisterPayment(r.Context(), id, amount, ledger.PaymentMethod(req.Method))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PaymentDTO{
		ID:     string(pay.ID),
		Amount: pay.Amount.String(),
		Date:   pay.Date.Format(time.RFC3339),
		Method: string(pay.Method),
	})
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// PayInstallment settles one installment and records the payment.
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	clientID := ledger.ClientID(chi.URLParam(r, "id"))
	purchaseID := ledger.PurchaseID(chi.URLParam(r, "pid"))
	installmentID := ledger.InstallmentID(chi.URLParam(r, "iid"))

	var req PayInstallmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	inst, err := h.Service.PayInstallment(r.Context(), clientID, purchaseID, installmentID, ledger.PaymentMethod(req.Method))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(inst))
}

// CancelInstallment removes a non-paid installment and reduces the
// purchase total by its value.
func (h *Handler) CancelInstallment(w http.ResponseWriter, r *http.Request) {
	clientID := ledger.ClientID(chi.URLParam(r, "id"))
	purchaseID := ledger.PurchaseID(chi.URLParam(r, "pid"))
	installmentID := ledger.InstallmentID(chi.URLParam(r, "iid"))

	if err := h.Service.CancelInstallment(r.Context(), clientID, purchaseID, installmentID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// ListProducts returns the stock catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Stock.ListProducts(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct registers a product, optionally with initial stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.Service.CreateProduct(r.Context(), req.Name, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// StockIn records a manual restock movement.
func (h *Handler) StockIn(w http.ResponseWriter, r *http.Request) {
	id := inventory.ProductID(chi.URLParam(r, "id"))

	var req StockInRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	product, err := h.Stock.GetProduct(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if product == nil {
		h.writeDomainError(w, inventory.ErrProductNotFound)
		return
	}

	m, err := h.Service.StockIn(r.Context(), product.Name, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(m))
}

// ListMovements returns a product's movement history.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id := inventory.ProductID(chi.URLParam(r, "id"))

	movements, err := h.Stock.ListMovements(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReverseMovement inverse-applies a stock movement. Reversing a sale
// also removes the linked client debt.
func (h *Handler) ReverseMovement(w http.ResponseWriter, r *http.Request) {
	productID := inventory.ProductID(chi.URLParam(r, "id"))
	movementID := inventory.MovementID(chi.URLParam(r, "mid"))

	if err := h.Service.ReverseMovement(r.Context(), productID, movementID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RefreshStatuses forces a status sweep outside the timer.
func (h *Handler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.RefreshStatuses(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshReportDTO{
		Checked:  report.Checked,
		Updated:  report.Updated,
		Warnings: report.Warnings,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(s, field string) (ledger.Money, error) {
	m, err := ledger.ParseMoney(s)
	if err != nil {
		return ledger.Money{}, &ledger.ValidationError{Field: field, Message: "must be a decimal amount"}
	}
	return m, nil
}

func parseDate(s, field string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

// writeDomainError classifies a domain error into an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case ledger.IsNotFound(err),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrMovementNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err),
		errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		h.Log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
