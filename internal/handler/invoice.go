// Package handler contains the JSON HTTP handlers for the billing service.
//
// This file implements invoice and payment handlers.
//
// Routes handled:
//   - POST   /api/invoices                  -> Create
//   - GET    /api/invoices                  -> List
//   - GET    /api/invoices/{id}             -> Get
//   - PATCH  /api/invoices/{id}             -> Update
//   - DELETE /api/invoices/{id}             -> Delete
//   - POST   /api/invoices/{id}/payments    -> ApplyPayment
//   - GET    /api/invoices/{id}/payments    -> ListPayments
//   - GET    /api/organizations/{id}/account-status -> AccountStatus
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/auth"
	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/service"
)

// InvoiceHandler handles invoice and payment HTTP requests.
type InvoiceHandler struct {
	invoices service.InvoiceService
	payments service.PaymentService
	logger   *slog.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoices service.InvoiceService, payments service.PaymentService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes registers invoice routes on the provided mux.
func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux, requirePrincipal func(http.Handler) http.Handler) {
	mux.Handle("POST /api/invoices", requirePrincipal(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/invoices", requirePrincipal(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/invoices/{id}", requirePrincipal(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/invoices/{id}", requirePrincipal(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/invoices/{id}", requirePrincipal(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/invoices/{id}/payments", requirePrincipal(http.HandlerFunc(h.ApplyPayment)))
	mux.Handle("GET /api/invoices/{id}/payments", requirePrincipal(http.HandlerFunc(h.ListPayments)))
	mux.Handle("GET /api/organizations/{id}/account-status", requirePrincipal(http.HandlerFunc(h.AccountStatus)))
}

// =============================================================================
// Request / Response Shapes
// =============================================================================

type lineItemRequest struct {
	Concept   string          `json:"concept"`
	Category  string          `json:"category"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createInvoiceRequest struct {
	OrganizationID string            `json:"organization_id"`
	Period         string            `json:"period"`
	DueDate        *string           `json:"due_date,omitempty"` // "2006-01-02"
	LineItems      []lineItemRequest `json:"line_items"`
}

type updateInvoiceRequest struct {
	Period  *string          `json:"period,omitempty"`
	DueDate *string          `json:"due_date,omitempty"`
	Total   *decimal.Decimal `json:"total,omitempty"`
}

type applyPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	PaymentDate *string         `json:"payment_date,omitempty"` // "2006-01-02"
}

type lineItemResponse struct {
	ID        int64           `json:"id"`
	Concept   string          `json:"concept"`
	Category  string          `json:"category"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Position  int32           `json:"position"`
}

type invoiceResponse struct {
	ID             int64              `json:"id"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	Period         string             `json:"period"`
	Total          decimal.Decimal    `json:"total"`
	Balance        decimal.Decimal    `json:"balance"`
	Status         string             `json:"status"`
	DueDate        *string            `json:"due_date,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	LineItems      []lineItemResponse `json:"line_items,omitempty"`
}

type invoiceListResponse struct {
	Invoices []invoiceResponse `json:"invoices"`
	Total    int64             `json:"total"`
}

type paymentResponse struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	PaymentDate string          `json:"payment_date"`
	Status      string          `json:"status"`
}

type accountStatusResponse struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Status         string    `json:"status"`
	DaysOverdue    int32     `json:"days_overdue"`
	LastPayment    *string   `json:"last_payment,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type paymentResultResponse struct {
	Payment       paymentResponse `json:"payment"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	InvoiceStatus string          `json:"invoice_status"`
}

const dateLayout = "2006-01-02"

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:             inv.ID,
		OrganizationID: inv.OrganizationID,
		Period:         inv.Period,
		Total:          inv.Total,
		Balance:        inv.Balance,
		Status:         string(inv.Status),
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	if inv.DueDate != nil {
		due := inv.DueDate.Format(dateLayout)
		resp.DueDate = &due
	}
	for _, li := range inv.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			ID:        li.ID,
			Concept:   li.Concept,
			Category:  li.Category,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: li.LineTotal,
			Position:  li.Position,
		})
	}
	return resp
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		InvoiceID:   p.InvoiceID,
		Amount:      p.Amount,
		Method:      string(p.Method),
		Reference:   p.Reference,
		PaymentDate: p.PaymentDate.Format(dateLayout),
		Status:      p.PaymentStatus,
	}
}

// parseDate parses an optional "YYYY-MM-DD" string.
func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, domain.Invalid("handler.decode", "date must be in YYYY-MM-DD format")
	}
	return &t, nil
}

// pathID extracts the numeric {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.Invalid("handler.decode", "invalid id")
	}
	return id, nil
}

// =============================================================================
// Handlers
// =============================================================================

// Create issues a new invoice.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid organization_id"))
		return
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params := domain.CreateInvoiceParams{
		OrganizationID: orgID,
		Period:         req.Period,
		DueDate:        dueDate,
	}
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, domain.LineItemInput{
			Concept:   li.Concept,
			Category:  li.Category,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}

	invoice, err := h.invoices.Create(r.Context(), principal, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, toInvoiceResponse(invoice))
}

// List returns a page of invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())
	q := r.URL.Query()

	params := domain.ListInvoicesParams{
		Search: q.Get("search"),
	}
	for _, st := range q["status"] {
		params.Statuses = append(params.Statuses, domain.InvoiceStatus(st))
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			params.Limit = int32(n)
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			params.Offset = int32(n)
		}
	}

	result, err := h.invoices.List(r.Context(), principal, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := invoiceListResponse{
		Invoices: make([]invoiceResponse, 0, len(result.Invoices)),
		Total:    result.Total,
	}
	for i := range result.Invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(&result.Invoices[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

// Get returns one invoice with its line items.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	invoice, err := h.invoices.GetByID(r.Context(), principal, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toInvoiceResponse(invoice))
}

// Update edits an invoice.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req updateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	invoice, err := h.invoices.Update(r.Context(), principal, domain.UpdateInvoiceParams{
		ID:      id,
		Period:  req.Period,
		DueDate: dueDate,
		Total:   req.Total,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toInvoiceResponse(invoice))
}

// Delete soft-deletes an invoice.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.invoices.SoftDelete(r.Context(), principal, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyPayment records a payment against an invoice.
func (h *InvoiceHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req applyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.payments.Apply(r.Context(), principal, domain.ApplyPaymentParams{
		InvoiceID:   id,
		Amount:      req.Amount,
		Method:      domain.PaymentMethod(req.Method),
		Reference:   req.Reference,
		PaymentDate: paymentDate,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, paymentResultResponse{
		Payment:       toPaymentResponse(result.Payment),
		BalanceBefore: result.BalanceBefore,
		BalanceAfter:  result.BalanceAfter,
		InvoiceStatus: string(result.NewStatus),
	})
}

// AccountStatus returns an organization's billing standing.
func (h *InvoiceHandler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid organization id"))
		return
	}

	status, err := h.payments.GetAccountStatus(r.Context(), principal, orgID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := accountStatusResponse{
		OrganizationID: status.OrganizationID,
		Status:         status.Status,
		DaysOverdue:    status.DaysOverdue,
		UpdatedAt:      status.UpdatedAt,
	}
	if status.LastPayment != nil {
		last := status.LastPayment.Format(dateLayout)
		resp.LastPayment = &last
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// ListPayments returns the payments on an invoice.
func (h *InvoiceHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	payments, err := h.payments.ListByInvoice(r.Context(), principal, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
