// Package handler contains the JSON HTTP handlers for the billing service.
//
// This file implements the delinquency report handler.
//
// Routes handled:
//   - GET  /api/delinquency        -> List
//   - POST /api/delinquency/notify -> Notify
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/auth"
	"github.com/solvista/facturador/internal/service"
)

// DelinquencyHandler handles delinquency report HTTP requests.
type DelinquencyHandler struct {
	delinquency service.DelinquencyService
	logger      *slog.Logger
}

// NewDelinquencyHandler creates a new DelinquencyHandler.
func NewDelinquencyHandler(delinquency service.DelinquencyService, logger *slog.Logger) *DelinquencyHandler {
	return &DelinquencyHandler{
		delinquency: delinquency,
		logger:      logger,
	}
}

// RegisterRoutes registers delinquency routes on the provided mux.
func (h *DelinquencyHandler) RegisterRoutes(mux *http.ServeMux, requirePrincipal func(http.Handler) http.Handler) {
	mux.Handle("GET /api/delinquency", requirePrincipal(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/delinquency/notify", requirePrincipal(http.HandlerFunc(h.Notify)))
}

type delinquentOrgResponse struct {
	OrganizationID uuid.UUID       `json:"organization_id"`
	Name           string          `json:"name"`
	AccountStatus  string          `json:"account_status"`
	ContactName    string          `json:"contact_name,omitempty"`
	ContactEmail   string          `json:"contact_email,omitempty"`
	InvoiceCount   int32           `json:"invoice_count"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	OldestDueDate  *time.Time      `json:"oldest_due_date,omitempty"`
	DaysOverdue    int32           `json:"days_overdue"`
}

// List returns organizations with past-due unpaid invoices, worst first.
func (h *DelinquencyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())
	q := r.URL.Query()

	var limit, offset int32
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			limit = int32(n)
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			offset = int32(n)
		}
	}

	rows, err := h.delinquency.List(r.Context(), principal, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]delinquentOrgResponse, 0, len(rows))
	for _, d := range rows {
		row := delinquentOrgResponse{
			OrganizationID: d.OrganizationID,
			Name:           d.Name,
			AccountStatus:  d.AccountStatus,
			ContactName:    d.ContactName,
			ContactEmail:   d.ContactEmail,
			InvoiceCount:   d.InvoiceCount,
			PendingAmount:  d.PendingAmount,
			DaysOverdue:    d.DaysOverdue,
		}
		if !d.OldestDueDate.IsZero() {
			due := d.OldestDueDate
			row.OldestDueDate = &due
		}
		resp = append(resp, row)
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// Notify enqueues delinquency notices for every flagged organization.
func (h *DelinquencyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	enqueued, err := h.delinquency.Notify(r.Context(), principal)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, map[string]int{"enqueued": enqueued})
}
