// Package handler contains the JSON HTTP handlers for the billing service.
//
// This file implements plan catalog, plan instance and quota usage handlers.
//
// Routes handled:
//   - POST /api/plans                          -> CreateCatalogEntry
//   - GET  /api/plans                          -> ListCatalog
//   - POST /api/plan-instances                 -> Assign
//   - POST /api/plan-instances/{id}/end        -> End
//   - GET  /api/plan-instances/{id}/usage      -> Usage
//   - GET  /api/organizations/{id}/plan        -> ActiveInstance
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

// PlanHandler handles plan catalog and plan instance HTTP requests.
type PlanHandler struct {
	plans  service.PlanService
	quota  service.QuotaService
	logger *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(plans service.PlanService, quota service.QuotaService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		plans:  plans,
		quota:  quota,
		logger: logger,
	}
}

// RegisterRoutes registers plan routes on the provided mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux, requirePrincipal func(http.Handler) http.Handler) {
	mux.Handle("POST /api/plans", requirePrincipal(http.HandlerFunc(h.CreateCatalogEntry)))
	mux.Handle("GET /api/plans", requirePrincipal(http.HandlerFunc(h.ListCatalog)))
	mux.Handle("POST /api/plan-instances", requirePrincipal(http.HandlerFunc(h.Assign)))
	mux.Handle("POST /api/plan-instances/{id}/end", requirePrincipal(http.HandlerFunc(h.End)))
	mux.Handle("GET /api/plan-instances/{id}/usage", requirePrincipal(http.HandlerFunc(h.Usage)))
	mux.Handle("GET /api/organizations/{id}/plan", requirePrincipal(http.HandlerFunc(h.ActiveInstance)))
}

// =============================================================================
// Request / Response Shapes
// =============================================================================

type createPlanRequest struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	QuotaArt      int32           `json:"quota_art"`
	QuotaReel     int32           `json:"quota_reel"`
	QuotaCopy     int32           `json:"quota_copy"`
	QuotaVideo    int32           `json:"quota_video"`
	QuotaCarousel int32           `json:"quota_carousel"`
}

type planCatalogResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	QuotaArt      int32           `json:"quota_art"`
	QuotaReel     int32           `json:"quota_reel"`
	QuotaCopy     int32           `json:"quota_copy"`
	QuotaVideo    int32           `json:"quota_video"`
	QuotaCarousel int32           `json:"quota_carousel"`
	TotalUnits    int32           `json:"total_units"`
}

type assignPlanRequest struct {
	OrganizationID string `json:"organization_id"`
	PlanCatalogID  int64  `json:"plan_catalog_id"`
	Month          int32  `json:"month,omitempty"`
	Year           int32  `json:"year,omitempty"`
}

type planInstanceResponse struct {
	ID             int64     `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	PlanCatalogID  int64     `json:"plan_catalog_id"`
	Month          int32     `json:"month"`
	Year           int32     `json:"year"`
	TotalUnits     int32     `json:"total_units"`
	UsedUnits      int32     `json:"used_units"`
	RemainingUnits int32     `json:"remaining_units"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func toPlanCatalogResponse(e domain.PlanCatalogEntry) planCatalogResponse {
	return planCatalogResponse{
		ID:            e.ID,
		Name:          e.Name,
		Price:         e.Price,
		QuotaArt:      e.QuotaArt,
		QuotaReel:     e.QuotaReel,
		QuotaCopy:     e.QuotaCopy,
		QuotaVideo:    e.QuotaVideo,
		QuotaCarousel: e.QuotaCarousel,
		TotalUnits:    e.TotalUnits(),
	}
}

func toPlanInstanceResponse(m *domain.MonthlyPlanInstance) planInstanceResponse {
	return planInstanceResponse{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		PlanCatalogID:  m.PlanCatalogID,
		Month:          m.Month,
		Year:           m.Year,
		TotalUnits:     m.TotalUnits,
		UsedUnits:      m.UsedUnits,
		RemainingUnits: m.RemainingUnits(),
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// CreateCatalogEntry adds a plan template to the catalog.
func (h *PlanHandler) CreateCatalogEntry(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	var req createPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	entry, err := h.plans.CreateCatalogEntry(r.Context(), principal, domain.CreatePlanCatalogParams{
		Name:          req.Name,
		Price:         req.Price,
		QuotaArt:      req.QuotaArt,
		QuotaReel:     req.QuotaReel,
		QuotaCopy:     req.QuotaCopy,
		QuotaVideo:    req.QuotaVideo,
		QuotaCarousel: req.QuotaCarousel,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, toPlanCatalogResponse(*entry))
}

// ListCatalog returns all active catalog entries.
func (h *PlanHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	entries, err := h.plans.ListCatalog(r.Context(), principal)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]planCatalogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toPlanCatalogResponse(e))
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// Assign attaches a catalog plan to an organization for a month.
func (h *PlanHandler) Assign(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	var req assignPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid organization_id"))
		return
	}

	instance, err := h.plans.AssignPlan(r.Context(), principal, domain.AssignPlanParams{
		OrganizationID: orgID,
		PlanCatalogID:  req.PlanCatalogID,
		Month:          req.Month,
		Year:           req.Year,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, toPlanInstanceResponse(instance))
}

// End marks a plan instance ENDED.
func (h *PlanHandler) End(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.plans.EndPlan(r.Context(), principal, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Usage returns current used/total units for a plan instance.
func (h *PlanHandler) Usage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	instance, err := h.quota.Usage(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toPlanInstanceResponse(instance))
}

// ActiveInstance returns the organization's active plan for a period.
// Month and year default to the current period.
func (h *PlanHandler) ActiveInstance(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	var month, year int32
	if v := r.URL.Query().Get("month"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			month = int32(n)
		}
	}
	if v := r.URL.Query().Get("year"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			year = int32(n)
		}
	}

	instance, err := h.plans.GetActiveInstance(r.Context(), principal, r.PathValue("id"), month, year)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toPlanInstanceResponse(instance))
}
