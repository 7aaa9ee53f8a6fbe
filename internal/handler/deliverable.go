// Package handler contains the JSON HTTP handlers for the billing service.
//
// This file implements deliverable recording handlers. The binary itself
// is uploaded here and written to blob storage before the ledger record
// is created.
//
// Routes handled:
//   - POST /api/tasks/{id}/deliverables -> Record (multipart upload)
//   - GET  /api/tasks/{id}/deliverables -> List
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/auth"
	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/service"
	"github.com/solvista/facturador/internal/storage"
)

// maxDeliverableSize caps deliverable uploads at 512 MiB.
const maxDeliverableSize = 512 << 20

// DeliverableHandler handles deliverable HTTP requests.
type DeliverableHandler struct {
	deliverables service.DeliverableService
	store        storage.Storage
	logger       *slog.Logger
}

// NewDeliverableHandler creates a new DeliverableHandler.
func NewDeliverableHandler(deliverables service.DeliverableService, store storage.Storage, logger *slog.Logger) *DeliverableHandler {
	return &DeliverableHandler{
		deliverables: deliverables,
		store:        store,
		logger:       logger,
	}
}

// RegisterRoutes registers deliverable routes on the provided mux.
func (h *DeliverableHandler) RegisterRoutes(mux *http.ServeMux, requirePrincipal func(http.Handler) http.Handler) {
	mux.Handle("POST /api/tasks/{id}/deliverables", requirePrincipal(http.HandlerFunc(h.Record)))
	mux.Handle("GET /api/tasks/{id}/deliverables", requirePrincipal(http.HandlerFunc(h.List)))
}

// =============================================================================
// Response Shapes
// =============================================================================

type deliverableResponse struct {
	ID                uuid.UUID `json:"id"`
	TaskID            uuid.UUID `json:"task_id"`
	VersionNum        int32     `json:"version_num"`
	StorageLocator    string    `json:"storage_locator"`
	SizeBytes         int64     `json:"size_bytes"`
	MimeType          string    `json:"mime_type"`
	CountsAgainstPlan bool      `json:"counts_against_plan"`
	PlanInstanceID    *int64    `json:"plan_instance_id,omitempty"`
	ApprovalStatus    string    `json:"approval_status"`
	CreatedAt         time.Time `json:"created_at"`
}

func toDeliverableResponse(d *domain.Deliverable) deliverableResponse {
	return deliverableResponse{
		ID:                d.ID,
		TaskID:            d.TaskID,
		VersionNum:        d.VersionNum,
		StorageLocator:    d.StorageLocator,
		SizeBytes:         d.SizeBytes,
		MimeType:          d.MimeType,
		CountsAgainstPlan: d.CountsAgainstPlan,
		PlanInstanceID:    d.PlanInstanceID,
		ApprovalStatus:    string(d.ApprovalStatus),
		CreatedAt:         d.CreatedAt,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// Record accepts a multipart upload, stores the binary and records the
// deliverable. Form fields:
//   - file: the deliverable binary (required)
//   - counts_against_plan: "true" to consume one plan unit
func (h *DeliverableHandler) Record(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid task id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDeliverableSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "file is required"))
		return
	}
	defer file.Close()

	countsAgainstPlan, _ := strconv.ParseBool(r.FormValue("counts_against_plan"))

	// Store the binary first; a quota rejection below leaves an orphaned
	// blob, which is cheaper to reconcile than a record without bytes.
	stored, err := h.store.Save(r.Context(), storage.SaveParams{
		TaskID:   taskID,
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "deliverable.upload", "failed to store deliverable"))
		return
	}

	deliverable, err := h.deliverables.Record(r.Context(), principal, domain.RecordDeliverableParams{
		TaskID:            taskID,
		StorageLocator:    stored.Locator,
		SizeBytes:         stored.Size,
		MimeType:          stored.ContentType,
		CountsAgainstPlan: countsAgainstPlan,
	})
	if err != nil {
		// Best-effort cleanup of the stored blob.
		if delErr := h.store.Delete(r.Context(), stored.Locator); delErr != nil {
			h.logger.Error("failed to clean up stored deliverable",
				"locator", stored.Locator,
				"error", delErr,
			)
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, toDeliverableResponse(deliverable))
}

// List returns a task's deliverables, newest version first.
func (h *DeliverableHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "invalid task id"))
		return
	}

	deliverables, err := h.deliverables.ListByTask(r.Context(), principal, taskID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]deliverableResponse, 0, len(deliverables))
	for i := range deliverables {
		resp = append(resp, toDeliverableResponse(&deliverables[i]))
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
