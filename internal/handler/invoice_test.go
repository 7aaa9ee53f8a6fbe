package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvista/facturador/internal/auth"
	"github.com/solvista/facturador/internal/domain"
)

// stubInvoiceService returns canned values; handlers under test only care
// about decoding, routing and response shaping.
type stubInvoiceService struct {
	invoice *domain.Invoice
	list    *domain.ListInvoicesResult
	err     error

	gotCreate domain.CreateInvoiceParams
}

func (s *stubInvoiceService) Create(_ context.Context, _ *domain.Principal, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	s.gotCreate = params
	return s.invoice, s.err
}

func (s *stubInvoiceService) Update(_ context.Context, _ *domain.Principal, _ domain.UpdateInvoiceParams) (*domain.Invoice, error) {
	return s.invoice, s.err
}

func (s *stubInvoiceService) SoftDelete(_ context.Context, _ *domain.Principal, _ int64) error {
	return s.err
}

func (s *stubInvoiceService) GetByID(_ context.Context, _ *domain.Principal, _ int64) (*domain.Invoice, error) {
	return s.invoice, s.err
}

func (s *stubInvoiceService) List(_ context.Context, _ *domain.Principal, _ domain.ListInvoicesParams) (*domain.ListInvoicesResult, error) {
	return s.list, s.err
}

type stubPaymentService struct {
	result   *domain.PaymentResult
	payments []domain.Payment
	standing *domain.AccountStatus
	err      error
}

func (s *stubPaymentService) Apply(_ context.Context, _ *domain.Principal, _ domain.ApplyPaymentParams) (*domain.PaymentResult, error) {
	return s.result, s.err
}

func (s *stubPaymentService) ListByInvoice(_ context.Context, _ *domain.Principal, _ int64) ([]domain.Payment, error) {
	return s.payments, s.err
}

func (s *stubPaymentService) GetAccountStatus(_ context.Context, _ *domain.Principal, _ uuid.UUID) (*domain.AccountStatus, error) {
	return s.standing, s.err
}

// withTestPrincipal plays the role the auth middleware fills in production.
func withTestPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := &domain.Principal{
			ID:     uuid.New(),
			Name:   "Admin",
			Email:  "admin@example.com",
			Role:   domain.RoleAdmin,
			Active: true,
		}
		next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), principal)))
	})
}

func newInvoiceMux(invoices *stubInvoiceService, payments *stubPaymentService) *http.ServeMux {
	h := NewInvoiceHandler(invoices, payments, errorTestLogger())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, withTestPrincipal)
	return mux
}

func TestInvoiceHandler_Get(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	invoices := &stubInvoiceService{
		invoice: &domain.Invoice{
			ID:             17,
			OrganizationID: uuid.New(),
			Period:         "2026-08",
			Total:          decimal.RequireFromString("1500"),
			Balance:        decimal.RequireFromString("500"),
			Status:         domain.InvoiceStatusPartial,
			DueDate:        &due,
			LineItems: []domain.LineItem{
				{ID: 1, Concept: "Reels", Category: "REEL", Quantity: 3, UnitPrice: decimal.RequireFromString("500"), LineTotal: decimal.RequireFromString("1500"), Position: 1},
			},
		},
	}
	mux := newInvoiceMux(invoices, &stubPaymentService{})

	req := httptest.NewRequest("GET", "/api/invoices/17", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp invoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(17), resp.ID)
	assert.Equal(t, "2026-08", resp.Period)
	assert.Equal(t, "PARTIAL", resp.Status)
	require.NotNil(t, resp.DueDate)
	assert.Equal(t, "2026-09-15", *resp.DueDate)
	require.Len(t, resp.LineItems, 1)
	assert.Equal(t, int32(3), resp.LineItems[0].Quantity)
}

func TestInvoiceHandler_Get_InvalidID(t *testing.T) {
	mux := newInvoiceMux(&stubInvoiceService{}, &stubPaymentService{})

	req := httptest.NewRequest("GET", "/api/invoices/abc", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceHandler_Create_DecodesLineItems(t *testing.T) {
	orgID := uuid.New()
	invoices := &stubInvoiceService{
		invoice: &domain.Invoice{
			ID:             1,
			OrganizationID: orgID,
			Period:         "2026-08",
			Total:          decimal.RequireFromString("900"),
			Balance:        decimal.RequireFromString("900"),
			Status:         domain.InvoiceStatusPending,
		},
	}
	mux := newInvoiceMux(invoices, &stubPaymentService{})

	body := `{
		"organization_id": "` + orgID.String() + `",
		"period": "2026-08",
		"due_date": "2026-09-15",
		"line_items": [
			{"concept": "Artes", "category": "ART", "quantity": 3, "unit_price": "300"}
		]
	}`
	req := httptest.NewRequest("POST", "/api/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, orgID, invoices.gotCreate.OrganizationID)
	require.Len(t, invoices.gotCreate.LineItems, 1)
	assert.Equal(t, int32(3), invoices.gotCreate.LineItems[0].Quantity)
	require.NotNil(t, invoices.gotCreate.DueDate)
	assert.Equal(t, "2026-09-15", invoices.gotCreate.DueDate.Format("2006-01-02"))
}

func TestInvoiceHandler_Create_RejectsUnknownFields(t *testing.T) {
	mux := newInvoiceMux(&stubInvoiceService{}, &stubPaymentService{})

	req := httptest.NewRequest("POST", "/api/invoices", strings.NewReader(`{"bogus": true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceHandler_ApplyPayment(t *testing.T) {
	payments := &stubPaymentService{
		result: &domain.PaymentResult{
			Payment: domain.Payment{
				ID:            7,
				InvoiceID:     17,
				Amount:        decimal.RequireFromString("600"),
				Method:        domain.PaymentMethodTransfer,
				PaymentDate:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
				PaymentStatus: domain.PaymentStatusConfirmed,
			},
			BalanceBefore: decimal.RequireFromString("1000"),
			BalanceAfter:  decimal.RequireFromString("400"),
			NewStatus:     domain.InvoiceStatusPartial,
		},
	}
	mux := newInvoiceMux(&stubInvoiceService{}, payments)

	body := `{"amount": "600", "method": "TRANSFER", "reference": "wire-123"}`
	req := httptest.NewRequest("POST", "/api/invoices/17/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp paymentResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PARTIAL", resp.InvoiceStatus)
	assert.True(t, resp.BalanceAfter.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, "2026-08-29", resp.Payment.PaymentDate)
}

func TestInvoiceHandler_ApplyPayment_ConflictSurfaces(t *testing.T) {
	payments := &stubPaymentService{
		err: domain.Conflict("payment.apply", "payment amount exceeds remaining balance"),
	}
	mux := newInvoiceMux(&stubInvoiceService{}, payments)

	body := `{"amount": "600", "method": "TRANSFER"}`
	req := httptest.NewRequest("POST", "/api/invoices/17/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds remaining balance")
}

func TestInvoiceHandler_AccountStatus(t *testing.T) {
	orgID := uuid.New()
	last := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	payments := &stubPaymentService{
		standing: &domain.AccountStatus{
			OrganizationID: orgID,
			Status:         domain.AccountStatusCurrent,
			DaysOverdue:    0,
			LastPayment:    &last,
			UpdatedAt:      last,
		},
	}
	mux := newInvoiceMux(&stubInvoiceService{}, payments)

	req := httptest.NewRequest("GET", "/api/organizations/"+orgID.String()+"/account-status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp accountStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orgID, resp.OrganizationID)
	assert.Equal(t, "CURRENT", resp.Status)
	require.NotNil(t, resp.LastPayment)
	assert.Equal(t, "2026-08-20", *resp.LastPayment)
}

func TestInvoiceHandler_AccountStatus_InvalidID(t *testing.T) {
	mux := newInvoiceMux(&stubInvoiceService{}, &stubPaymentService{})

	req := httptest.NewRequest("GET", "/api/organizations/not-a-uuid/account-status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
