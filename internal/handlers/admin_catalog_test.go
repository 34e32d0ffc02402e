package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/platform/auth"
	"github.com/lumencraft/storefront-api/internal/services"
)

type stubAdminService struct {
	discount        domain.Discount
	discountErr     error
	discounts       []domain.Discount
	usage           []domain.DiscountUsage
	taxRate         domain.TaxRate
	taxRateErr      error
	taxRates        []domain.TaxRate
	lastDiscountCmd services.UpsertDiscountCommand
	lastTaxRateCmd  services.UpsertTaxRateCommand
	deletedTaxRate  string
	deactivated     string
}

func (s *stubAdminService) CreateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (domain.Discount, error) {
	s.lastDiscountCmd = cmd
	return s.discount, s.discountErr
}

func (s *stubAdminService) UpdateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (domain.Discount, error) {
	s.lastDiscountCmd = cmd
	return s.discount, s.discountErr
}

func (s *stubAdminService) DeactivateDiscount(ctx context.Context, id string) error {
	s.deactivated = id
	return s.discountErr
}

func (s *stubAdminService) GetDiscount(ctx context.Context, id string) (domain.Discount, error) {
	return s.discount, s.discountErr
}

func (s *stubAdminService) ListDiscounts(ctx context.Context, isActive *bool, limit int) ([]domain.Discount, error) {
	return s.discounts, s.discountErr
}

func (s *stubAdminService) ListDiscountUsage(ctx context.Context, query services.DiscountUsageQuery) ([]domain.DiscountUsage, error) {
	return s.usage, s.discountErr
}

func (s *stubAdminService) CreateTaxRate(ctx context.Context, cmd services.UpsertTaxRateCommand) (domain.TaxRate, error) {
	s.lastTaxRateCmd = cmd
	return s.taxRate, s.taxRateErr
}

func (s *stubAdminService) UpdateTaxRate(ctx context.Context, cmd services.UpsertTaxRateCommand) (domain.TaxRate, error) {
	s.lastTaxRateCmd = cmd
	return s.taxRate, s.taxRateErr
}

func (s *stubAdminService) DeleteTaxRate(ctx context.Context, id string) error {
	s.deletedTaxRate = id
	return s.taxRateErr
}

func (s *stubAdminService) GetTaxRate(ctx context.Context, id string) (domain.TaxRate, error) {
	return s.taxRate, s.taxRateErr
}

func (s *stubAdminService) ListTaxRates(ctx context.Context, isActive *bool, limit int) ([]domain.TaxRate, error) {
	return s.taxRates, s.taxRateErr
}

func newAdminRouter(admin services.AdminService) chi.Router {
	handler := NewAdminCatalogHandlers(nil, admin)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func adminRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}))
}

func TestAdminCatalogCreateDiscount(t *testing.T) {
	now := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	admin := &stubAdminService{discount: domain.Discount{
		ID:        "disc-1",
		Code:      "WELCOME10",
		Type:      domain.DiscountTypePercentage,
		Value:     10,
		StartsAt:  now,
		EndsAt:    now.Add(720 * time.Hour),
		IsActive:  true,
		AppliesTo: domain.DiscountAppliesTo{AllProducts: true},
	}}
	router := newAdminRouter(admin)

	body := `{"code":"welcome10","discountType":"percentage","value":"10","startDate":"2025-05-01T00:00:00Z","endDate":"2025-05-31T00:00:00Z","minOrderAmount":"25"}`
	req := adminRequest(http.MethodPost, "/admin/discounts", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	cmd := admin.lastDiscountCmd
	if cmd.Type != domain.DiscountTypePercentage {
		t.Fatalf("expected normalized type, got %q", cmd.Type)
	}
	if cmd.Value != 10 {
		t.Fatalf("expected coerced value 10 got %v", cmd.Value)
	}
	if cmd.MinOrderAmount == nil || *cmd.MinOrderAmount != 25 {
		t.Fatalf("expected coerced min order amount, got %v", cmd.MinOrderAmount)
	}
	if cmd.CreatedBy != "admin-1" {
		t.Fatalf("expected creator stamped from identity, got %q", cmd.CreatedBy)
	}
	if !cmd.AppliesTo.AllProducts {
		t.Fatalf("expected default all-products applicability")
	}
}

func TestAdminCatalogCreateDiscountBadDate(t *testing.T) {
	router := newAdminRouter(&stubAdminService{})

	body := `{"code":"X","discountType":"FIXED","value":5,"startDate":"tomorrow","endDate":"2025-05-31T00:00:00Z"}`
	req := adminRequest(http.MethodPost, "/admin/discounts", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "startDate") {
		t.Fatalf("expected date error, got %s", rr.Body.String())
	}
}

func TestAdminCatalogDiscountValidationError(t *testing.T) {
	admin := &stubAdminService{discountErr: services.ErrAdminInvalidInput}
	router := newAdminRouter(admin)

	body := `{"code":"X","discountType":"PERCENTAGE","value":200,"startDate":"2025-05-01T00:00:00Z","endDate":"2025-05-31T00:00:00Z"}`
	req := adminRequest(http.MethodPost, "/admin/discounts", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestAdminCatalogDeactivateDiscount(t *testing.T) {
	admin := &stubAdminService{}
	router := newAdminRouter(admin)

	req := adminRequest(http.MethodDelete, "/admin/discounts/disc-1", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if admin.deactivated != "disc-1" {
		t.Fatalf("expected deactivation of disc-1, got %q", admin.deactivated)
	}
}

func TestAdminCatalogListDiscountUsage(t *testing.T) {
	now := time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC)
	admin := &stubAdminService{usage: []domain.DiscountUsage{
		{ID: "usage-1", DiscountID: "disc-1", UserID: "user-1", OrderID: "order-1", DiscountAmount: 5, Status: domain.UsageStatusCompleted, UsedAt: now},
	}}
	router := newAdminRouter(admin)

	req := adminRequest(http.MethodGet, "/admin/discounts/disc-1/usage", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp struct {
		Usage []usagePayload `json:"usage"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Usage) != 1 || resp.Usage[0].Status != "COMPLETED" {
		t.Fatalf("unexpected usage payload %+v", resp.Usage)
	}
}

func TestAdminCatalogCreateTaxRate(t *testing.T) {
	admin := &stubAdminService{taxRate: domain.TaxRate{ID: "tax-1", Name: "State", Rate: 7.25, IsActive: true}}
	router := newAdminRouter(admin)

	body := `{"name":"State","rate":"7.25","country":"US","state":"CA","priority":10,"appliesToShipping":true}`
	req := adminRequest(http.MethodPost, "/admin/tax-rates", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	cmd := admin.lastTaxRateCmd
	if cmd.Rate != 7.25 {
		t.Fatalf("expected coerced rate 7.25 got %v", cmd.Rate)
	}
	if cmd.Country == nil || *cmd.Country != "US" {
		t.Fatalf("expected country forwarded, got %v", cmd.Country)
	}
	if !cmd.AppliesToShipping || cmd.Priority != 10 {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestAdminCatalogTaxRateNotFound(t *testing.T) {
	admin := &stubAdminService{taxRateErr: services.ErrTaxRateNotFound}
	router := newAdminRouter(admin)

	req := adminRequest(http.MethodGet, "/admin/tax-rates/missing", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestAdminCatalogDeleteTaxRate(t *testing.T) {
	admin := &stubAdminService{}
	router := newAdminRouter(admin)

	req := adminRequest(http.MethodDelete, "/admin/tax-rates/tax-1", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if admin.deletedTaxRate != "tax-1" {
		t.Fatalf("expected deletion of tax-1, got %q", admin.deletedTaxRate)
	}
}
