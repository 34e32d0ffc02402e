package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/platform/auth"
	"github.com/lumencraft/storefront-api/internal/services"
)

type stubDiscountService struct {
	validation  domain.DiscountValidation
	calculation domain.DiscountCalculation
	lastCode    string
	lastAppctx  domain.DiscountApplicationContext
}

func (s *stubDiscountService) ValidateCode(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountValidation {
	s.lastCode = code
	s.lastAppctx = appctx
	return s.validation
}

func (s *stubDiscountService) ApplyToOrder(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountCalculation {
	s.lastCode = code
	s.lastAppctx = appctx
	return s.calculation
}

type stubCheckoutService struct {
	estimate    services.CartEstimate
	estimateErr error
	order       domain.Order
	placeErr    error
	lastCmd     services.PlaceOrderCommand
}

func (s *stubCheckoutService) EstimateCart(ctx context.Context, cmd services.PlaceOrderCommand) (services.CartEstimate, error) {
	s.lastCmd = cmd
	if s.estimateErr != nil {
		return services.CartEstimate{}, s.estimateErr
	}
	return s.estimate, nil
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	s.lastCmd = cmd
	if s.placeErr != nil {
		return domain.Order{}, s.placeErr
	}
	return s.order, nil
}

func (s *stubCheckoutService) AssembleTotals(subtotal float64, discount domain.DiscountCalculation, tax domain.TaxResult, shipping float64, currency string) (domain.OrderTotals, error) {
	return domain.OrderTotals{}, nil
}

func newCartRouter(discounts services.DiscountService, checkout services.CheckoutService) chi.Router {
	handler := NewCartHandlers(nil, discounts, checkout)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)
	return router
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7", Roles: []string{auth.RoleUser}}))
}

func TestCartHandlersValidateDiscountAccepted(t *testing.T) {
	five := 5.0
	service := &stubDiscountService{
		calculation: domain.DiscountCalculation{
			IsValid: true,
			Discount: &domain.Discount{
				ID:                "disc-1",
				Code:              "SAVE10",
				Type:              domain.DiscountTypePercentage,
				Value:             10,
				MaxDiscountAmount: &five,
			},
			DiscountAmount: 5,
			FinalAmount:    95,
		},
	}
	router := newCartRouter(service, &stubCheckoutService{})

	body := `{"code":"SAVE10","items":[{"productId":"p1","quantity":2,"unitPrice":"40"},{"productId":"p2","quantity":1,"unitPrice":20}]}`
	req := authedRequest(http.MethodPost, "/cart/discount:validate", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp validateDiscountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid || resp.DiscountAmount != 5 || resp.FinalAmount != 95 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Discount == nil || resp.Discount.Code != "SAVE10" {
		t.Fatalf("expected discount payload, got %+v", resp.Discount)
	}

	// Loose unit prices must be coerced into the subtotal.
	if service.lastAppctx.Subtotal != 100 {
		t.Fatalf("expected coerced subtotal 100 got %v", service.lastAppctx.Subtotal)
	}
	if len(service.lastAppctx.ProductIDs) != 2 {
		t.Fatalf("expected product ids forwarded, got %v", service.lastAppctx.ProductIDs)
	}
}

func TestCartHandlersValidateDiscountRejected(t *testing.T) {
	service := &stubDiscountService{
		calculation: domain.DiscountCalculation{
			IsValid:     false,
			Reason:      "usage limit reached",
			FinalAmount: 100,
		},
	}
	router := newCartRouter(service, &stubCheckoutService{})

	req := authedRequest(http.MethodPost, "/cart/discount:validate", `{"code":"SAVE10","subtotal":100}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp validateDiscountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid {
		t.Fatalf("expected rejection")
	}
	if resp.Reason != "usage limit reached" {
		t.Fatalf("unexpected reason %q", resp.Reason)
	}
	if resp.FinalAmount != 100 {
		t.Fatalf("expected subtotal unchanged, got %v", resp.FinalAmount)
	}
}

func TestCartHandlersValidateDiscountRequiresAuth(t *testing.T) {
	router := newCartRouter(&stubDiscountService{}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart/discount:validate", strings.NewReader(`{"code":"X"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestCartHandlersValidateDiscountRequiresCode(t *testing.T) {
	router := newCartRouter(&stubDiscountService{}, &stubCheckoutService{})

	req := authedRequest(http.MethodPost, "/cart/discount:validate", `{"subtotal":50}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCartHandlersEstimate(t *testing.T) {
	checkout := &stubCheckoutService{
		estimate: services.CartEstimate{
			Totals: domain.OrderTotals{
				Currency:       "USD",
				Subtotal:       100,
				DiscountTotal:  5,
				TaxAmount:      9.5,
				ShippingAmount: 10,
				FinalPrice:     114.5,
			},
			Tax: domain.TaxResult{
				TotalRate: 10,
				Breakdown: []domain.TaxLine{
					{Rate: domain.TaxRate{ID: "tax-1", Name: "State", Rate: 10}, Amount: 9.5},
				},
			},
		},
	}
	router := newCartRouter(&stubDiscountService{}, checkout)

	body := `{"items":[{"productId":"p1","quantity":1,"unitPrice":100}],"discountCode":"SAVE10","shippingAmount":"10","country":"US","state":"CA"}`
	req := authedRequest(http.MethodPost, "/cart/estimate", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp estimateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Totals.FinalPrice != 114.5 {
		t.Fatalf("unexpected totals %+v", resp.Totals)
	}
	if len(resp.TaxBreakdown) != 1 || resp.TaxBreakdown[0].ID != "tax-1" {
		t.Fatalf("unexpected breakdown %+v", resp.TaxBreakdown)
	}

	if checkout.lastCmd.ShippingAmount != 10 {
		t.Fatalf("expected coerced shipping 10 got %v", checkout.lastCmd.ShippingAmount)
	}
	if checkout.lastCmd.DiscountCode == nil || *checkout.lastCmd.DiscountCode != "SAVE10" {
		t.Fatalf("expected discount code forwarded, got %v", checkout.lastCmd.DiscountCode)
	}
	if checkout.lastCmd.ShippingTo.Country != "US" || checkout.lastCmd.ShippingTo.State != "CA" {
		t.Fatalf("expected location forwarded, got %+v", checkout.lastCmd.ShippingTo)
	}
}

func TestCartHandlersEstimateDiscountRejected(t *testing.T) {
	checkout := &stubCheckoutService{
		estimateErr: &services.DiscountRejectedError{Code: "SAVE10", Reason: "expired"},
	}
	router := newCartRouter(&stubDiscountService{}, checkout)

	req := authedRequest(http.MethodPost, "/cart/estimate", `{"items":[{"productId":"p1","quantity":1,"unitPrice":10}],"discountCode":"SAVE10"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "expired") {
		t.Fatalf("expected rejection reason in body: %s", rr.Body.String())
	}
}

func TestCartHandlersValidateDiscountRateLimited(t *testing.T) {
	router := newCartRouter(&stubDiscountService{calculation: domain.DiscountCalculation{IsValid: true}}, &stubCheckoutService{})

	var last int
	for i := 0; i < validateRateLimit+1; i++ {
		req := authedRequest(http.MethodPost, "/cart/discount:validate", `{"code":"SAVE10","subtotal":10}`)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding the window, got %d", last)
	}
}
