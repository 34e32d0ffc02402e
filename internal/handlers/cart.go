package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/platform/auth"
	"github.com/lumencraft/storefront-api/internal/platform/httpx"
	"github.com/lumencraft/storefront-api/internal/platform/numeric"
	"github.com/lumencraft/storefront-api/internal/services"
)

const (
	maxCartBodySize    = 16 * 1024
	validateRateLimit  = 30
	validateRateWindow = time.Minute
)

// CartHandlers exposes the cart pricing endpoints: discount validation and
// full cart estimates.
type CartHandlers struct {
	authn     *auth.Authenticator
	discounts services.DiscountService
	checkout  services.CheckoutService
	limiter   rateLimiter
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before pricing carts.
func NewCartHandlers(authn *auth.Authenticator, discounts services.DiscountService, checkout services.CheckoutService) *CartHandlers {
	return &CartHandlers{
		authn:     authn,
		discounts: discounts,
		checkout:  checkout,
		limiter:   newSimpleRateLimiter(validateRateLimit, validateRateWindow, nil),
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/discount:validate", h.validateDiscount)
	r.Post("/estimate", h.estimate)
}

// cartItemRequest tolerates loosely typed numeric fields from older clients.
type cartItemRequest struct {
	ProductID  string `json:"productId"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Quantity   any    `json:"quantity"`
	UnitPrice  any    `json:"unitPrice"`
}

type validateDiscountRequest struct {
	Code     string            `json:"code"`
	Subtotal any               `json:"subtotal"`
	Items    []cartItemRequest `json:"items"`
}

type discountPayload struct {
	ID                string   `json:"id"`
	Code              string   `json:"code"`
	Description       string   `json:"description,omitempty"`
	Type              string   `json:"type"`
	Value             float64  `json:"value"`
	MaxDiscountAmount *float64 `json:"maxDiscountAmount,omitempty"`
	MinOrderAmount    *float64 `json:"minOrderAmount,omitempty"`
}

type validateDiscountResponse struct {
	Valid          bool             `json:"valid"`
	Reason         string           `json:"reason,omitempty"`
	Discount       *discountPayload `json:"discount,omitempty"`
	DiscountAmount float64          `json:"discountAmount"`
	FinalAmount    float64          `json:"finalAmount"`
}

func (h *CartHandlers) validateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many validation attempts", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req validateDiscountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest))
		return
	}

	appctx := buildApplicationContext(identity.UID, req.Subtotal, req.Items)
	calc := h.discounts.ApplyToOrder(ctx, req.Code, appctx)

	resp := validateDiscountResponse{
		Valid:          calc.IsValid,
		Reason:         calc.Reason,
		DiscountAmount: calc.DiscountAmount,
		FinalAmount:    calc.FinalAmount,
	}
	if calc.IsValid && calc.Discount != nil {
		resp.Discount = buildDiscountPayload(*calc.Discount)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type estimateRequest struct {
	Items        []cartItemRequest `json:"items"`
	DiscountCode string            `json:"discountCode"`
	Shipping     any               `json:"shippingAmount"`
	Currency     string            `json:"currency"`
	Country      string            `json:"country"`
	State        string            `json:"state"`
	ZipCode      string            `json:"zipCode"`
}

type taxLinePayload struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

type totalsPayload struct {
	Currency       string  `json:"currency"`
	Subtotal       float64 `json:"subtotal"`
	DiscountTotal  float64 `json:"discountTotal"`
	TaxAmount      float64 `json:"taxAmount"`
	ShippingAmount float64 `json:"shippingAmount"`
	FinalPrice     float64 `json:"finalPrice"`
}

type estimateResponse struct {
	Totals       totalsPayload    `json:"totals"`
	Discount     *discountPayload `json:"discount,omitempty"`
	TaxTotalRate float64          `json:"taxTotalRate"`
	TaxBreakdown []taxLinePayload `json:"taxBreakdown"`
}

func (h *CartHandlers) estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req estimateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.PlaceOrderCommand{
		UserID:         identity.UID,
		Items:          buildOrderItems(req.Items),
		ShippingAmount: numeric.CoerceOr(req.Shipping, 0),
		Currency:       req.Currency,
		ShippingTo: domain.TaxLocation{
			Country: req.Country,
			State:   req.State,
			ZipCode: req.ZipCode,
		},
	}
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		cmd.DiscountCode = &code
	}

	estimate, err := h.checkout.EstimateCart(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	resp := estimateResponse{
		Totals:       buildTotalsPayload(estimate.Totals),
		TaxTotalRate: estimate.Tax.TotalRate,
		TaxBreakdown: buildTaxBreakdown(estimate.Tax),
	}
	if estimate.Discount.IsValid && estimate.Discount.Discount != nil {
		resp.Discount = buildDiscountPayload(*estimate.Discount.Discount)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func buildApplicationContext(uid string, subtotal any, items []cartItemRequest) domain.DiscountApplicationContext {
	orderItems := buildOrderItems(items)
	appctx := domain.DiscountApplicationContext{
		UserID: uid,
		Items:  orderItems,
	}
	for _, item := range orderItems {
		appctx.ProductIDs = append(appctx.ProductIDs, item.ProductID)
		if item.CategoryID != "" {
			appctx.CategoryIDs = append(appctx.CategoryIDs, item.CategoryID)
		}
		appctx.Subtotal += item.LineTotal()
	}
	if value, ok := numeric.Coerce(subtotal); ok {
		appctx.Subtotal = value
	}
	return appctx
}

func buildOrderItems(items []cartItemRequest) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{
			ProductID:  strings.TrimSpace(item.ProductID),
			CategoryID: strings.TrimSpace(item.CategoryID),
			Name:       strings.TrimSpace(item.Name),
			Quantity:   int(numeric.CoerceOr(item.Quantity, 0)),
			UnitPrice:  numeric.CoerceOr(item.UnitPrice, 0),
		})
	}
	return out
}

func buildDiscountPayload(discount domain.Discount) *discountPayload {
	return &discountPayload{
		ID:                discount.ID,
		Code:              discount.Code,
		Description:       discount.Description,
		Type:              string(discount.Type),
		Value:             discount.Value,
		MaxDiscountAmount: discount.MaxDiscountAmount,
		MinOrderAmount:    discount.MinOrderAmount,
	}
}

func buildTotalsPayload(totals domain.OrderTotals) totalsPayload {
	return totalsPayload{
		Currency:       totals.Currency,
		Subtotal:       totals.Subtotal,
		DiscountTotal:  totals.DiscountTotal,
		TaxAmount:      totals.TaxAmount,
		ShippingAmount: totals.ShippingAmount,
		FinalPrice:     totals.FinalPrice,
	}
}

func buildTaxBreakdown(tax domain.TaxResult) []taxLinePayload {
	lines := make([]taxLinePayload, 0, len(tax.Breakdown))
	for _, line := range tax.Breakdown {
		lines = append(lines, taxLinePayload{
			ID:     line.Rate.ID,
			Name:   line.Rate.Name,
			Rate:   line.Rate.Rate,
			Amount: line.Amount,
		})
	}
	return lines
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var rejected *services.DiscountRejectedError
	switch {
	case errors.As(err, &rejected):
		httpx.WriteError(ctx, w, httpx.NewError("discount_rejected", rejected.Reason, http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderTotalsInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("totals_invalid", "order totals failed validation", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_store_unavailable", "order store is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
