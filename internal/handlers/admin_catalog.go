package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/platform/auth"
	"github.com/lumencraft/storefront-api/internal/platform/httpx"
	"github.com/lumencraft/storefront-api/internal/platform/numeric"
	"github.com/lumencraft/storefront-api/internal/platform/pagination"
	"github.com/lumencraft/storefront-api/internal/services"
)

const maxAdminBodySize = 32 * 1024

// AdminCatalogHandlers manages discounts and tax rates for staff users.
type AdminCatalogHandlers struct {
	authn *auth.Authenticator
	admin services.AdminService
}

// NewAdminCatalogHandlers constructs the admin catalog endpoints.
func NewAdminCatalogHandlers(authn *auth.Authenticator, admin services.AdminService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{
		authn: authn,
		admin: admin,
	}
}

// Routes wires the /admin catalog endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}

	r.Route("/discounts", func(dr chi.Router) {
		dr.Post("/", h.createDiscount)
		dr.Get("/", h.listDiscounts)
		dr.Get("/{discountId}", h.getDiscount)
		dr.Put("/{discountId}", h.updateDiscount)
		dr.Delete("/{discountId}", h.deactivateDiscount)
		dr.Get("/{discountId}/usage", h.listDiscountUsage)
	})

	r.Route("/tax-rates", func(tr chi.Router) {
		tr.Post("/", h.createTaxRate)
		tr.Get("/", h.listTaxRates)
		tr.Get("/{taxRateId}", h.getTaxRate)
		tr.Put("/{taxRateId}", h.updateTaxRate)
		tr.Delete("/{taxRateId}", h.deleteTaxRate)
	})
}

type upsertDiscountRequest struct {
	Code              string   `json:"code"`
	Description       string   `json:"description"`
	Type              string   `json:"discountType"`
	Value             any      `json:"value"`
	MinOrderAmount    any      `json:"minOrderAmount"`
	MaxDiscountAmount any      `json:"maxDiscountAmount"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	IsActive          *bool    `json:"isActive"`
	UsageLimit        *int     `json:"usageLimit"`
	AllProducts       *bool    `json:"allProducts"`
	ProductIDs        []string `json:"productIds"`
	CategoryIDs       []string `json:"categoryIds"`
}

type adminDiscountPayload struct {
	ID                string   `json:"id"`
	Code              string   `json:"code"`
	Description       string   `json:"description,omitempty"`
	Type              string   `json:"discountType"`
	Value             float64  `json:"value"`
	MinOrderAmount    *float64 `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *float64 `json:"maxDiscountAmount,omitempty"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	IsActive          bool     `json:"isActive"`
	UsageLimit        *int     `json:"usageLimit,omitempty"`
	UsageCount        int      `json:"usageCount"`
	AllProducts       bool     `json:"allProducts"`
	ProductIDs        []string `json:"productIds,omitempty"`
	CategoryIDs       []string `json:"categoryIds,omitempty"`
	CreatedBy         string   `json:"createdBy,omitempty"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

func (h *AdminCatalogHandlers) createDiscount(w http.ResponseWriter, r *http.Request) {
	h.upsertDiscount(w, r, "")
}

func (h *AdminCatalogHandlers) updateDiscount(w http.ResponseWriter, r *http.Request) {
	h.upsertDiscount(w, r, chi.URLParam(r, "discountId"))
}

func (h *AdminCatalogHandlers) upsertDiscount(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req upsertDiscountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd, err := buildDiscountCommand(req)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	cmd.ID = id
	cmd.CreatedBy = identity.UID

	var discount domain.Discount
	if id == "" {
		discount, err = h.admin.CreateDiscount(ctx, cmd)
	} else {
		discount, err = h.admin.UpdateDiscount(ctx, cmd)
	}
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]any{"discount": buildAdminDiscountPayload(discount)})
}

func (h *AdminCatalogHandlers) getDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	discount, err := h.admin.GetDiscount(ctx, chi.URLParam(r, "discountId"))
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"discount": buildAdminDiscountPayload(discount)})
}

func (h *AdminCatalogHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	isActive, limit, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	discounts, err := h.admin.ListDiscounts(ctx, isActive, limit)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	payloads := make([]adminDiscountPayload, 0, len(discounts))
	for _, discount := range discounts {
		payloads = append(payloads, buildAdminDiscountPayload(discount))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"discounts": payloads})
}

func (h *AdminCatalogHandlers) deactivateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	if err := h.admin.DeactivateDiscount(ctx, chi.URLParam(r, "discountId")); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type usagePayload struct {
	ID             string  `json:"id"`
	DiscountID     string  `json:"discountId"`
	UserID         string  `json:"userId"`
	OrderID        string  `json:"orderId"`
	OrderTotal     float64 `json:"orderTotal"`
	DiscountAmount float64 `json:"discountAmount"`
	Status         string  `json:"usageStatus"`
	UsedAt         string  `json:"usedAt"`
}

func (h *AdminCatalogHandlers) listDiscountUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	_, limit, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	records, err := h.admin.ListDiscountUsage(ctx, services.DiscountUsageQuery{
		DiscountID: chi.URLParam(r, "discountId"),
		UserID:     strings.TrimSpace(r.URL.Query().Get("userId")),
		Limit:      limit,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	payloads := make([]usagePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, usagePayload{
			ID:             record.ID,
			DiscountID:     record.DiscountID,
			UserID:         record.UserID,
			OrderID:        record.OrderID,
			OrderTotal:     record.OrderTotal,
			DiscountAmount: record.DiscountAmount,
			Status:         string(record.Status),
			UsedAt:         record.UsedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"usage": payloads})
}

type upsertTaxRateRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Rate              any     `json:"rate"`
	Country           *string `json:"country"`
	State             *string `json:"state"`
	ZipCode           *string `json:"zipCode"`
	IsActive          *bool   `json:"isActive"`
	AppliesToShipping bool    `json:"appliesToShipping"`
	Priority          int     `json:"priority"`
}

type taxRatePayload struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	Rate              float64 `json:"rate"`
	Country           *string `json:"country,omitempty"`
	State             *string `json:"state,omitempty"`
	ZipCode           *string `json:"zipCode,omitempty"`
	IsActive          bool    `json:"isActive"`
	AppliesToShipping bool    `json:"appliesToShipping"`
	Priority          int     `json:"priority"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func (h *AdminCatalogHandlers) createTaxRate(w http.ResponseWriter, r *http.Request) {
	h.upsertTaxRate(w, r, "")
}

func (h *AdminCatalogHandlers) updateTaxRate(w http.ResponseWriter, r *http.Request) {
	h.upsertTaxRate(w, r, chi.URLParam(r, "taxRateId"))
}

func (h *AdminCatalogHandlers) upsertTaxRate(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req upsertTaxRateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	rate, ok := numeric.Coerce(req.Rate)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "rate must be numeric", http.StatusBadRequest))
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	cmd := services.UpsertTaxRateCommand{
		ID:                id,
		Name:              req.Name,
		Description:       req.Description,
		Rate:              rate,
		Country:           req.Country,
		State:             req.State,
		ZipCode:           req.ZipCode,
		IsActive:          isActive,
		AppliesToShipping: req.AppliesToShipping,
		Priority:          req.Priority,
	}

	var taxRate domain.TaxRate
	if id == "" {
		taxRate, err = h.admin.CreateTaxRate(ctx, cmd)
	} else {
		taxRate, err = h.admin.UpdateTaxRate(ctx, cmd)
	}
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]any{"taxRate": buildTaxRatePayload(taxRate)})
}

func (h *AdminCatalogHandlers) getTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	rate, err := h.admin.GetTaxRate(ctx, chi.URLParam(r, "taxRateId"))
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"taxRate": buildTaxRatePayload(rate)})
}

func (h *AdminCatalogHandlers) listTaxRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	isActive, limit, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	rates, err := h.admin.ListTaxRates(ctx, isActive, limit)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	payloads := make([]taxRatePayload, 0, len(rates))
	for _, rate := range rates {
		payloads = append(payloads, buildTaxRatePayload(rate))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"taxRates": payloads})
}

func (h *AdminCatalogHandlers) deleteTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeAdminUnavailable(ctx, w)
		return
	}
	if err := h.admin.DeleteTaxRate(ctx, chi.URLParam(r, "taxRateId")); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildDiscountCommand(req upsertDiscountRequest) (services.UpsertDiscountCommand, error) {
	value, ok := numeric.Coerce(req.Value)
	if !ok {
		return services.UpsertDiscountCommand{}, errors.New("value must be numeric")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return services.UpsertDiscountCommand{}, errors.New("startDate must be an RFC 3339 timestamp")
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return services.UpsertDiscountCommand{}, errors.New("endDate must be an RFC 3339 timestamp")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	allProducts := len(req.ProductIDs) == 0 && len(req.CategoryIDs) == 0
	if req.AllProducts != nil {
		allProducts = *req.AllProducts
	}

	cmd := services.UpsertDiscountCommand{
		Code:        req.Code,
		Description: req.Description,
		Type:        domain.DiscountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Value:       value,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		IsActive:    isActive,
		UsageLimit:  req.UsageLimit,
		AppliesTo: domain.DiscountAppliesTo{
			AllProducts: allProducts,
			ProductIDs:  req.ProductIDs,
			CategoryIDs: req.CategoryIDs,
		},
	}
	if amount, ok := numeric.Coerce(req.MinOrderAmount); ok {
		cmd.MinOrderAmount = &amount
	}
	if amount, ok := numeric.Coerce(req.MaxDiscountAmount); ok {
		cmd.MaxDiscountAmount = &amount
	}
	return cmd, nil
}

func buildAdminDiscountPayload(discount domain.Discount) adminDiscountPayload {
	return adminDiscountPayload{
		ID:                discount.ID,
		Code:              discount.Code,
		Description:       discount.Description,
		Type:              string(discount.Type),
		Value:             discount.Value,
		MinOrderAmount:    discount.MinOrderAmount,
		MaxDiscountAmount: discount.MaxDiscountAmount,
		StartDate:         discount.StartsAt.UTC().Format(time.RFC3339),
		EndDate:           discount.EndsAt.UTC().Format(time.RFC3339),
		IsActive:          discount.IsActive,
		UsageLimit:        discount.UsageLimit,
		UsageCount:        discount.UsageCount,
		AllProducts:       discount.AppliesTo.AllProducts,
		ProductIDs:        discount.AppliesTo.ProductIDs,
		CategoryIDs:       discount.AppliesTo.CategoryIDs,
		CreatedBy:         discount.CreatedBy,
		CreatedAt:         discount.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         discount.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func buildTaxRatePayload(rate domain.TaxRate) taxRatePayload {
	return taxRatePayload{
		ID:                rate.ID,
		Name:              rate.Name,
		Description:       rate.Description,
		Rate:              rate.Rate,
		Country:           rate.Country,
		State:             rate.State,
		ZipCode:           rate.ZipCode,
		IsActive:          rate.IsActive,
		AppliesToShipping: rate.AppliesToShipping,
		Priority:          rate.Priority,
		CreatedAt:         rate.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         rate.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseListQuery(r *http.Request) (*bool, int, error) {
	var isActive *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("isActive")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, 0, errors.New("isActive must be a boolean")
		}
		isActive = &parsed
	}
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		return nil, 0, err
	}
	return isActive, params.PageSize, nil
}

func writeAdminUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("admin_service_unavailable", "admin service is unavailable", http.StatusServiceUnavailable))
}

func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAdminInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTaxRateNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("tax_rate_not_found", "tax rate not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog store is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
