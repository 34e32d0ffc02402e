package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

// Rejection reasons surfaced to the checkout UI. These are part of the API
// contract and must stay stable.
const (
	ReasonCodeNotFound     = "code not found"
	ReasonNotActive        = "not active"
	ReasonNotYetActive     = "not yet active"
	ReasonExpired          = "expired"
	ReasonUsageLimitHit    = "usage limit reached"
	ReasonNotApplicable    = "does not apply to items in cart"
	ReasonValidationFailed = "failed to validate"
)

// DiscountServiceDeps bundles dependencies required to construct a DiscountService implementation.
type DiscountServiceDeps struct {
	Discounts repositories.DiscountRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type discountService struct {
	repo   repositories.DiscountRepository
	clock  func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewDiscountService wires a DiscountService backed by the provided repository.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Discounts == nil {
		return nil, ErrDiscountRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &discountService{
		repo:   deps.Discounts,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

func (s *discountService) ValidateCode(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountValidation {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return reject(ReasonCodeNotFound)
	}

	discount, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return reject(ReasonCodeNotFound)
		}
		s.logger(ctx, "discount.lookup_failed", map[string]any{
			"code":  code,
			"error": err.Error(),
		})
		return reject(ReasonValidationFailed)
	}

	if !discount.IsActive {
		return reject(ReasonNotActive)
	}

	now := s.clock()
	if now.Before(discount.StartsAt) {
		return reject(ReasonNotYetActive)
	}
	if now.After(discount.EndsAt) {
		return reject(ReasonExpired)
	}

	if discount.UsageLimit != nil && discount.UsageCount >= *discount.UsageLimit {
		return reject(ReasonUsageLimitHit)
	}

	if discount.MinOrderAmount != nil && appctx.Subtotal < *discount.MinOrderAmount {
		return reject(fmt.Sprintf("minimum order amount of %.2f not met", *discount.MinOrderAmount))
	}

	if !discount.AppliesTo.Matches(appctx.ProductIDs, appctx.CategoryIDs) {
		return reject(ReasonNotApplicable)
	}

	return domain.DiscountValidation{Accepted: true, Discount: &discount}
}

func (s *discountService) ApplyToOrder(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountCalculation {
	validation := s.ValidateCode(ctx, code, appctx)
	if !validation.Accepted {
		return domain.DiscountCalculation{
			IsValid:     false,
			Reason:      validation.Reason,
			FinalAmount: appctx.Subtotal,
		}
	}
	return CalculateDiscount(*validation.Discount, appctx.Subtotal)
}

// CalculateDiscount computes the reduction a discount grants on a subtotal.
// The discount is assumed to have passed validation already.
func CalculateDiscount(discount domain.Discount, subtotal float64) domain.DiscountCalculation {
	var amount float64
	switch discount.Type {
	case domain.DiscountTypePercentage:
		amount = subtotal * discount.Value / 100
		if discount.MaxDiscountAmount != nil && amount > *discount.MaxDiscountAmount {
			amount = *discount.MaxDiscountAmount
		}
	case domain.DiscountTypeFixed:
		amount = discount.Value
		if amount > subtotal {
			amount = subtotal
		}
	}
	if amount < 0 {
		amount = 0
	}

	final := subtotal - amount
	if final < 0 {
		final = 0
	}
	return domain.DiscountCalculation{
		IsValid:        true,
		Discount:       &discount,
		DiscountAmount: amount,
		FinalAmount:    final,
	}
}

func reject(reason string) domain.DiscountValidation {
	return domain.DiscountValidation{Accepted: false, Reason: reason}
}
