package services

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

// TaxServiceDeps bundles dependencies required to construct a TaxService implementation.
type TaxServiceDeps struct {
	TaxRates repositories.TaxRateRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type taxService struct {
	repo   repositories.TaxRateRepository
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewTaxService wires a TaxService backed by the provided repository.
func NewTaxService(deps TaxServiceDeps) (TaxService, error) {
	if deps.TaxRates == nil {
		return nil, ErrTaxRateRepositoryMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &taxService{repo: deps.TaxRates, logger: logger}, nil
}

// ResolveRates returns the active rates matching the location, highest
// priority first. Rates with equal priority keep their creation order.
func (s *taxService) ResolveRates(ctx context.Context, location domain.TaxLocation) ([]domain.TaxRate, error) {
	rates, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tax rates: %w", err)
	}

	matched := make([]domain.TaxRate, 0, len(rates))
	for _, rate := range rates {
		if rate.MatchesLocation(location) {
			matched = append(matched, rate)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched, nil
}

// CalculateTax computes the tax owed for the calculation context. A resolver
// failure yields a zeroed result so checkout can decide how to proceed.
func (s *taxService) CalculateTax(ctx context.Context, calc TaxCalculationContext) domain.TaxResult {
	rates, err := s.ResolveRates(ctx, calc.Location)
	if err != nil {
		s.logger(ctx, "tax.resolve_failed", map[string]any{
			"country": calc.Location.Country,
			"state":   calc.Location.State,
			"zipCode": calc.Location.ZipCode,
			"error":   err.Error(),
		})
		return domain.TaxResult{}
	}

	result := domain.TaxResult{
		ApplicableTaxes: rates,
		Breakdown:       make([]domain.TaxLine, 0, len(rates)),
	}
	for _, rate := range rates {
		base := calc.Amount
		if rate.AppliesToShipping {
			base += calc.ShippingAmount
		}
		amount := base * rate.Rate / 100
		result.TaxAmount += amount
		result.TotalRate += rate.Rate
		result.Breakdown = append(result.Breakdown, domain.TaxLine{Rate: rate, Amount: amount})
	}
	return result
}
