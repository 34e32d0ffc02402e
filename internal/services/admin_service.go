package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

// AdminServiceDeps bundles dependencies required to construct an AdminService implementation.
type AdminServiceDeps struct {
	Discounts repositories.DiscountRepository
	Usage     repositories.DiscountUsageRepository
	TaxRates  repositories.TaxRateRepository
	Clock     func() time.Time
}

type adminService struct {
	discounts repositories.DiscountRepository
	usage     repositories.DiscountUsageRepository
	taxRates  repositories.TaxRateRepository
	clock     func() time.Time
	sanitizer *bluemonday.Policy
}

// NewAdminService wires an AdminService over the discount and tax rate catalogs.
func NewAdminService(deps AdminServiceDeps) (AdminService, error) {
	if deps.Discounts == nil {
		return nil, ErrDiscountRepositoryMissing
	}
	if deps.TaxRates == nil {
		return nil, ErrTaxRateRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &adminService{
		discounts: deps.Discounts,
		usage:     deps.Usage,
		taxRates:  deps.TaxRates,
		clock:     func() time.Time { return clock().UTC() },
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *adminService) CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (domain.Discount, error) {
	discount, err := s.discountFromCommand(cmd)
	if err != nil {
		return domain.Discount{}, err
	}

	now := s.clock()
	discount.CreatedAt = now
	discount.UpdatedAt = now
	discount.UsageCount = 0

	created, err := s.discounts.Insert(ctx, discount)
	if err != nil {
		return domain.Discount{}, classifyCatalogError(err, ErrDiscountNotFound)
	}
	return created, nil
}

func (s *adminService) UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (domain.Discount, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return domain.Discount{}, fmt.Errorf("%w: discount id is required", ErrAdminInvalidInput)
	}
	existing, err := s.discounts.FindByID(ctx, cmd.ID)
	if err != nil {
		return domain.Discount{}, classifyCatalogError(err, ErrDiscountNotFound)
	}

	discount, err := s.discountFromCommand(cmd)
	if err != nil {
		return domain.Discount{}, err
	}
	discount.ID = existing.ID
	discount.UsageCount = existing.UsageCount
	discount.CreatedBy = existing.CreatedBy
	discount.CreatedAt = existing.CreatedAt
	discount.UpdatedAt = s.clock()

	updated, err := s.discounts.Update(ctx, discount)
	if err != nil {
		return domain.Discount{}, classifyCatalogError(err, ErrDiscountNotFound)
	}
	return updated, nil
}

func (s *adminService) DeactivateDiscount(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: discount id is required", ErrAdminInvalidInput)
	}
	if err := s.discounts.Deactivate(ctx, id, s.clock()); err != nil {
		return classifyCatalogError(err, ErrDiscountNotFound)
	}
	return nil
}

func (s *adminService) GetDiscount(ctx context.Context, id string) (domain.Discount, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Discount{}, fmt.Errorf("%w: discount id is required", ErrAdminInvalidInput)
	}
	discount, err := s.discounts.FindByID(ctx, id)
	if err != nil {
		return domain.Discount{}, classifyCatalogError(err, ErrDiscountNotFound)
	}
	return discount, nil
}

func (s *adminService) ListDiscounts(ctx context.Context, isActive *bool, limit int) ([]domain.Discount, error) {
	discounts, err := s.discounts.List(ctx, repositories.DiscountListFilter{IsActive: isActive, Limit: limit})
	if err != nil {
		return nil, classifyCatalogError(err, ErrDiscountNotFound)
	}
	return discounts, nil
}

func (s *adminService) ListDiscountUsage(ctx context.Context, query DiscountUsageQuery) ([]domain.DiscountUsage, error) {
	if s.usage == nil {
		return nil, ErrDiscountRepositoryMissing
	}
	usage, err := s.usage.List(ctx, repositories.DiscountUsageFilter{
		DiscountID: query.DiscountID,
		UserID:     query.UserID,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, classifyCatalogError(err, ErrDiscountNotFound)
	}
	return usage, nil
}

func (s *adminService) CreateTaxRate(ctx context.Context, cmd UpsertTaxRateCommand) (domain.TaxRate, error) {
	rate, err := s.taxRateFromCommand(cmd)
	if err != nil {
		return domain.TaxRate{}, err
	}

	now := s.clock()
	rate.CreatedAt = now
	rate.UpdatedAt = now

	created, err := s.taxRates.Insert(ctx, rate)
	if err != nil {
		return domain.TaxRate{}, classifyCatalogError(err, ErrTaxRateNotFound)
	}
	return created, nil
}

func (s *adminService) UpdateTaxRate(ctx context.Context, cmd UpsertTaxRateCommand) (domain.TaxRate, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return domain.TaxRate{}, fmt.Errorf("%w: tax rate id is required", ErrAdminInvalidInput)
	}
	existing, err := s.taxRates.FindByID(ctx, cmd.ID)
	if err != nil {
		return domain.TaxRate{}, classifyCatalogError(err, ErrTaxRateNotFound)
	}

	rate, err := s.taxRateFromCommand(cmd)
	if err != nil {
		return domain.TaxRate{}, err
	}
	rate.ID = existing.ID
	rate.CreatedAt = existing.CreatedAt
	rate.UpdatedAt = s.clock()

	updated, err := s.taxRates.Update(ctx, rate)
	if err != nil {
		return domain.TaxRate{}, classifyCatalogError(err, ErrTaxRateNotFound)
	}
	return updated, nil
}

func (s *adminService) DeleteTaxRate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: tax rate id is required", ErrAdminInvalidInput)
	}
	if err := s.taxRates.Delete(ctx, id); err != nil {
		return classifyCatalogError(err, ErrTaxRateNotFound)
	}
	return nil
}

func (s *adminService) GetTaxRate(ctx context.Context, id string) (domain.TaxRate, error) {
	if strings.TrimSpace(id) == "" {
		return domain.TaxRate{}, fmt.Errorf("%w: tax rate id is required", ErrAdminInvalidInput)
	}
	rate, err := s.taxRates.FindByID(ctx, id)
	if err != nil {
		return domain.TaxRate{}, classifyCatalogError(err, ErrTaxRateNotFound)
	}
	return rate, nil
}

func (s *adminService) ListTaxRates(ctx context.Context, isActive *bool, limit int) ([]domain.TaxRate, error) {
	rates, err := s.taxRates.List(ctx, repositories.TaxRateListFilter{IsActive: isActive, Limit: limit})
	if err != nil {
		return nil, classifyCatalogError(err, ErrTaxRateNotFound)
	}
	return rates, nil
}

func (s *adminService) discountFromCommand(cmd UpsertDiscountCommand) (domain.Discount, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return domain.Discount{}, fmt.Errorf("%w: code is required", ErrAdminInvalidInput)
	}
	if strings.ContainsAny(code, " \t") {
		return domain.Discount{}, fmt.Errorf("%w: code must not contain whitespace", ErrAdminInvalidInput)
	}

	switch cmd.Type {
	case domain.DiscountTypePercentage:
		if cmd.Value <= 0 || cmd.Value > 100 {
			return domain.Discount{}, fmt.Errorf("%w: percentage value must be in (0, 100]", ErrAdminInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if cmd.Value <= 0 {
			return domain.Discount{}, fmt.Errorf("%w: fixed value must be positive", ErrAdminInvalidInput)
		}
	default:
		return domain.Discount{}, fmt.Errorf("%w: unknown discount type %q", ErrAdminInvalidInput, cmd.Type)
	}

	if cmd.StartsAt.IsZero() || cmd.EndsAt.IsZero() {
		return domain.Discount{}, fmt.Errorf("%w: start and end dates are required", ErrAdminInvalidInput)
	}
	if !cmd.EndsAt.After(cmd.StartsAt) {
		return domain.Discount{}, fmt.Errorf("%w: end date must be after start date", ErrAdminInvalidInput)
	}
	if cmd.UsageLimit != nil && *cmd.UsageLimit <= 0 {
		return domain.Discount{}, fmt.Errorf("%w: usage limit must be positive", ErrAdminInvalidInput)
	}
	if cmd.MinOrderAmount != nil && *cmd.MinOrderAmount < 0 {
		return domain.Discount{}, fmt.Errorf("%w: minimum order amount must not be negative", ErrAdminInvalidInput)
	}
	if cmd.MaxDiscountAmount != nil && *cmd.MaxDiscountAmount <= 0 {
		return domain.Discount{}, fmt.Errorf("%w: maximum discount amount must be positive", ErrAdminInvalidInput)
	}

	return domain.Discount{
		ID:                strings.TrimSpace(cmd.ID),
		Code:              code,
		Description:       s.sanitize(cmd.Description),
		Type:              cmd.Type,
		Value:             cmd.Value,
		MinOrderAmount:    cmd.MinOrderAmount,
		MaxDiscountAmount: cmd.MaxDiscountAmount,
		StartsAt:          cmd.StartsAt.UTC(),
		EndsAt:            cmd.EndsAt.UTC(),
		IsActive:          cmd.IsActive,
		UsageLimit:        cmd.UsageLimit,
		AppliesTo:         cmd.AppliesTo,
		CreatedBy:         strings.TrimSpace(cmd.CreatedBy),
	}, nil
}

func (s *adminService) taxRateFromCommand(cmd UpsertTaxRateCommand) (domain.TaxRate, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.TaxRate{}, fmt.Errorf("%w: name is required", ErrAdminInvalidInput)
	}
	if cmd.Rate < 0 || cmd.Rate > 100 {
		return domain.TaxRate{}, fmt.Errorf("%w: rate must be in [0, 100]", ErrAdminInvalidInput)
	}

	return domain.TaxRate{
		ID:                strings.TrimSpace(cmd.ID),
		Name:              name,
		Description:       s.sanitize(cmd.Description),
		Rate:              cmd.Rate,
		Country:           normalizeLocationField(cmd.Country),
		State:             normalizeLocationField(cmd.State),
		ZipCode:           normalizeLocationField(cmd.ZipCode),
		IsActive:          cmd.IsActive,
		AppliesToShipping: cmd.AppliesToShipping,
		Priority:          cmd.Priority,
	}, nil
}

func (s *adminService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

// normalizeLocationField maps blank strings to nil so they match any location.
func normalizeLocationField(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func classifyCatalogError(err error, notFound error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return err
}
