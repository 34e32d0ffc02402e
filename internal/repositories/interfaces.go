package repositories

import (
	"context"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// DiscountListFilter narrows admin discount listings.
type DiscountListFilter struct {
	IsActive *bool
	Limit    int
}

// RedeemUsageCommand captures one discount redemption to be recorded atomically.
type RedeemUsageCommand struct {
	DiscountID     string
	UserID         string
	OrderID        string
	OrderTotal     float64
	DiscountAmount float64
	Now            time.Time
}

// DiscountRepository persists promotional codes and their redemption ledger.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	Update(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	// Deactivate soft-deletes a discount; records referencing it stay intact.
	Deactivate(ctx context.Context, discountID string, now time.Time) error
	FindByID(ctx context.Context, discountID string) (domain.Discount, error)
	FindByCode(ctx context.Context, code string) (domain.Discount, error)
	List(ctx context.Context, filter DiscountListFilter) ([]domain.Discount, error)
	// RedeemUsage appends the usage record and advances usageCount in a single
	// atomic operation, re-checking the usage limit inside the transaction.
	RedeemUsage(ctx context.Context, cmd RedeemUsageCommand) (domain.DiscountUsage, error)
}

// DiscountUsageFilter narrows redemption ledger queries.
type DiscountUsageFilter struct {
	DiscountID string
	UserID     string
	Limit      int
}

// DiscountUsageRepository reads the append-only redemption ledger for audits.
// Writes happen exclusively through DiscountRepository.RedeemUsage.
type DiscountUsageRepository interface {
	List(ctx context.Context, filter DiscountUsageFilter) ([]domain.DiscountUsage, error)
}

// TaxRateListFilter narrows admin tax rate listings.
type TaxRateListFilter struct {
	IsActive *bool
	Country  *string
	Limit    int
}

// TaxRateRepository persists location-scoped tax rules.
type TaxRateRepository interface {
	Insert(ctx context.Context, rate domain.TaxRate) (domain.TaxRate, error)
	Update(ctx context.Context, rate domain.TaxRate) (domain.TaxRate, error)
	Delete(ctx context.Context, rateID string) error
	FindByID(ctx context.Context, rateID string) (domain.TaxRate, error)
	// ListActive returns all active rates ordered by creation time. Location
	// matching happens in the tax service since wildcard fields cannot be
	// expressed as a single document-store query.
	ListActive(ctx context.Context) ([]domain.TaxRate, error)
	List(ctx context.Context, filter TaxRateListFilter) ([]domain.TaxRate, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID string
	Status *domain.OrderStatus
	Limit  int
}

// OrderRepository persists order headers produced by checkout.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	GetByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, now time.Time) (domain.Order, error)
}
