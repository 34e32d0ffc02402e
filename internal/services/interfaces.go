package services

import (
	"context"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
)

// DiscountService validates discount codes against a cart and computes the
// resulting price reduction. Rejections are reported as values, not errors;
// backend faults degrade to a generic rejection.
type DiscountService interface {
	// ValidateCode runs the full eligibility chain for a code and reports the
	// first failing check, or the matched discount when every check passes.
	ValidateCode(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountValidation
	// ApplyToOrder validates the code and, when accepted, computes the
	// discount amount and the remaining order amount.
	ApplyToOrder(ctx context.Context, code string, appctx domain.DiscountApplicationContext) domain.DiscountCalculation
}

// TaxCalculationContext carries the amounts and destination used to compute tax.
type TaxCalculationContext struct {
	Amount         float64
	ShippingAmount float64
	Location       domain.TaxLocation
}

// TaxService resolves jurisdiction tax rates and computes the tax owed on an
// order amount. Calculation degrades to a zero result when rates cannot be
// loaded.
type TaxService interface {
	ResolveRates(ctx context.Context, location domain.TaxLocation) ([]domain.TaxRate, error)
	CalculateTax(ctx context.Context, calc TaxCalculationContext) domain.TaxResult
}

// PlaceOrderCommand captures the checkout request for a cart.
type PlaceOrderCommand struct {
	UserID          string
	Items           []domain.OrderItem
	DiscountCode    *string
	ShippingAmount  float64
	ShippingTo      domain.TaxLocation
	PaymentMethod   string
	Currency        string
	IdempotencyKey  string
	OrderNumberHint string
}

// CartEstimate is the non-persisting preview of an order's totals.
type CartEstimate struct {
	Totals   domain.OrderTotals
	Discount domain.DiscountCalculation
	Tax      domain.TaxResult
}

// CheckoutService turns a cart into priced totals and, on PlaceOrder, into a
// persisted order with its discount redemption recorded.
type CheckoutService interface {
	EstimateCart(ctx context.Context, cmd PlaceOrderCommand) (CartEstimate, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	// AssembleTotals combines the priced components into validated order
	// totals. It fails rather than clamps when a component is out of range.
	AssembleTotals(subtotal float64, discount domain.DiscountCalculation, tax domain.TaxResult, shipping float64, currency string) (domain.OrderTotals, error)
}

// OrderListQuery narrows an order listing.
type OrderListQuery struct {
	UserID string
	Status *domain.OrderStatus
	Limit  int
}

// OrderService exposes read access to persisted orders with ownership checks.
type OrderService interface {
	GetOrder(ctx context.Context, orderID, requesterUID string, elevated bool) (domain.Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error)
}

// UpsertDiscountCommand carries the writable fields of a discount.
type UpsertDiscountCommand struct {
	ID                string
	Code              string
	Description       string
	Type              domain.DiscountType
	Value             float64
	MinOrderAmount    *float64
	MaxDiscountAmount *float64
	StartsAt          time.Time
	EndsAt            time.Time
	IsActive          bool
	UsageLimit        *int
	AppliesTo         domain.DiscountAppliesTo
	CreatedBy         string
}

// UpsertTaxRateCommand carries the writable fields of a tax rate.
type UpsertTaxRateCommand struct {
	ID                string
	Name              string
	Description       string
	Rate              float64
	Country           *string
	State             *string
	ZipCode           *string
	IsActive          bool
	AppliesToShipping bool
	Priority          int
}

// DiscountUsageQuery narrows a usage ledger listing.
type DiscountUsageQuery struct {
	DiscountID string
	UserID     string
	Limit      int
}

// AdminService manages the discount and tax rate catalogs.
type AdminService interface {
	CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (domain.Discount, error)
	UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (domain.Discount, error)
	DeactivateDiscount(ctx context.Context, id string) error
	GetDiscount(ctx context.Context, id string) (domain.Discount, error)
	ListDiscounts(ctx context.Context, isActive *bool, limit int) ([]domain.Discount, error)
	ListDiscountUsage(ctx context.Context, query DiscountUsageQuery) ([]domain.DiscountUsage, error)

	CreateTaxRate(ctx context.Context, cmd UpsertTaxRateCommand) (domain.TaxRate, error)
	UpdateTaxRate(ctx context.Context, cmd UpsertTaxRateCommand) (domain.TaxRate, error)
	DeleteTaxRate(ctx context.Context, id string) error
	GetTaxRate(ctx context.Context, id string) (domain.TaxRate, error)
	ListTaxRates(ctx context.Context, isActive *bool, limit int) ([]domain.TaxRate, error)
}

// OrderCreatedEvent is emitted after an order is persisted.
type OrderCreatedEvent struct {
	OrderID      string    `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	UserID       string    `json:"userId"`
	DiscountCode string    `json:"discountCode,omitempty"`
	FinalPrice   float64   `json:"finalPrice"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DiscountRedeemedEvent is emitted after a discount usage is recorded.
type DiscountRedeemedEvent struct {
	DiscountID     string    `json:"discountId"`
	Code           string    `json:"code"`
	UserID         string    `json:"userId"`
	OrderID        string    `json:"orderId"`
	DiscountAmount float64   `json:"discountAmount"`
	UsedAt         time.Time `json:"usedAt"`
}

// EventPublisher fans order lifecycle events out to interested consumers.
// Implementations return the broker-assigned message ID when one exists.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) (string, error)
	PublishDiscountRedeemed(ctx context.Context, event DiscountRedeemedEvent) (string, error)
}
