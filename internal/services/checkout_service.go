package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

// DefaultMaxMonetaryAmount bounds every assembled total. A component above
// this ceiling indicates corrupted pricing data, not a big order.
const DefaultMaxMonetaryAmount = 1_000_000

// DiscountRejectedError reports that the checkout carried a discount code the
// engine refused. The reason is safe to show to the shopper.
type DiscountRejectedError struct {
	Code   string
	Reason string
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("services: discount code %q rejected: %s", e.Code, e.Reason)
}

// CheckoutServiceDeps bundles dependencies required to construct a CheckoutService implementation.
type CheckoutServiceDeps struct {
	Orders repositories.OrderRepository
	// Ledger records redemptions; it is the same repository that backs the
	// discount service.
	Ledger    repositories.DiscountRepository
	Discounts DiscountService
	Tax       TaxService
	Publisher EventPublisher
	Clock     func() time.Time
	// MaxAmount overrides the monetary sanity ceiling; zero keeps the default.
	MaxAmount       float64
	DefaultCurrency string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders    repositories.OrderRepository
	ledger    repositories.DiscountRepository
	discounts DiscountService
	tax       TaxService
	publisher EventPublisher
	clock     func() time.Time
	maxAmount float64
	currency  string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService wires a CheckoutService from its collaborating services.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	if deps.Ledger == nil {
		return nil, ErrDiscountRepositoryMissing
	}
	if deps.Discounts == nil {
		return nil, ErrDiscountServiceMissing
	}
	if deps.Tax == nil {
		return nil, ErrTaxServiceMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	maxAmount := deps.MaxAmount
	if maxAmount <= 0 {
		maxAmount = DefaultMaxMonetaryAmount
	}
	currency := strings.TrimSpace(deps.DefaultCurrency)
	if currency == "" {
		currency = "USD"
	}
	return &checkoutService{
		orders:    deps.Orders,
		ledger:    deps.Ledger,
		discounts: deps.Discounts,
		tax:       deps.Tax,
		publisher: deps.Publisher,
		clock:     func() time.Time { return clock().UTC() },
		maxAmount: maxAmount,
		currency:  currency,
		logger:    logger,
	}, nil
}

func (s *checkoutService) EstimateCart(ctx context.Context, cmd PlaceOrderCommand) (CartEstimate, error) {
	priced, err := s.price(ctx, cmd)
	if err != nil {
		return CartEstimate{}, err
	}
	return CartEstimate{Totals: priced.totals, Discount: priced.discount, Tax: priced.tax}, nil
}

func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	priced, err := s.price(ctx, cmd)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock()
	orderID := ulid.Make().String()
	orderNumber := strings.TrimSpace(cmd.OrderNumberHint)
	if orderNumber == "" {
		orderNumber = "ORD-" + orderID
	}

	order := domain.Order{
		ID:              orderID,
		OrderNumber:     orderNumber,
		UserID:          cmd.UserID,
		Status:          domain.OrderStatusPlaced,
		Items:           priced.items,
		Totals:          priced.totals,
		ShippingCountry: cmd.ShippingTo.Country,
		ShippingState:   cmd.ShippingTo.State,
		ShippingZip:     cmd.ShippingTo.ZipCode,
		PaymentMethod:   cmd.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if priced.discount.IsValid && cmd.DiscountCode != nil {
		code := strings.TrimSpace(*cmd.DiscountCode)
		order.DiscountCode = &code
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsUnavailable() {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	// The redemption runs only after the order is durable. A lost race on the
	// last usage slot voids the discount but keeps the order.
	if priced.discount.IsValid && priced.discount.Discount != nil {
		s.redeem(ctx, created, priced.discount, now)
	}

	s.publishOrderCreated(ctx, created)
	return created, nil
}

func (s *checkoutService) AssembleTotals(subtotal float64, discount domain.DiscountCalculation, tax domain.TaxResult, shipping float64, currency string) (domain.OrderTotals, error) {
	discountTotal := 0.0
	if discount.IsValid {
		discountTotal = discount.DiscountAmount
	}
	discounted := subtotal - discountTotal
	if discounted < 0 {
		discounted = 0
	}
	totals := domain.OrderTotals{
		Currency:       currency,
		Subtotal:       subtotal,
		DiscountTotal:  discountTotal,
		TaxAmount:      tax.TaxAmount,
		ShippingAmount: shipping,
		FinalPrice:     discounted + tax.TaxAmount + shipping,
	}
	checks := []struct {
		field string
		value float64
	}{
		{"subtotal", totals.Subtotal},
		{"discountTotal", totals.DiscountTotal},
		{"taxAmount", totals.TaxAmount},
		{"shippingAmount", totals.ShippingAmount},
		{"finalPrice", totals.FinalPrice},
	}
	for _, check := range checks {
		if check.value < 0 {
			return domain.OrderTotals{}, fmt.Errorf("%w: %s is negative", ErrOrderTotalsInvalid, check.field)
		}
		if check.value > s.maxAmount {
			return domain.OrderTotals{}, fmt.Errorf("%w: %s exceeds %.0f ceiling", ErrOrderTotalsInvalid, check.field, s.maxAmount)
		}
	}
	return totals, nil
}

type pricedCart struct {
	items    []domain.OrderItem
	totals   domain.OrderTotals
	discount domain.DiscountCalculation
	tax      domain.TaxResult
}

func (s *checkoutService) price(ctx context.Context, cmd PlaceOrderCommand) (pricedCart, error) {
	if len(cmd.Items) == 0 {
		return pricedCart{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if cmd.ShippingAmount < 0 {
		return pricedCart{}, fmt.Errorf("%w: shipping amount is negative", ErrOrderInvalidInput)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	subtotal := 0.0
	productIDs := make([]string, 0, len(cmd.Items))
	categoryIDs := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return pricedCart{}, fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return pricedCart{}, fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
		if item.UnitPrice < 0 {
			return pricedCart{}, fmt.Errorf("%w: item unit price is negative", ErrOrderInvalidInput)
		}
		items = append(items, item)
		subtotal += item.LineTotal()
		productIDs = append(productIDs, item.ProductID)
		if item.CategoryID != "" {
			categoryIDs = append(categoryIDs, item.CategoryID)
		}
	}

	discount := domain.DiscountCalculation{FinalAmount: subtotal}
	if cmd.DiscountCode != nil && strings.TrimSpace(*cmd.DiscountCode) != "" {
		code := strings.TrimSpace(*cmd.DiscountCode)
		discount = s.discounts.ApplyToOrder(ctx, code, domain.DiscountApplicationContext{
			UserID:      cmd.UserID,
			Subtotal:    subtotal,
			Items:       items,
			ProductIDs:  productIDs,
			CategoryIDs: categoryIDs,
		})
		if !discount.IsValid {
			return pricedCart{}, &DiscountRejectedError{Code: code, Reason: discount.Reason}
		}
	}

	tax := s.tax.CalculateTax(ctx, TaxCalculationContext{
		Amount:         discount.FinalAmount,
		ShippingAmount: cmd.ShippingAmount,
		Location:       cmd.ShippingTo,
	})

	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		currency = s.currency
	}
	totals, err := s.AssembleTotals(subtotal, discount, tax, cmd.ShippingAmount, currency)
	if err != nil {
		return pricedCart{}, err
	}
	return pricedCart{items: items, totals: totals, discount: discount, tax: tax}, nil
}

func (s *checkoutService) redeem(ctx context.Context, order domain.Order, discount domain.DiscountCalculation, now time.Time) {
	cmd := repositories.RedeemUsageCommand{
		DiscountID:     discount.Discount.ID,
		UserID:         order.UserID,
		OrderID:        order.ID,
		OrderTotal:     order.Totals.FinalPrice,
		DiscountAmount: discount.DiscountAmount,
		Now:            now,
	}
	usage, err := s.ledger.RedeemUsage(ctx, cmd)
	if err != nil {
		s.logger(ctx, "checkout.redeem_failed", map[string]any{
			"orderId":    order.ID,
			"discountId": discount.Discount.ID,
			"error":      err.Error(),
		})
		return
	}

	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishDiscountRedeemed(ctx, DiscountRedeemedEvent{
		DiscountID:     usage.DiscountID,
		Code:           discount.Discount.Code,
		UserID:         usage.UserID,
		OrderID:        usage.OrderID,
		DiscountAmount: usage.DiscountAmount,
		UsedAt:         usage.UsedAt,
	}); err != nil {
		s.logger(ctx, "checkout.publish_redeemed_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) publishOrderCreated(ctx context.Context, order domain.Order) {
	if s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		FinalPrice:  order.Totals.FinalPrice,
		Currency:    order.Totals.Currency,
		CreatedAt:   order.CreatedAt,
	}
	if order.DiscountCode != nil {
		event.DiscountCode = *order.DiscountCode
	}
	if _, err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger(ctx, "checkout.publish_created_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}
