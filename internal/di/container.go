package di

import (
	"context"
	"fmt"
	"time"

	"github.com/lumencraft/storefront-api/internal/platform/config"
	pfirestore "github.com/lumencraft/storefront-api/internal/platform/firestore"
	firestoreRepo "github.com/lumencraft/storefront-api/internal/repositories/firestore"
	"github.com/lumencraft/storefront-api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Discounts services.DiscountService
	Tax       services.TaxService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Admin     services.AdminService
}

// Container wires repositories and services over a shared Firestore provider.
type Container struct {
	Config    config.Config
	Firestore *pfirestore.Provider
	Services  Services
}

type containerOptions struct {
	publisher services.EventPublisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// Option customises container construction.
type Option func(*containerOptions)

// WithEventPublisher injects the checkout event publisher. A nil publisher
// disables event publication without failing checkout.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// WithClock overrides the time source used by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithServiceLogger injects the structured event logger passed to services.
func WithServiceLogger(logger func(ctx context.Context, event string, fields map[string]any)) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// NewContainer builds the Firestore-backed repositories and the pricing,
// checkout, order, and admin services on top of them.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	provider := pfirestore.NewProvider(cfg.Firestore)

	discountRepo, err := firestoreRepo.NewDiscountRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build discount repository: %w", err)
	}
	usageRepo, err := firestoreRepo.NewDiscountUsageRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build discount usage repository: %w", err)
	}
	taxRateRepo, err := firestoreRepo.NewTaxRateRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build tax rate repository: %w", err)
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}

	discountSvc, err := services.NewDiscountService(services.DiscountServiceDeps{
		Discounts: discountRepo,
		Clock:     options.clock,
		Logger:    options.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build discount service: %w", err)
	}
	taxSvc, err := services.NewTaxService(services.TaxServiceDeps{
		TaxRates: taxRateRepo,
		Logger:   options.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build tax service: %w", err)
	}
	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:          orderRepo,
		Ledger:          discountRepo,
		Discounts:       discountSvc,
		Tax:             taxSvc,
		Publisher:       options.publisher,
		Clock:           options.clock,
		MaxAmount:       cfg.Pricing.MaxMonetaryAmount,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
		Logger:          options.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build checkout service: %w", err)
	}
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: orderRepo,
		Clock:  options.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}
	adminSvc, err := services.NewAdminService(services.AdminServiceDeps{
		Discounts: discountRepo,
		Usage:     usageRepo,
		TaxRates:  taxRateRepo,
		Clock:     options.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build admin service: %w", err)
	}

	return &Container{
		Config:    cfg,
		Firestore: provider,
		Services: Services{
			Discounts: discountSvc,
			Tax:       taxSvc,
			Checkout:  checkoutSvc,
			Orders:    orderSvc,
			Admin:     adminSvc,
		},
	}, nil
}

// Close releases the shared Firestore client.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close(ctx)
}
