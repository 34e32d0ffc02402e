package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

type stubOrderRepository struct {
	mu        sync.Mutex
	created   []domain.Order
	createErr error
}

func (r *stubOrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return domain.Order{}, r.createErr
	}
	r.created = append(r.created, order)
	return order, nil
}

func (r *stubOrderRepository) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.created {
		if order.ID == orderID {
			return order, nil
		}
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (r *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.created {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *stubOrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, now time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, order := range r.created {
		if order.ID == orderID {
			r.created[i].PaymentStatus = status
			r.created[i].UpdatedAt = now
			return r.created[i], nil
		}
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (r *stubOrderRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

// limitedLedger enforces the usage ceiling under a lock the way the real
// transactional repository does.
type limitedLedger struct {
	mu        sync.Mutex
	limit     int
	count     int
	completed []domain.DiscountUsage
}

func (l *limitedLedger) Insert(ctx context.Context, d domain.Discount) (domain.Discount, error) {
	return d, nil
}

func (l *limitedLedger) Update(ctx context.Context, d domain.Discount) (domain.Discount, error) {
	return d, nil
}

func (l *limitedLedger) Deactivate(context.Context, string, time.Time) error { return nil }

func (l *limitedLedger) FindByID(context.Context, string) (domain.Discount, error) {
	return domain.Discount{}, &stubRepoError{notFound: true}
}

func (l *limitedLedger) FindByCode(context.Context, string) (domain.Discount, error) {
	return domain.Discount{}, &stubRepoError{notFound: true}
}

func (l *limitedLedger) List(context.Context, repositories.DiscountListFilter) ([]domain.Discount, error) {
	return nil, nil
}

func (l *limitedLedger) RedeemUsage(ctx context.Context, cmd repositories.RedeemUsageCommand) (domain.DiscountUsage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count >= l.limit {
		return domain.DiscountUsage{}, ErrDiscountUsageExhausted
	}
	l.count++
	usage := domain.DiscountUsage{
		ID:             cmd.OrderID + "-usage",
		DiscountID:     cmd.DiscountID,
		UserID:         cmd.UserID,
		OrderID:        cmd.OrderID,
		OrderTotal:     cmd.OrderTotal,
		DiscountAmount: cmd.DiscountAmount,
		Status:         domain.UsageStatusCompleted,
		UsedAt:         cmd.Now,
	}
	l.completed = append(l.completed, usage)
	return usage, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	created  []OrderCreatedEvent
	redeemed []DiscountRedeemedEvent
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return "msg-1", nil
}

func (p *recordingPublisher) PublishDiscountRedeemed(ctx context.Context, event DiscountRedeemedEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, event)
	return "msg-2", nil
}

type checkoutFixture struct {
	orders    *stubOrderRepository
	ledger    repositories.DiscountRepository
	publisher *recordingPublisher
	svc       CheckoutService
}

func newCheckoutFixture(t *testing.T, now time.Time, discountRepo repositories.DiscountRepository, taxRepo *stubTaxRateRepository, ledger repositories.DiscountRepository) checkoutFixture {
	t.Helper()
	clock := func() time.Time { return now }

	discounts, err := NewDiscountService(DiscountServiceDeps{Discounts: discountRepo, Clock: clock})
	if err != nil {
		t.Fatalf("NewDiscountService: %v", err)
	}
	tax, err := NewTaxService(TaxServiceDeps{TaxRates: taxRepo})
	if err != nil {
		t.Fatalf("NewTaxService: %v", err)
	}

	orders := &stubOrderRepository{}
	publisher := &recordingPublisher{}
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:    orders,
		Ledger:    ledger,
		Discounts: discounts,
		Tax:       tax,
		Publisher: publisher,
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return checkoutFixture{orders: orders, ledger: ledger, publisher: publisher, svc: svc}
}

func cartItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: "prod-1", CategoryID: "cat-1", Name: "Widget", Quantity: 2, UnitPrice: 40},
		{ProductID: "prod-2", Name: "Gadget", Quantity: 1, UnitPrice: 20},
	}
}

func TestCheckoutService_PlaceOrder_WithDiscountAndTax(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	taxRepo := &stubTaxRateRepository{rates: []domain.TaxRate{
		{ID: "tax-1", Rate: 10, Priority: 1, IsActive: true},
	}}
	ledger := &limitedLedger{limit: 10}
	fix := newCheckoutFixture(t, now, discountRepo, taxRepo, ledger)

	code := "SAVE10"
	order, err := fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:         "user-1",
		Items:          cartItems(),
		DiscountCode:   &code,
		ShippingAmount: 10,
		ShippingTo:     domain.TaxLocation{Country: "US"},
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// Subtotal 100, percentage clamped to 5, tax 10% of the discounted 95.
	if order.Totals.Subtotal != 100 {
		t.Fatalf("expected subtotal 100 got %v", order.Totals.Subtotal)
	}
	if order.Totals.DiscountTotal != 5 {
		t.Fatalf("expected discount 5 got %v", order.Totals.DiscountTotal)
	}
	if math.Abs(order.Totals.TaxAmount-9.5) > 1e-9 {
		t.Fatalf("expected tax on discounted amount (9.5) got %v", order.Totals.TaxAmount)
	}
	if math.Abs(order.Totals.FinalPrice-114.5) > 1e-9 {
		t.Fatalf("expected final price 114.5 got %v", order.Totals.FinalPrice)
	}
	if order.DiscountCode == nil || *order.DiscountCode != "SAVE10" {
		t.Fatalf("expected discount code on order, got %v", order.DiscountCode)
	}
	if order.Status != domain.OrderStatusPlaced || order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("unexpected initial statuses %s/%s", order.Status, order.PaymentStatus)
	}

	if fix.orders.count() != 1 {
		t.Fatalf("expected one persisted order got %d", fix.orders.count())
	}
	if len(ledger.completed) != 1 {
		t.Fatalf("expected one usage record got %d", len(ledger.completed))
	}
	usage := ledger.completed[0]
	if usage.OrderID != order.ID || usage.DiscountAmount != 5 {
		t.Fatalf("usage record mismatch: %+v", usage)
	}
	if len(fix.publisher.created) != 1 || len(fix.publisher.redeemed) != 1 {
		t.Fatalf("expected both events published, got %d/%d", len(fix.publisher.created), len(fix.publisher.redeemed))
	}
}

func TestCheckoutService_PlaceOrder_RejectedCodeAbortsBeforePersist(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{findErr: &stubRepoError{notFound: true}}
	taxRepo := &stubTaxRateRepository{}
	fix := newCheckoutFixture(t, now, discountRepo, taxRepo, &limitedLedger{limit: 1})

	code := "MISSING"
	_, err := fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:       "user-1",
		Items:        cartItems(),
		DiscountCode: &code,
	})

	var rejected *DiscountRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected DiscountRejectedError got %v", err)
	}
	if rejected.Reason != "code not found" {
		t.Fatalf("expected reason %q got %q", "code not found", rejected.Reason)
	}
	if fix.orders.count() != 0 {
		t.Fatalf("no order may be persisted for a rejected code")
	}
}

func TestCheckoutService_PlaceOrder_NoUsageWhenCreateFails(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	ledger := &limitedLedger{limit: 1}
	fix := newCheckoutFixture(t, now, discountRepo, &stubTaxRateRepository{}, ledger)
	fix.orders.createErr = &stubRepoError{unavailable: true, msg: "store down"}

	code := "SAVE10"
	_, err := fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:       "user-1",
		Items:        cartItems(),
		DiscountCode: &code,
	})
	if !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected ErrOrderUnavailable got %v", err)
	}
	if len(ledger.completed) != 0 {
		t.Fatalf("usage must not be recorded when the order was never created")
	}
	if len(fix.publisher.created) != 0 {
		t.Fatalf("no events may be published for a failed order")
	}
}

func TestCheckoutService_PlaceOrder_TaxStoreFaultDoesNotBlockOrder(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	taxRepo := &stubTaxRateRepository{listErr: &stubRepoError{unavailable: true}}
	fix := newCheckoutFixture(t, now, discountRepo, taxRepo, &limitedLedger{limit: 1})

	order, err := fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "user-1",
		Items:  cartItems(),
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Totals.TaxAmount != 0 {
		t.Fatalf("expected zero tax under store fault, got %v", order.Totals.TaxAmount)
	}
	if order.Totals.FinalPrice != 100 {
		t.Fatalf("expected final price 100 got %v", order.Totals.FinalPrice)
	}
}

func TestCheckoutService_PlaceOrder_CeilingViolationAborts(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	fix := newCheckoutFixture(t, now, discountRepo, &stubTaxRateRepository{}, &limitedLedger{limit: 1})

	_, err := fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: "prod-1", Name: "Bad import", Quantity: 1, UnitPrice: 2_000_000},
		},
	})
	if !errors.Is(err, ErrOrderTotalsInvalid) {
		t.Fatalf("expected ErrOrderTotalsInvalid got %v", err)
	}
	if fix.orders.count() != 0 {
		t.Fatalf("an order violating the ceiling must not be persisted")
	}
}

func TestCheckoutService_EstimateCart_DoesNotPersist(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	taxRepo := &stubTaxRateRepository{rates: []domain.TaxRate{
		{ID: "tax-1", Rate: 10, Priority: 1, IsActive: true},
	}}
	fix := newCheckoutFixture(t, now, discountRepo, taxRepo, &limitedLedger{limit: 1})

	code := "SAVE10"
	estimate, err := fix.svc.EstimateCart(context.Background(), PlaceOrderCommand{
		UserID:       "user-1",
		Items:        cartItems(),
		DiscountCode: &code,
	})
	if err != nil {
		t.Fatalf("EstimateCart: %v", err)
	}
	if estimate.Totals.DiscountTotal != 5 {
		t.Fatalf("expected discount 5 got %v", estimate.Totals.DiscountTotal)
	}
	if fix.orders.count() != 0 {
		t.Fatalf("estimate must not persist an order")
	}
	if len(fix.publisher.created) != 0 {
		t.Fatalf("estimate must not publish events")
	}
}

func TestCheckoutService_ConcurrentRedemptionsHonorUsageLimit(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	discountRepo := &stubDiscountRepository{discount: activeDiscount(now)}
	ledger := &limitedLedger{limit: 1}
	fix := newCheckoutFixture(t, now, discountRepo, &stubTaxRateRepository{}, ledger)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			code := "SAVE10"
			_, _ = fix.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
				UserID:       "user-1",
				Items:        cartItems(),
				DiscountCode: &code,
			})
		}()
	}
	wg.Wait()

	if len(ledger.completed) != 1 {
		t.Fatalf("expected exactly one completed usage record, got %d", len(ledger.completed))
	}
	if ledger.count != 1 {
		t.Fatalf("usage count advanced past the limit: %d", ledger.count)
	}
}

func TestCheckoutService_AssembleTotals_FlooredAtZero(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fix := newCheckoutFixture(t, now, &stubDiscountRepository{discount: activeDiscount(now)}, &stubTaxRateRepository{}, &limitedLedger{limit: 1})

	fifty := domain.Discount{Type: domain.DiscountTypeFixed, Value: 50}
	calc := CalculateDiscount(fifty, 20)
	totals, err := fix.svc.AssembleTotals(20, calc, domain.TaxResult{}, 5, "USD")
	if err != nil {
		t.Fatalf("AssembleTotals: %v", err)
	}
	if totals.FinalPrice != 5 {
		t.Fatalf("expected final price 5 (goods fully discounted plus shipping) got %v", totals.FinalPrice)
	}
	if totals.DiscountTotal != 20 {
		t.Fatalf("expected discount capped at subtotal, got %v", totals.DiscountTotal)
	}
}
