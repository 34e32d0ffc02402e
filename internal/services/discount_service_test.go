package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
	msg         string
}

func (e *stubRepoError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "stub repository error"
}

func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubDiscountRepository struct {
	mu          sync.Mutex
	discount    domain.Discount
	findErr     error
	lastCode    string
	findCalls   int
	redeemCalls int
	redeemErr   error
	usage       domain.DiscountUsage
}

func (r *stubDiscountRepository) Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	return discount, nil
}

func (r *stubDiscountRepository) Update(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	return discount, nil
}

func (r *stubDiscountRepository) Deactivate(context.Context, string, time.Time) error { return nil }

func (r *stubDiscountRepository) FindByID(context.Context, string) (domain.Discount, error) {
	return r.discount, r.findErr
}

func (r *stubDiscountRepository) FindByCode(ctx context.Context, code string) (domain.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	r.lastCode = code
	if r.findErr != nil {
		return domain.Discount{}, r.findErr
	}
	return r.discount, nil
}

func (r *stubDiscountRepository) List(context.Context, repositories.DiscountListFilter) ([]domain.Discount, error) {
	return []domain.Discount{r.discount}, nil
}

func (r *stubDiscountRepository) RedeemUsage(ctx context.Context, cmd repositories.RedeemUsageCommand) (domain.DiscountUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redeemCalls++
	if r.redeemErr != nil {
		return domain.DiscountUsage{}, r.redeemErr
	}
	usage := r.usage
	if usage.ID == "" {
		usage = domain.DiscountUsage{
			ID:             "usage-1",
			DiscountID:     cmd.DiscountID,
			UserID:         cmd.UserID,
			OrderID:        cmd.OrderID,
			OrderTotal:     cmd.OrderTotal,
			DiscountAmount: cmd.DiscountAmount,
			Status:         domain.UsageStatusCompleted,
			UsedAt:         cmd.Now,
		}
	}
	return usage, nil
}

func activeDiscount(now time.Time) domain.Discount {
	five := 5.0
	return domain.Discount{
		ID:                "disc-1",
		Code:              "SAVE10",
		Type:              domain.DiscountTypePercentage,
		Value:             10,
		MaxDiscountAmount: &five,
		StartsAt:          now.Add(-24 * time.Hour),
		EndsAt:            now.Add(24 * time.Hour),
		IsActive:          true,
		AppliesTo:         domain.DiscountAppliesTo{AllProducts: true},
	}
}

func newDiscountServiceForTest(t *testing.T, repo *stubDiscountRepository, now time.Time) DiscountService {
	t.Helper()
	svc, err := NewDiscountService(DiscountServiceDeps{
		Discounts: repo,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewDiscountService: %v", err)
	}
	return svc
}

func TestDiscountService_ValidateCode_Accepted(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubDiscountRepository{discount: activeDiscount(now)}
	svc := newDiscountServiceForTest(t, repo, now)

	result := svc.ValidateCode(context.Background(), " save10 ", domain.DiscountApplicationContext{Subtotal: 100})
	if !result.Accepted {
		t.Fatalf("expected acceptance, got reason %q", result.Reason)
	}
	if result.Discount == nil || result.Discount.Code != "SAVE10" {
		t.Fatalf("expected matched discount, got %+v", result.Discount)
	}
	if repo.lastCode != "SAVE10" {
		t.Fatalf("repository looked up wrong code %q", repo.lastCode)
	}
}

func TestDiscountService_ValidateCode_RejectionReasons(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	one := 1
	fifty := 50.0

	cases := []struct {
		name   string
		mutate func(*domain.Discount)
		appctx domain.DiscountApplicationContext
		reason string
	}{
		{
			name:   "inactive",
			mutate: func(d *domain.Discount) { d.IsActive = false },
			appctx: domain.DiscountApplicationContext{Subtotal: 100},
			reason: "not active",
		},
		{
			name:   "not yet active",
			mutate: func(d *domain.Discount) { d.StartsAt = now.Add(time.Hour) },
			appctx: domain.DiscountApplicationContext{Subtotal: 100},
			reason: "not yet active",
		},
		{
			name:   "expired",
			mutate: func(d *domain.Discount) { d.EndsAt = now.Add(-time.Hour) },
			appctx: domain.DiscountApplicationContext{Subtotal: 100},
			reason: "expired",
		},
		{
			name: "usage limit reached",
			mutate: func(d *domain.Discount) {
				d.UsageLimit = &one
				d.UsageCount = 1
			},
			appctx: domain.DiscountApplicationContext{Subtotal: 100},
			reason: "usage limit reached",
		},
		{
			name:   "minimum order amount",
			mutate: func(d *domain.Discount) { d.MinOrderAmount = &fifty },
			appctx: domain.DiscountApplicationContext{Subtotal: 30},
			reason: "minimum order amount of 50.00 not met",
		},
		{
			name: "not applicable",
			mutate: func(d *domain.Discount) {
				d.AppliesTo = domain.DiscountAppliesTo{ProductIDs: []string{"prod-9"}}
			},
			appctx: domain.DiscountApplicationContext{Subtotal: 100, ProductIDs: []string{"prod-1"}},
			reason: "does not apply to items in cart",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			discount := activeDiscount(now)
			tc.mutate(&discount)
			repo := &stubDiscountRepository{discount: discount}
			svc := newDiscountServiceForTest(t, repo, now)

			result := svc.ValidateCode(context.Background(), "SAVE10", tc.appctx)
			if result.Accepted {
				t.Fatalf("expected rejection")
			}
			if result.Reason != tc.reason {
				t.Fatalf("expected reason %q got %q", tc.reason, result.Reason)
			}
		})
	}
}

func TestDiscountService_ValidateCode_NotFound(t *testing.T) {
	repo := &stubDiscountRepository{findErr: &stubRepoError{notFound: true}}
	svc := newDiscountServiceForTest(t, repo, time.Now())

	result := svc.ValidateCode(context.Background(), "MISSING", domain.DiscountApplicationContext{Subtotal: 100})
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if result.Reason != "code not found" {
		t.Fatalf("expected reason %q got %q", "code not found", result.Reason)
	}
}

func TestDiscountService_ValidateCode_StoreFaultDegrades(t *testing.T) {
	repo := &stubDiscountRepository{findErr: &stubRepoError{unavailable: true, msg: "rpc error"}}

	var loggedEvent string
	svc, err := NewDiscountService(DiscountServiceDeps{
		Discounts: repo,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			loggedEvent = event
		},
	})
	if err != nil {
		t.Fatalf("NewDiscountService: %v", err)
	}

	result := svc.ValidateCode(context.Background(), "SAVE10", domain.DiscountApplicationContext{Subtotal: 100})
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if result.Reason != "failed to validate" {
		t.Fatalf("expected generic rejection, got %q", result.Reason)
	}
	if loggedEvent != "discount.lookup_failed" {
		t.Fatalf("expected lookup failure to be logged, got %q", loggedEvent)
	}
}

func TestDiscountService_ValidateCode_Idempotent(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubDiscountRepository{discount: activeDiscount(now)}
	svc := newDiscountServiceForTest(t, repo, now)

	appctx := domain.DiscountApplicationContext{Subtotal: 100}
	first := svc.ValidateCode(context.Background(), "SAVE10", appctx)
	second := svc.ValidateCode(context.Background(), "SAVE10", appctx)

	if first.Accepted != second.Accepted || first.Reason != second.Reason {
		t.Fatalf("validation is not idempotent: %+v vs %+v", first, second)
	}
	if repo.redeemCalls != 0 {
		t.Fatalf("validation must not write, saw %d redeem calls", repo.redeemCalls)
	}
}

func TestDiscountService_ApplyToOrder_PercentageClamped(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubDiscountRepository{discount: activeDiscount(now)}
	svc := newDiscountServiceForTest(t, repo, now)

	// 10% of 100 is 10, clamped to the 5 maximum.
	calc := svc.ApplyToOrder(context.Background(), "SAVE10", domain.DiscountApplicationContext{Subtotal: 100})
	if !calc.IsValid {
		t.Fatalf("expected valid calculation, got reason %q", calc.Reason)
	}
	if calc.DiscountAmount != 5 {
		t.Fatalf("expected clamped amount 5 got %v", calc.DiscountAmount)
	}
	if calc.FinalAmount != 95 {
		t.Fatalf("expected final amount 95 got %v", calc.FinalAmount)
	}

	// 10% of 30 is 3, below the clamp.
	calc = svc.ApplyToOrder(context.Background(), "SAVE10", domain.DiscountApplicationContext{Subtotal: 30})
	if calc.DiscountAmount != 3 || calc.FinalAmount != 27 {
		t.Fatalf("expected 3/27 got %v/%v", calc.DiscountAmount, calc.FinalAmount)
	}
}

func TestDiscountService_ApplyToOrder_RejectionKeepsSubtotal(t *testing.T) {
	repo := &stubDiscountRepository{findErr: &stubRepoError{notFound: true}}
	svc := newDiscountServiceForTest(t, repo, time.Now())

	calc := svc.ApplyToOrder(context.Background(), "MISSING", domain.DiscountApplicationContext{Subtotal: 80})
	if calc.IsValid {
		t.Fatalf("expected invalid calculation")
	}
	if calc.Reason != "code not found" {
		t.Fatalf("expected reason %q got %q", "code not found", calc.Reason)
	}
	if calc.FinalAmount != 80 {
		t.Fatalf("expected subtotal unchanged, got %v", calc.FinalAmount)
	}
	if calc.DiscountAmount != 0 {
		t.Fatalf("expected zero discount, got %v", calc.DiscountAmount)
	}
}

func TestCalculateDiscount_FixedNeverExceedsSubtotal(t *testing.T) {
	discount := domain.Discount{
		Type:  domain.DiscountTypeFixed,
		Value: 50,
	}

	calc := CalculateDiscount(discount, 20)
	if calc.DiscountAmount != 20 {
		t.Fatalf("expected fixed discount capped at subtotal, got %v", calc.DiscountAmount)
	}
	if calc.FinalAmount != 0 {
		t.Fatalf("expected zero final amount, got %v", calc.FinalAmount)
	}

	calc = CalculateDiscount(discount, 200)
	if calc.DiscountAmount != 50 || calc.FinalAmount != 150 {
		t.Fatalf("expected 50/150 got %v/%v", calc.DiscountAmount, calc.FinalAmount)
	}
}

func TestCalculateDiscount_FinalAmountNeverNegative(t *testing.T) {
	discount := domain.Discount{Type: domain.DiscountTypePercentage, Value: 100}
	for _, subtotal := range []float64{0, 1, 10, 99.99, 1000} {
		calc := CalculateDiscount(discount, subtotal)
		if calc.FinalAmount < 0 {
			t.Fatalf("final amount went negative for subtotal %v: %v", subtotal, calc.FinalAmount)
		}
		if calc.DiscountAmount > subtotal {
			t.Fatalf("discount %v exceeds subtotal %v", calc.DiscountAmount, subtotal)
		}
	}
}

func TestNewDiscountService_RequiresRepository(t *testing.T) {
	if _, err := NewDiscountService(DiscountServiceDeps{}); !errors.Is(err, ErrDiscountRepositoryMissing) {
		t.Fatalf("expected ErrDiscountRepositoryMissing got %v", err)
	}
}

func TestDiscountService_MinOrderReasonIncludesAmount(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	min := 149.5
	discount := activeDiscount(now)
	discount.MinOrderAmount = &min
	repo := &stubDiscountRepository{discount: discount}
	svc := newDiscountServiceForTest(t, repo, now)

	result := svc.ValidateCode(context.Background(), "SAVE10", domain.DiscountApplicationContext{Subtotal: 100})
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if !strings.Contains(result.Reason, "149.50") {
		t.Fatalf("expected reason to carry the required amount, got %q", result.Reason)
	}
}
