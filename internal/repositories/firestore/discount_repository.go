package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	pfirestore "github.com/lumencraft/storefront-api/internal/platform/firestore"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

const (
	discountsCollection     = "discounts"
	discountUsageCollection = "discountUsage"

	defaultDiscountListLimit = 100
)

type discountDocument struct {
	Code              string    `firestore:"code"`
	Description       string    `firestore:"description,omitempty"`
	Type              string    `firestore:"discountType"`
	Value             float64   `firestore:"value"`
	MinOrderAmount    *float64  `firestore:"minOrderAmount,omitempty"`
	MaxDiscountAmount *float64  `firestore:"maxDiscountAmount,omitempty"`
	StartsAt          time.Time `firestore:"startDate"`
	EndsAt            time.Time `firestore:"endDate"`
	IsActive          bool      `firestore:"isActive"`
	UsageLimit        *int      `firestore:"usageLimit,omitempty"`
	UsageCount        int       `firestore:"usageCount"`
	AllProducts       bool      `firestore:"allProducts"`
	ProductIDs        []string  `firestore:"productIds,omitempty"`
	CategoryIDs       []string  `firestore:"categoryIds,omitempty"`
	CreatedBy         string    `firestore:"createdBy,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type discountUsageDocument struct {
	DiscountID     string    `firestore:"discountId"`
	UserID         string    `firestore:"userId"`
	OrderID        string    `firestore:"orderId"`
	OrderTotal     float64   `firestore:"orderTotal"`
	DiscountAmount float64   `firestore:"discountAmount"`
	Status         string    `firestore:"usageStatus"`
	UsedAt         time.Time `firestore:"usedAt"`
}

// DiscountRepository implements repositories.DiscountRepository backed by Firestore.
type DiscountRepository struct {
	provider  *pfirestore.Provider
	discounts *pfirestore.BaseRepository[discountDocument]
	usage     *pfirestore.BaseRepository[discountUsageDocument]
}

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	return &DiscountRepository{
		provider:  provider,
		discounts: pfirestore.NewBaseRepository[discountDocument](provider, discountsCollection, nil, nil),
		usage:     pfirestore.NewBaseRepository[discountUsageDocument](provider, discountUsageCollection, nil, nil),
	}, nil
}

// Insert persists a new discount document.
func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if r == nil || r.provider == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		discount.ID = ulid.Make().String()
	}
	if _, err := r.discounts.Create(ctx, discount.ID, newDiscountDocument(discount)); err != nil {
		return domain.Discount{}, err
	}
	return discount, nil
}

// Update overwrites an existing discount document.
func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if r == nil || r.provider == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		return domain.Discount{}, repositories.NewDiscountError(repositories.DiscountErrorInvalidInput, "discount id is required", nil)
	}
	if _, err := r.discounts.Set(ctx, discount.ID, newDiscountDocument(discount)); err != nil {
		return domain.Discount{}, err
	}
	return discount, nil
}

// Deactivate flips isActive off without removing the document, so usage
// records keep a valid reference.
func (r *DiscountRepository) Deactivate(ctx context.Context, discountID string, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("discount repository not initialised")
	}
	_, err := r.discounts.Update(ctx, discountID, []firestore.Update{
		{Path: "isActive", Value: false},
		{Path: "updatedAt", Value: now.UTC()},
	})
	return err
}

// FindByID loads a single discount document.
func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	doc, err := r.discounts.Get(ctx, discountID)
	if err != nil {
		return domain.Discount{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByCode looks the discount up by its exact, case-sensitive code.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Discount{}, repositories.NewDiscountError(repositories.DiscountErrorInvalidInput, "discount code is required", nil)
	}

	docs, err := r.discounts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Discount{}, err
	}
	if len(docs) == 0 {
		return domain.Discount{}, pfirestore.WrapError("discounts.findByCode", status.Error(codes.NotFound, fmt.Sprintf("discount %q not found", code)))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns discounts for admin screens, newest first.
func (r *DiscountRepository) List(ctx context.Context, filter repositories.DiscountListFilter) ([]domain.Discount, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultDiscountListLimit {
		limit = defaultDiscountListLimit
	}

	docs, err := r.discounts.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.IsActive != nil {
			q = q.Where("isActive", "==", *filter.IsActive)
		}
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// RedeemUsage appends the usage record and advances usageCount in one
// transaction. The usage limit is re-checked against the freshly read
// document, so concurrent redemptions cannot push usageCount past the limit:
// Firestore aborts and retries conflicting transactions, and the loser of the
// race observes the winner's increment.
func (r *DiscountRepository) RedeemUsage(ctx context.Context, cmd repositories.RedeemUsageCommand) (domain.DiscountUsage, error) {
	if r == nil || r.provider == nil {
		return domain.DiscountUsage{}, errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(cmd.DiscountID) == "" {
		return domain.DiscountUsage{}, repositories.NewDiscountError(repositories.DiscountErrorInvalidInput, "discount id is required", nil)
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.DiscountUsage{}, repositories.NewDiscountError(repositories.DiscountErrorInvalidInput, "order id is required", nil)
	}

	now := cmd.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	usage := domain.DiscountUsage{
		ID:             ulid.Make().String(),
		DiscountID:     cmd.DiscountID,
		UserID:         cmd.UserID,
		OrderID:        cmd.OrderID,
		OrderTotal:     cmd.OrderTotal,
		DiscountAmount: cmd.DiscountAmount,
		Status:         domain.UsageStatusCompleted,
		UsedAt:         now,
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		discountRef, err := r.discounts.DocumentRef(ctx, cmd.DiscountID)
		if err != nil {
			return err
		}
		usageRef, err := r.usage.DocumentRef(ctx, usage.ID)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(discountRef)
		if err != nil {
			return err
		}

		var doc discountDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore discounts decode %s: %w", cmd.DiscountID, err)
		}

		if doc.UsageLimit != nil && doc.UsageCount >= *doc.UsageLimit {
			return repositories.NewDiscountError(repositories.DiscountErrorUsageExhausted,
				fmt.Sprintf("discount %s reached usage limit %d", cmd.DiscountID, *doc.UsageLimit), nil)
		}

		if err := tx.Update(discountRef, []firestore.Update{
			{Path: "usageCount", Value: doc.UsageCount + 1},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		return tx.Create(usageRef, discountUsageDocument{
			DiscountID:     usage.DiscountID,
			UserID:         usage.UserID,
			OrderID:        usage.OrderID,
			OrderTotal:     usage.OrderTotal,
			DiscountAmount: usage.DiscountAmount,
			Status:         string(usage.Status),
			UsedAt:         usage.UsedAt,
		})
	})
	if err != nil {
		var discountErr *repositories.DiscountError
		if errors.As(err, &discountErr) {
			return domain.DiscountUsage{}, discountErr
		}
		return domain.DiscountUsage{}, pfirestore.WrapError("discounts.redeemUsage", err)
	}

	return usage, nil
}

func newDiscountDocument(d domain.Discount) discountDocument {
	return discountDocument{
		Code:              strings.TrimSpace(d.Code),
		Description:       d.Description,
		Type:              string(d.Type),
		Value:             d.Value,
		MinOrderAmount:    d.MinOrderAmount,
		MaxDiscountAmount: d.MaxDiscountAmount,
		StartsAt:          d.StartsAt.UTC(),
		EndsAt:            d.EndsAt.UTC(),
		IsActive:          d.IsActive,
		UsageLimit:        d.UsageLimit,
		UsageCount:        d.UsageCount,
		AllProducts:       d.AppliesTo.AllProducts,
		ProductIDs:        d.AppliesTo.ProductIDs,
		CategoryIDs:       d.AppliesTo.CategoryIDs,
		CreatedBy:         d.CreatedBy,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

func (d discountDocument) toDomain(id string) domain.Discount {
	return domain.Discount{
		ID:                id,
		Code:              d.Code,
		Description:       d.Description,
		Type:              domain.DiscountType(d.Type),
		Value:             d.Value,
		MinOrderAmount:    d.MinOrderAmount,
		MaxDiscountAmount: d.MaxDiscountAmount,
		StartsAt:          d.StartsAt,
		EndsAt:            d.EndsAt,
		IsActive:          d.IsActive,
		UsageLimit:        d.UsageLimit,
		UsageCount:        d.UsageCount,
		AppliesTo: domain.DiscountAppliesTo{
			AllProducts: d.AllProducts,
			ProductIDs:  d.ProductIDs,
			CategoryIDs: d.CategoryIDs,
		},
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// DiscountUsageRepository reads the redemption ledger for audit endpoints.
type DiscountUsageRepository struct {
	usage *pfirestore.BaseRepository[discountUsageDocument]
}

// NewDiscountUsageRepository constructs a read-only usage ledger repository.
func NewDiscountUsageRepository(provider *pfirestore.Provider) (*DiscountUsageRepository, error) {
	if provider == nil {
		return nil, errors.New("discount usage repository requires firestore provider")
	}
	return &DiscountUsageRepository{
		usage: pfirestore.NewBaseRepository[discountUsageDocument](provider, discountUsageCollection, nil, nil),
	}, nil
}

// List returns redemption records matching the filter, newest first.
func (r *DiscountUsageRepository) List(ctx context.Context, filter repositories.DiscountUsageFilter) ([]domain.DiscountUsage, error) {
	if r == nil || r.usage == nil {
		return nil, errors.New("discount usage repository not initialised")
	}

	limit := filter.Limit
	if limit <= 0 || limit > defaultDiscountListLimit {
		limit = defaultDiscountListLimit
	}

	docs, err := r.usage.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.DiscountID != "" {
			q = q.Where("discountId", "==", filter.DiscountID)
		}
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		return q.OrderBy("usedAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.DiscountUsage, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.DiscountUsage{
			ID:             doc.ID,
			DiscountID:     doc.Data.DiscountID,
			UserID:         doc.Data.UserID,
			OrderID:        doc.Data.OrderID,
			OrderTotal:     doc.Data.OrderTotal,
			DiscountAmount: doc.Data.DiscountAmount,
			Status:         domain.UsageStatus(doc.Data.Status),
			UsedAt:         doc.Data.UsedAt,
		})
	}
	return out, nil
}
