package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	pfirestore "github.com/lumencraft/storefront-api/internal/platform/firestore"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

const (
	taxRatesCollection      = "taxRates"
	defaultTaxRateListLimit = 200
)

type taxRateDocument struct {
	Name              string    `firestore:"name"`
	Description       string    `firestore:"description,omitempty"`
	Rate              float64   `firestore:"rate"`
	Country           *string   `firestore:"country,omitempty"`
	State             *string   `firestore:"state,omitempty"`
	ZipCode           *string   `firestore:"zipCode,omitempty"`
	IsActive          bool      `firestore:"isActive"`
	AppliesToShipping bool      `firestore:"appliesToShipping"`
	Priority          int       `firestore:"priority"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// TaxRateRepository implements repositories.TaxRateRepository backed by Firestore.
type TaxRateRepository struct {
	rates *pfirestore.BaseRepository[taxRateDocument]
}

// NewTaxRateRepository constructs a Firestore-backed tax rate repository.
func NewTaxRateRepository(provider *pfirestore.Provider) (*TaxRateRepository, error) {
	if provider == nil {
		return nil, errors.New("tax rate repository requires firestore provider")
	}
	return &TaxRateRepository{
		rates: pfirestore.NewBaseRepository[taxRateDocument](provider, taxRatesCollection, nil, nil),
	}, nil
}

// Insert persists a new tax rate document.
func (r *TaxRateRepository) Insert(ctx context.Context, rate domain.TaxRate) (domain.TaxRate, error) {
	if r == nil || r.rates == nil {
		return domain.TaxRate{}, errors.New("tax rate repository not initialised")
	}
	if strings.TrimSpace(rate.ID) == "" {
		rate.ID = ulid.Make().String()
	}
	if _, err := r.rates.Create(ctx, rate.ID, newTaxRateDocument(rate)); err != nil {
		return domain.TaxRate{}, err
	}
	return rate, nil
}

// Update overwrites an existing tax rate document.
func (r *TaxRateRepository) Update(ctx context.Context, rate domain.TaxRate) (domain.TaxRate, error) {
	if r == nil || r.rates == nil {
		return domain.TaxRate{}, errors.New("tax rate repository not initialised")
	}
	if strings.TrimSpace(rate.ID) == "" {
		return domain.TaxRate{}, errors.New("tax rate id is required")
	}
	if _, err := r.rates.Set(ctx, rate.ID, newTaxRateDocument(rate)); err != nil {
		return domain.TaxRate{}, err
	}
	return rate, nil
}

// Delete removes a tax rate document.
func (r *TaxRateRepository) Delete(ctx context.Context, rateID string) error {
	if r == nil || r.rates == nil {
		return errors.New("tax rate repository not initialised")
	}
	return r.rates.Delete(ctx, rateID)
}

// FindByID loads a single tax rate document.
func (r *TaxRateRepository) FindByID(ctx context.Context, rateID string) (domain.TaxRate, error) {
	doc, err := r.rates.Get(ctx, rateID)
	if err != nil {
		return domain.TaxRate{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListActive returns every active rate ordered by creation time. Creation
// order is the documented tie-break when the resolver sorts by priority.
func (r *TaxRateRepository) ListActive(ctx context.Context) ([]domain.TaxRate, error) {
	docs, err := r.rates.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isActive", "==", true).OrderBy("createdAt", firestore.Asc).Limit(defaultTaxRateListLimit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.TaxRate, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// List returns tax rates for admin screens.
func (r *TaxRateRepository) List(ctx context.Context, filter repositories.TaxRateListFilter) ([]domain.TaxRate, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultTaxRateListLimit {
		limit = defaultTaxRateListLimit
	}

	docs, err := r.rates.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.IsActive != nil {
			q = q.Where("isActive", "==", *filter.IsActive)
		}
		if filter.Country != nil {
			q = q.Where("country", "==", strings.TrimSpace(*filter.Country))
		}
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.TaxRate, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

func newTaxRateDocument(rate domain.TaxRate) taxRateDocument {
	return taxRateDocument{
		Name:              strings.TrimSpace(rate.Name),
		Description:       rate.Description,
		Rate:              rate.Rate,
		Country:           rate.Country,
		State:             rate.State,
		ZipCode:           rate.ZipCode,
		IsActive:          rate.IsActive,
		AppliesToShipping: rate.AppliesToShipping,
		Priority:          rate.Priority,
		CreatedAt:         rate.CreatedAt.UTC(),
		UpdatedAt:         rate.UpdatedAt.UTC(),
	}
}

func (d taxRateDocument) toDomain(id string) domain.TaxRate {
	return domain.TaxRate{
		ID:                id,
		Name:              d.Name,
		Description:       d.Description,
		Rate:              d.Rate,
		Country:           d.Country,
		State:             d.State,
		ZipCode:           d.ZipCode,
		IsActive:          d.IsActive,
		AppliesToShipping: d.AppliesToShipping,
		Priority:          d.Priority,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
