package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	pfirestore "github.com/lumencraft/storefront-api/internal/platform/firestore"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

const (
	ordersCollection      = "orders"
	defaultOrderListLimit = 50
)

type orderItemDocument struct {
	ProductID  string  `firestore:"productId"`
	CategoryID string  `firestore:"categoryId,omitempty"`
	Name       string  `firestore:"name,omitempty"`
	Quantity   int     `firestore:"quantity"`
	UnitPrice  float64 `firestore:"unitPrice"`
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId"`
	Status          string              `firestore:"status"`
	Items           []orderItemDocument `firestore:"items"`
	Currency        string              `firestore:"currency"`
	Subtotal        float64             `firestore:"subtotal"`
	DiscountTotal   float64             `firestore:"discountTotal"`
	TaxAmount       float64             `firestore:"taxAmount"`
	ShippingAmount  float64             `firestore:"shippingAmount"`
	FinalPrice      float64             `firestore:"finalPrice"`
	DiscountCode    *string             `firestore:"discountCode,omitempty"`
	ShippingCountry string              `firestore:"shippingCountry,omitempty"`
	ShippingState   string              `firestore:"shippingState,omitempty"`
	ShippingZip     string              `firestore:"shippingZip,omitempty"`
	PaymentMethod   string              `firestore:"paymentMethod,omitempty"`
	PaymentStatus   string              `firestore:"paymentStatus"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Create persists a new order document. The caller assigns the id; creating
// the same id twice surfaces as a conflict.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	if _, err := r.orders.Create(ctx, order.ID, newOrderDocument(order)); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// GetByID loads a single order document.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultOrderListLimit {
		limit = defaultOrderListLimit
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// UpdatePaymentStatus records the externally reported payment state. The
// engine performs no settlement of its own.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, now time.Time) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if _, err := r.orders.Update(ctx, orderID, []firestore.Update{
		{Path: "paymentStatus", Value: string(status)},
		{Path: "updatedAt", Value: now.UTC()},
	}); err != nil {
		return domain.Order{}, err
	}
	return r.GetByID(ctx, orderID)
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	return orderDocument{
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.Status),
		Items:           items,
		Currency:        order.Totals.Currency,
		Subtotal:        order.Totals.Subtotal,
		DiscountTotal:   order.Totals.DiscountTotal,
		TaxAmount:       order.Totals.TaxAmount,
		ShippingAmount:  order.Totals.ShippingAmount,
		FinalPrice:      order.Totals.FinalPrice,
		DiscountCode:    order.DiscountCode,
		ShippingCountry: order.ShippingCountry,
		ShippingState:   order.ShippingState,
		ShippingZip:     order.ShippingZip,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   string(order.PaymentStatus),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		UserID:      d.UserID,
		Status:      domain.OrderStatus(d.Status),
		Items:       items,
		Totals: domain.OrderTotals{
			Currency:       d.Currency,
			Subtotal:       d.Subtotal,
			DiscountTotal:  d.DiscountTotal,
			TaxAmount:      d.TaxAmount,
			ShippingAmount: d.ShippingAmount,
			FinalPrice:     d.FinalPrice,
		},
		DiscountCode:    d.DiscountCode,
		ShippingCountry: d.ShippingCountry,
		ShippingState:   d.ShippingState,
		ShippingZip:     d.ShippingZip,
		PaymentMethod:   d.PaymentMethod,
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
