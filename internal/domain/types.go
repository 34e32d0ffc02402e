package domain

import (
	"strings"
	"time"
)

// DiscountType enumerates the supported discount value semantics.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the order subtotal.
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	// DiscountTypeFixed discounts a fixed monetary amount.
	DiscountTypeFixed DiscountType = "FIXED"
)

// DiscountAppliesTo scopes a discount to specific products or categories.
// AllProducts true means the id sets are ignored.
type DiscountAppliesTo struct {
	AllProducts bool
	ProductIDs  []string
	CategoryIDs []string
}

// Matches reports whether any of the supplied product or category ids fall
// inside the discount's applicability scope.
func (a DiscountAppliesTo) Matches(productIDs, categoryIDs []string) bool {
	if a.AllProducts {
		return true
	}
	if intersects(a.ProductIDs, productIDs) {
		return true
	}
	return intersects(a.CategoryIDs, categoryIDs)
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	for _, v := range b {
		if _, ok := set[strings.TrimSpace(v)]; ok {
			return true
		}
	}
	return false
}

// Discount describes an admin-managed promotional code.
type Discount struct {
	ID                string
	Code              string
	Description       string
	Type              DiscountType
	Value             float64
	MinOrderAmount    *float64
	MaxDiscountAmount *float64
	StartsAt          time.Time
	EndsAt            time.Time
	IsActive          bool
	UsageLimit        *int
	UsageCount        int
	AppliesTo         DiscountAppliesTo
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TaxRate describes a location-scoped tax rule. Nil location fields act as
// wildcards that match any order.
type TaxRate struct {
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
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MatchesLocation reports whether the rate applies to the given location.
func (t TaxRate) MatchesLocation(loc TaxLocation) bool {
	if t.Country != nil && !strings.EqualFold(strings.TrimSpace(*t.Country), strings.TrimSpace(loc.Country)) {
		return false
	}
	if t.State != nil && !strings.EqualFold(strings.TrimSpace(*t.State), strings.TrimSpace(loc.State)) {
		return false
	}
	if t.ZipCode != nil && strings.TrimSpace(*t.ZipCode) != strings.TrimSpace(loc.ZipCode) {
		return false
	}
	return true
}

// TaxLocation identifies the customer location used for tax resolution.
type TaxLocation struct {
	Country string
	State   string
	ZipCode string
}

// UsageStatus enumerates the lifecycle states of a discount redemption record.
type UsageStatus string

const (
	UsageStatusPending   UsageStatus = "PENDING"
	UsageStatusCompleted UsageStatus = "COMPLETED"
	UsageStatusFailed    UsageStatus = "FAILED"
)

// DiscountUsage is the append-only audit record of a single redemption.
// Records are created once per successful order and never mutated.
type DiscountUsage struct {
	ID             string
	DiscountID     string
	UserID         string
	OrderID        string
	OrderTotal     float64
	DiscountAmount float64
	Status         UsageStatus
	UsedAt         time.Time
}

// OrderItem mirrors a cart line at the time the order was placed.
type OrderItem struct {
	ProductID  string
	CategoryID string
	Name       string
	Quantity   int
	UnitPrice  float64
}

// LineTotal returns quantity times unit price for the item.
func (i OrderItem) LineTotal() float64 {
	if i.Quantity <= 0 || i.UnitPrice <= 0 {
		return 0
	}
	return float64(i.Quantity) * i.UnitPrice
}

// PaymentStatus tracks the recorded (not settled) payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// OrderTotals holds the rolled-up monetary fields persisted with an order.
// Currency is an opaque tag carried through the computation, never converted.
type OrderTotals struct {
	Currency       string
	Subtotal       float64
	DiscountTotal  float64
	TaxAmount      float64
	ShippingAmount float64
	FinalPrice     float64
}

// Order captures the order header persisted after checkout.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	Items           []OrderItem
	Totals          OrderTotals
	DiscountCode    *string
	ShippingCountry string
	ShippingState   string
	ShippingZip     string
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DiscountApplicationContext carries the ephemeral cart facts a discount is
// validated against. It is never persisted.
type DiscountApplicationContext struct {
	UserID      string
	Subtotal    float64
	Items       []OrderItem
	ProductIDs  []string
	CategoryIDs []string
}
