package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/lumencraft/storefront-api/internal/platform/textutil"
	"github.com/lumencraft/storefront-api/internal/services"
)

// PubSubEventPublisher publishes checkout lifecycle events to Pub/Sub topics.
// Publication is best-effort from the caller's point of view: a failed publish
// must never unwind an already persisted order.
type PubSubEventPublisher struct {
	orders    *pubsub.Topic
	discounts *pubsub.Topic
	marshal   func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a publisher for the given topics. Either
// topic may be nil, in which case events of that kind are silently dropped.
func NewPubSubEventPublisher(orders, discounts *pubsub.Topic) (*PubSubEventPublisher, error) {
	if orders == nil && discounts == nil {
		return nil, errors.New("pubsub event publisher: at least one topic is required")
	}
	return &PubSubEventPublisher{
		orders:    orders,
		discounts: discounts,
		marshal:   json.Marshal,
	}, nil
}

// PublishOrderCreated enqueues an order.created event.
func (p *PubSubEventPublisher) PublishOrderCreated(ctx context.Context, event services.OrderCreatedEvent) (string, error) {
	if p == nil || p.orders == nil {
		return "", nil
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order created event: %w", err)
	}

	attrs := textutil.NormalizeStringMap(map[string]string{
		"orderId":      event.OrderID,
		"orderNumber":  event.OrderNumber,
		"userId":       event.UserID,
		"discountCode": event.DiscountCode,
	})

	result := p.orders.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order created event: %w", err)
	}
	return id, nil
}

// PublishDiscountRedeemed enqueues a discount.redeemed event.
func (p *PubSubEventPublisher) PublishDiscountRedeemed(ctx context.Context, event services.DiscountRedeemedEvent) (string, error) {
	if p == nil || p.discounts == nil {
		return "", nil
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal discount redeemed event: %w", err)
	}

	attrs := textutil.NormalizeStringMap(map[string]string{
		"discountId": event.DiscountID,
		"orderId":    event.OrderID,
		"userId":     event.UserID,
	})

	result := p.discounts.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish discount redeemed event: %w", err)
	}
	return id, nil
}
