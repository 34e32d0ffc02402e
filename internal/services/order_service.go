package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumencraft/storefront-api/internal/domain"
	"github.com/lumencraft/storefront-api/internal/repositories"
)

// OrderServiceDeps bundles dependencies required to construct an OrderService implementation.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
}

type orderService struct {
	repo  repositories.OrderRepository
	clock func() time.Time
}

// NewOrderService wires an OrderService backed by the provided repository.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderService{
		repo:  deps.Orders,
		clock: func() time.Time { return clock().UTC() },
	}, nil
}

// GetOrder loads an order. Non-elevated requesters may only read their own.
func (s *orderService) GetOrder(ctx context.Context, orderID, requesterUID string, elevated bool) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, classifyOrderError(err)
	}
	if !elevated && order.UserID != requesterUID {
		// Report not-found rather than forbidden so order IDs cannot be probed.
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error) {
	if strings.TrimSpace(query.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.repo.List(ctx, repositories.OrderListFilter{
		UserID: query.UserID,
		Status: query.Status,
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, classifyOrderError(err)
	}
	return orders, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, status)
	}

	order, err := s.repo.UpdatePaymentStatus(ctx, orderID, status, s.clock())
	if err != nil {
		return domain.Order{}, classifyOrderError(err)
	}
	return order, nil
}

func classifyOrderError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}
