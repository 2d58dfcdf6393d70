package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"
	"atelier-checkout/internal/notify"
	"atelier-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// adminTargets are the statuses an operator may move an order to. Payment
// states are only ever set by reconciliation.
var adminTargets = map[model.OrderStatus]bool{
	model.OrderStatusFulfilling: true,
	model.OrderStatusShipped:    true,
	model.OrderStatusDelivered:  true,
	model.OrderStatusCancelled:  true,
	model.OrderStatusRefunded:   true,
}

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	dispatcher notify.Dispatcher
	pendingTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	dispatcher notify.Dispatcher,
	pendingTTL time.Duration,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		dispatcher: dispatcher,
		pendingTTL: pendingTTL,
		now:        time.Now,
		logger:     logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order by its ID with all its line items.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, items, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, nil
	}

	if items == nil {
		items = []model.OrderItem{}
	}

	return &model.OrderResponse{Order: *order, Items: items}, nil
}

// UpdateStatus moves an order to req.Status and sends the matching customer
// email. Email failures are logged and do not undo the change.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.StatusUpdateRequest) (resp *model.OrderResponse, err error) {
	defer func() {
		if !errors.Is(err, model.ErrOrderNotFound) {
			middleware.RecordOrderOperation("status_change", err == nil)
		}
	}()

	if req == nil || req.Status == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "status is required")
	}

	if !req.Status.IsValid() {
		return nil, model.NewDomainError(model.ErrCodeInvalidStatus, fmt.Sprintf("unknown status %q", req.Status))
	}

	if !adminTargets[req.Status] {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("target", string(req.Status)).
			Msg("status not settable by operators")
		return nil, model.ErrInvalidTransition
	}

	order, _, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if order.Status.IsTerminal() {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("status", string(order.Status)).
			Msg("status change rejected for closed order")
		err = model.ErrOrderClosed
		return nil, err
	}

	if !order.Status.CanTransitionTo(req.Status) {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("from", string(order.Status)).
			Str("to", string(req.Status)).
			Msg("invalid status transition")
		err = model.ErrInvalidTransition
		return nil, err
	}

	if err = s.orderRepo.UpdateStatus(ctx, id, order.Status, req.Status, req.TrackingNumber, s.now().UTC()); err != nil {
		if !errors.Is(err, model.ErrStatusConflict) {
			err = fmt.Errorf("failed to update order status: %w", err)
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("from", string(order.Status)).
		Str("to", string(req.Status)).
		Msg("order status updated")

	updated, items, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if updated == nil {
		return nil, model.ErrOrderNotFound
	}

	s.notifyStatusChange(ctx, updated)

	if items == nil {
		items = []model.OrderItem{}
	}
	return &model.OrderResponse{Order: *updated, Items: items}, nil
}

// ExpireStale cancels orders that stayed unpaid for longer than the pending TTL.
func (s *orderService) ExpireStale(ctx context.Context) (count int, err error) {
	defer func() { middleware.RecordOrderOperation("expire", err == nil) }()

	now := s.now().UTC()
	numbers, err := s.orderRepo.ExpireUnpaid(ctx, now.Add(-s.pendingTTL), now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to expire unpaid orders")
		return 0, fmt.Errorf("failed to expire unpaid orders: %w", err)
	}

	if len(numbers) > 0 {
		s.logger.Info().
			Int("count", len(numbers)).
			Strs("order_numbers", numbers).
			Msg("expired unpaid orders")
	}

	return len(numbers), nil
}

func (s *orderService) notifyStatusChange(ctx context.Context, order *model.Order) {
	var err error
	switch order.Status {
	case model.OrderStatusShipped:
		notice := notify.ShipmentNotice{OrderNumber: order.OrderNumber, CustomerName: order.CustomerName}
		if order.TrackingNumber != nil {
			notice.TrackingNumber = *order.TrackingNumber
		}
		err = s.dispatcher.SendOrderShipped(ctx, order.CustomerEmail, notice)
	case model.OrderStatusDelivered:
		err = s.dispatcher.SendOrderDelivered(ctx, order.CustomerEmail, notify.DeliveryNotice{
			OrderNumber:  order.OrderNumber,
			CustomerName: order.CustomerName,
		})
	default:
		return
	}

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_number", order.OrderNumber).
			Str("status", string(order.Status)).
			Msg("status email failed")
	}
}
