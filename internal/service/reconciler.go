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

// reconciler implements Reconciler.
type reconciler struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	dispatcher  notify.Dispatcher
	now         func() time.Time
	logger      zerolog.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	dispatcher notify.Dispatcher,
	logger zerolog.Logger,
) Reconciler {
	return &reconciler{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		dispatcher:  dispatcher,
		now:         time.Now,
		logger:      logger.With().Str("service", "reconciler").Logger(),
	}
}

// Reconcile applies a confirmed payment to an order.
func (r *reconciler) Reconcile(ctx context.Context, orderID uuid.UUID, conf PaymentConfirmation) (result *ReconcileResult, err error) {
	defer func() {
		if !errors.Is(err, model.ErrAlreadyReconciled) {
			middleware.RecordOrderOperation("reconcile", err == nil)
		}
	}()

	order, _, err := r.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	tx, err := r.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	now := r.now().UTC()

	changed, current, err := r.orderRepo.MarkPaid(ctx, tx, orderID, conf.CaptureID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile order: %w", err)
	}
	if !changed {
		if current.IsPaid() {
			r.logger.Info().
				Str("order_id", orderID.String()).
				Str("provider", string(conf.Provider)).
				Msg("order already reconciled")
			err = model.ErrAlreadyReconciled
			return nil, err
		}

		// Money moved for an order that can no longer take it. Needs a refund.
		event := r.logger.Error().
			Str("order_id", orderID.String()).
			Str("order_number", order.OrderNumber).
			Str("provider", string(conf.Provider)).
			Str("status", string(current))
		if conf.CaptureID != nil {
			event = event.Str("capture_id", *conf.CaptureID)
		}
		event.Msg("payment received for order that is no longer payable")
		middleware.RecordPaymentAnomaly("paid_after_cancel")
		err = model.ErrPaidAfterCancel
		return nil, err
	}

	items, err := r.orderRepo.GetOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile order: %w", err)
	}
	if len(items) == 0 {
		items = model.NewOrderItems(orderID, order.CartSnapshot, now)
		if err = r.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
			return nil, fmt.Errorf("failed to create order items: %w", err)
		}
		r.logger.Debug().
			Str("order_id", orderID.String()).
			Int("item_count", len(items)).
			Msg("line items created from cart snapshot")
	}

	report := r.productRepo.DecrementStock(ctx, tx, repository.OrderRef{ID: orderID, Number: order.OrderNumber}, items)

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	middleware.RecordStockDecrements(report.Succeeded, report.Failed)

	order.Status = model.OrderStatusPaid
	order.PaidAt = &now
	order.UpdatedAt = now
	if conf.CaptureID != nil {
		order.WalletCaptureID = conf.CaptureID
	}

	r.logger.Info().
		Str("order_id", orderID.String()).
		Str("order_number", order.OrderNumber).
		Str("provider", string(conf.Provider)).
		Int("stock_succeeded", report.Succeeded).
		Int("stock_failed", report.Failed).
		Msg("order reconciled")

	result = &ReconcileResult{Order: order, Items: items, Stock: report}

	notifyErr := r.dispatcher.SendOrderConfirmation(ctx, order.CustomerEmail, notify.OrderConfirmation{
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		Items:           items,
		Subtotal:        order.SubtotalAmount,
		Shipping:        order.ShippingAmount,
		Total:           order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
	})
	if notifyErr != nil {
		r.logger.Warn().
			Err(notifyErr).
			Str("order_number", order.OrderNumber).
			Msg("confirmation email failed after payment")
		result.NotificationErr = notifyErr
	}

	return result, nil
}
