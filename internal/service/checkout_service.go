package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"
	"atelier-checkout/internal/payment"
	"atelier-checkout/internal/repository"
	"atelier-checkout/internal/shipping"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MessageEmailFailed is returned to the client when money moved but the
// confirmation email could not be sent.
const MessageEmailFailed = "payment captured but confirmation email failed"

// MessagePaidAfterCancel is returned when the provider captured payment for an
// order that had already been cancelled. The capture needs a refund.
const MessagePaidAfterCancel = "payment captured for an order that is no longer payable"

// CheckoutOptions holds the non-dependency settings of the checkout service.
type CheckoutOptions struct {
	NumberPrefix string
	SuccessURL   string
	CancelURL    string
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	orderRepo  repository.OrderRepository
	quoter     ShippingQuoter
	hosted     payment.HostedCheckout
	wallet     payment.Wallet
	verifier   WebhookVerifier
	reconciler Reconciler
	opts       CheckoutOptions
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	quoter ShippingQuoter,
	hosted payment.HostedCheckout,
	wallet payment.Wallet,
	verifier WebhookVerifier,
	reconciler Reconciler,
	opts CheckoutOptions,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orderRepo:  orderRepo,
		quoter:     quoter,
		hosted:     hosted,
		wallet:     wallet,
		verifier:   verifier,
		reconciler: reconciler,
		opts:       opts,
		now:        time.Now,
		logger:     logger.With().Str("service", "checkout").Logger(),
	}
}

// CreateHostedSession creates a pending order and a hosted payment session.
func (s *checkoutService) CreateHostedSession(ctx context.Context, req *model.CheckoutRequest) (resp *model.HostedCheckoutResponse, err error) {
	defer func() { middleware.RecordOrderOperation("create_hosted", err == nil) }()

	order, err := s.createPendingOrder(ctx, req, true)
	if err != nil {
		return nil, err
	}

	session, err := s.hosted.CreateSession(ctx, payment.SessionRequest{
		LineItems:     payment.LineItemsFromCart(order.CartSnapshot),
		Shipping:      order.ShippingAmount,
		CustomerEmail: order.CustomerEmail,
		SuccessURL:    s.opts.SuccessURL,
		CancelURL:     s.opts.CancelURL,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("failed to create hosted session, order left pending")
		return nil, err
	}

	if err = s.orderRepo.AttachCheckoutSession(ctx, order.ID, session.ID); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Str("session_id", session.ID).
			Msg("failed to attach hosted session")
		return nil, fmt.Errorf("failed to attach checkout session: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("session_id", session.ID).
		Msg("hosted checkout started")

	return &model.HostedCheckoutResponse{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		OrderNumber: order.OrderNumber,
		OrderID:     order.ID,
	}, nil
}

// CreateWalletOrder creates a pending order and a wallet provider order.
func (s *checkoutService) CreateWalletOrder(ctx context.Context, req *model.CheckoutRequest) (resp *model.WalletOrderResponse, err error) {
	defer func() { middleware.RecordOrderOperation("create_wallet", err == nil) }()

	if req != nil && len(req.Items) > 0 {
		snapshot, jerr := json.Marshal(req.Items)
		if jerr != nil {
			return nil, fmt.Errorf("failed to encode cart snapshot: %w", jerr)
		}
		if len(snapshot) > payment.MaxMetadataBytes {
			s.logger.Warn().Int("bytes", len(snapshot)).Msg("cart snapshot too large")
			return nil, model.ErrCartTooLarge
		}
	}

	order, err := s.createPendingOrder(ctx, req, false)
	if err != nil {
		return nil, err
	}

	walletOrder, err := s.wallet.CreateOrder(ctx, payment.WalletOrderRequest{
		ReferenceID: order.ID.String(),
		Items:       payment.LineItemsFromCart(order.CartSnapshot),
		Subtotal:    order.SubtotalAmount,
		Shipping:    order.ShippingAmount,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("failed to create wallet order, order left pending")
		return nil, err
	}

	if err = s.orderRepo.AttachWalletOrder(ctx, order.ID, walletOrder.ID); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Str("wallet_order_id", walletOrder.ID).
			Msg("failed to attach wallet order")
		return nil, fmt.Errorf("failed to attach wallet order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("wallet_order_id", walletOrder.ID).
		Msg("wallet checkout started")

	return &model.WalletOrderResponse{
		ProviderOrderID: walletOrder.ID,
		OrderNumber:     order.OrderNumber,
		OrderID:         order.ID,
	}, nil
}

// CaptureWalletOrder captures a wallet order and reconciles the local order.
func (s *checkoutService) CaptureWalletOrder(ctx context.Context, providerOrderID string) (resp *model.CaptureResponse, err error) {
	defer func() { middleware.RecordOrderOperation("capture", err == nil) }()

	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "providerOrderId is required")
	}

	order, err := s.orderRepo.GetByWalletOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if order.Status.IsPaid() {
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Msg("capture repeated for paid order, returning stored result")
		return capturedResponse(order), nil
	}
	if !order.Status.IsAwaitingPayment() {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("status", string(order.Status)).
			Msg("capture rejected for closed order")
		return nil, model.ErrInvalidTransition
	}

	capture, err := s.wallet.Capture(ctx, providerOrderID)
	if err != nil {
		// A concurrent capture may have won; report its stored result.
		if current, lerr := s.orderRepo.GetByWalletOrderID(ctx, providerOrderID); lerr == nil && current != nil && current.Status.IsPaid() {
			return capturedResponse(current), nil
		}
		// An earlier attempt may have captured without reconciling.
		recovered := s.providerCapture(ctx, providerOrderID)
		if recovered == nil {
			return nil, err
		}
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("capture_id", recovered.ID).
			Msg("provider order already captured, reconciling stored capture")
		capture = recovered
	}

	result, err := s.reconciler.Reconcile(ctx, order.ID, PaymentConfirmation{
		Provider:  model.PaymentProviderWallet,
		CaptureID: &capture.ID,
	})
	if errors.Is(err, model.ErrAlreadyReconciled) {
		current, lerr := s.orderRepo.GetByWalletOrderID(ctx, providerOrderID)
		if lerr != nil {
			return nil, fmt.Errorf("failed to load reconciled order: %w", lerr)
		}
		if current == nil {
			return nil, model.ErrOrderNotFound
		}
		if current.Status.IsPaid() {
			return capturedResponse(current), nil
		}
		err = model.ErrPaidAfterCancel
	}
	if errors.Is(err, model.ErrPaidAfterCancel) {
		status := model.OrderStatusCancelled
		if current, lerr := s.orderRepo.GetByWalletOrderID(ctx, providerOrderID); lerr == nil && current != nil {
			status = current.Status
		}
		return &model.CaptureResponse{
			Success:     false,
			CaptureID:   capture.ID,
			OrderNumber: order.OrderNumber,
			Status:      status,
			Message:     MessagePaidAfterCancel,
		}, nil
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Str("capture_id", capture.ID).
			Msg("payment captured but reconciliation failed")
		return nil, err
	}

	resp = capturedResponse(result.Order)
	resp.CaptureID = capture.ID
	if result.NotificationErr != nil {
		resp.Success = false
		resp.Message = MessageEmailFailed
	}

	return resp, nil
}

// HandleHostedWebhook verifies and applies a hosted provider event.
func (s *checkoutService) HandleHostedWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected hosted webhook")
		return err
	}

	if !event.IsPaidCompletion() {
		s.logger.Debug().
			Str("event_id", event.ID).
			Str("type", event.Type).
			Msg("ignoring hosted webhook event")
		return nil
	}

	session := event.Data.Object
	order, err := s.orderRepo.GetByCheckoutSessionID(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		// The webhook can arrive before the session id is attached.
		id, perr := uuid.Parse(session.Metadata["order_id"])
		if perr != nil {
			s.logger.Warn().Str("session_id", session.ID).Msg("webhook for unknown session")
			return model.ErrOrderNotFound
		}
		order, _, err = s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}
		if order == nil {
			return model.ErrOrderNotFound
		}
	}

	_, err = s.reconciler.Reconcile(ctx, order.ID, PaymentConfirmation{Provider: model.PaymentProviderHosted})
	if errors.Is(err, model.ErrAlreadyReconciled) {
		s.logger.Info().
			Str("event_id", event.ID).
			Str("order_number", order.OrderNumber).
			Msg("duplicate hosted webhook ignored")
		return nil
	}
	if errors.Is(err, model.ErrPaidAfterCancel) {
		s.logger.Error().
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Str("order_number", order.OrderNumber).
			Msg("hosted payment completed for order that is no longer payable")
	}
	return err
}

// providerCapture returns the provider's capture of an order that was settled
// on its side, or nil when the order is not captured or cannot be read.
func (s *checkoutService) providerCapture(ctx context.Context, providerOrderID string) *payment.Capture {
	remote, err := s.wallet.GetOrder(ctx, providerOrderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("wallet_order_id", providerOrderID).Msg("failed to read provider order")
		return nil
	}
	if !remote.IsCaptured() {
		return nil
	}
	return &payment.Capture{ID: remote.CaptureID, OrderID: remote.ID, Status: remote.Status}
}

// createPendingOrder validates req, prices it and persists a pending order in
// one transaction. Line items are inserted too when withItems is set.
func (s *checkoutService) createPendingOrder(ctx context.Context, req *model.CheckoutRequest, withItems bool) (*model.Order, error) {
	if err := s.validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(2)

	method := req.ShippingMethod
	if method == "" {
		method = shipping.DefaultMethod
	}

	now := s.now().UTC()
	quote, err := s.quoter.Quote(shipping.QuoteRequest{
		Method:      method,
		Country:     req.ShippingAddress.Country,
		CartTotal:   subtotal,
		WeightGrams: req.WeightGrams,
	}, now)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("method", method).
			Str("country", req.ShippingAddress.Country).
			Msg("shipping quote rejected")
		return nil, err
	}

	billing := *req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	tax := decimal.Zero
	discount := decimal.Zero
	order := &model.Order{
		ID:              uuid.New(),
		CustomerEmail:   strings.TrimSpace(req.ShippingAddress.Email),
		CustomerName:    req.ShippingAddress.Name,
		AccountID:       req.AccountID,
		ShippingAddress: *req.ShippingAddress,
		BillingAddress:  billing,
		CartSnapshot:    req.Items,
		SubtotalAmount:  subtotal,
		ShippingAmount:  quote.Cost,
		TaxAmount:       tax,
		DiscountAmount:  discount,
		TotalAmount:     subtotal.Add(quote.Cost).Add(tax).Sub(discount),
		ShippingMethod:  quote.Method,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order.OrderNumber, err = s.orderRepo.NextOrderNumber(ctx, tx, s.opts.NumberPrefix, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if withItems {
		items := model.NewOrderItems(order.ID, req.Items, now)
		if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
			return nil, fmt.Errorf("failed to create order items: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", order.TotalAmount.StringFixed(2)).
		Bool("guest", order.AccountID == nil).
		Msg("pending order created")

	return order, nil
}

// validateCheckoutRequest rejects requests before anything is persisted.
func (s *checkoutService) validateCheckoutRequest(req *model.CheckoutRequest) error {
	if req == nil || len(req.Items) == 0 {
		return model.ErrEmptyCart
	}

	if !req.ShippingAddress.IsComplete() {
		return model.ErrIncompleteAddress
	}

	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return model.NewDomainError(model.ErrCodeMissingField, fmt.Sprintf("item %d: productId is required", i))
		}

		if item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return model.ErrInvalidQuantity
		}

		if item.Price.IsNegative() {
			s.logger.Warn().
				Int("item_index", i).
				Str("product_id", item.ProductID).
				Msg("invalid price")
			return model.ErrInvalidPrice
		}
	}

	return nil
}

func capturedResponse(order *model.Order) *model.CaptureResponse {
	resp := &model.CaptureResponse{
		Success:     true,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	}
	if order.WalletCaptureID != nil {
		resp.CaptureID = *order.WalletCaptureID
	}
	return resp
}
