package service

import (
	"context"
	"time"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/notify"
	"atelier-checkout/internal/payment"
	"atelier-checkout/internal/repository"
	"atelier-checkout/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, prefix string, year int) (string, error) {
	args := m.Called(ctx, tx, prefix, year)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderItem), args.Error(1)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	items, _ := args.Get(1).([]model.OrderItem)
	return args.Get(0).(*model.Order), items, args.Error(2)
}

func (m *MockOrderRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByWalletOrderID(ctx context.Context, walletOrderID string) (*model.Order, error) {
	args := m.Called(ctx, walletOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	args := m.Called(ctx, id, sessionID)
	return args.Error(0)
}

func (m *MockOrderRepository) AttachWalletOrder(ctx context.Context, id uuid.UUID, walletOrderID string) error {
	args := m.Called(ctx, id, walletOrderID)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, captureID *string, paidAt time.Time) (bool, model.OrderStatus, error) {
	args := m.Called(ctx, tx, id, captureID, paidAt)
	return args.Bool(0), args.Get(1).(model.OrderStatus), args.Error(2)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string, at time.Time) error {
	args := m.Called(ctx, id, from, to, trackingNumber, at)
	return args.Error(0)
}

func (m *MockOrderRepository) ExpireUnpaid(ctx context.Context, cutoff, at time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetVariantByID(ctx context.Context, id string) (*model.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Variant), args.Error(1)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, tx pgx.Tx, order repository.OrderRef, items []model.OrderItem) model.StockReport {
	args := m.Called(ctx, tx, order, items)
	return args.Get(0).(model.StockReport)
}

func (m *MockProductRepository) ListMovements(ctx context.Context, variantID string) ([]model.StockMovement, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StockMovement), args.Error(1)
}

// MockDispatcher is a mock implementation of notify.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendOrderConfirmation(ctx context.Context, to string, c notify.OrderConfirmation) error {
	args := m.Called(ctx, to, c)
	return args.Error(0)
}

func (m *MockDispatcher) SendOrderShipped(ctx context.Context, to string, n notify.ShipmentNotice) error {
	args := m.Called(ctx, to, n)
	return args.Error(0)
}

func (m *MockDispatcher) SendOrderDelivered(ctx context.Context, to string, n notify.DeliveryNotice) error {
	args := m.Called(ctx, to, n)
	return args.Error(0)
}

func (m *MockDispatcher) SendWelcome(ctx context.Context, to string, w notify.Welcome) error {
	args := m.Called(ctx, to, w)
	return args.Error(0)
}

func (m *MockDispatcher) SendPasswordReset(ctx context.Context, to string, p notify.PasswordReset) error {
	args := m.Called(ctx, to, p)
	return args.Error(0)
}

// MockHostedCheckout is a mock implementation of payment.HostedCheckout.
type MockHostedCheckout struct {
	mock.Mock
}

func (m *MockHostedCheckout) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

// MockWallet is a mock implementation of payment.Wallet.
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) CreateOrder(ctx context.Context, req payment.WalletOrderRequest) (*payment.WalletOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WalletOrder), args.Error(1)
}

func (m *MockWallet) Capture(ctx context.Context, providerOrderID string) (*payment.Capture, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Capture), args.Error(1)
}

func (m *MockWallet) GetOrder(ctx context.Context, providerOrderID string) (*payment.WalletOrder, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WalletOrder), args.Error(1)
}

// MockReconciler is a mock implementation of Reconciler.
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, orderID uuid.UUID, conf PaymentConfirmation) (*ReconcileResult, error) {
	args := m.Called(ctx, orderID, conf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReconcileResult), args.Error(1)
}

// MockVerifier is a mock implementation of WebhookVerifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(payload []byte, header string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

// MockQuoter is a mock implementation of ShippingQuoter.
type MockQuoter struct {
	mock.Mock
}

func (m *MockQuoter) Quote(req shipping.QuoteRequest, today time.Time) (*shipping.Quote, error) {
	args := m.Called(req, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.Quote), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
