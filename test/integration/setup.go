package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"atelier-checkout/internal/config"
	"atelier-checkout/internal/database"
	"atelier-checkout/internal/notify"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and the schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, connStr, config.DatabaseConfig{
		MaxConnections: 10,
		MinConnections: 2,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedCatalog inserts the products and variants used by the checkout scenarios.
// The shirt variant holds a single unit so a two-unit sale hits the stock floor.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	statements := []string{
		`INSERT INTO products (id, name, price, stock_quantity) VALUES ('P-SHIRT', 'Linen Shirt', 59.90, 0)`,
		`INSERT INTO products (id, name, price, stock_quantity) VALUES ('P-TOTE', 'Canvas Tote', 25.00, 5)`,
		`INSERT INTO product_variants (id, product_id, size, color, stock_quantity) VALUES ('V-SHIRT-M-BLK', 'P-SHIRT', 'M', 'Black', 1)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("failed to seed catalog: %v", err)
		}
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"stock_movements", "order_items", "orders", "product_variants", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// FakeHosted stands in for the hosted checkout provider.
type FakeHosted struct {
	Server   *httptest.Server
	sessions atomic.Int64
}

// NewFakeHosted starts a hosted provider that hands out sequential session ids.
func NewFakeHosted(t *testing.T) *FakeHosted {
	t.Helper()

	f := &FakeHosted{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		id := fmt.Sprintf("cs_test_%d", f.sessions.Add(1))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  id,
			"url": "https://pay.example.test/" + id,
		})
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// FakeWallet stands in for the wallet provider. Captures counts capture calls.
// A provider order can be captured once; later captures are rejected the way
// the real provider does.
type FakeWallet struct {
	Server   *httptest.Server
	Captures atomic.Int64
	orders   atomic.Int64
	captured sync.Map
}

// NewFakeWallet starts a wallet provider with token, create, read and capture endpoints.
func NewFakeWallet(t *testing.T) *FakeWallet {
	t.Helper()

	f := &FakeWallet{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"wallet-token","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		id := fmt.Sprintf("WO-%d", f.orders.Add(1))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     id,
			"status": "CREATED",
			"links":  []map[string]string{{"rel": "approve", "href": "https://wallet.example.test/approve/" + id}},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/")

		if r.Method == http.MethodGet {
			if _, ok := f.captured.Load(path); ok {
				_ = json.NewEncoder(w).Encode(completedWalletOrder(path))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": path, "status": "APPROVED"})
			return
		}

		id := strings.TrimSuffix(path, "/capture")
		f.Captures.Add(1)
		if _, loaded := f.captured.LoadOrStore(id, true); loaded {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"ORDER_ALREADY_CAPTURED"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completedWalletOrder(id))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// CaptureDirect captures a provider order without going through the service,
// as if an earlier attempt had reached the provider and then failed locally.
func (f *FakeWallet) CaptureDirect(t *testing.T, providerOrderID string) {
	t.Helper()
	resp, err := http.Post(f.Server.URL+"/v2/checkout/orders/"+providerOrderID+"/capture", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func completedWalletOrder(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":     id,
		"status": "COMPLETED",
		"purchase_units": []map[string]interface{}{{
			"payments": map[string]interface{}{
				"captures": []map[string]string{{"id": "CAP-" + id, "status": "COMPLETED"}},
			},
		}},
	}
}

// FakeEmail stands in for the transactional email API.
type FakeEmail struct {
	Server *httptest.Server
	Fail   atomic.Bool

	mu       sync.Mutex
	messages []notify.Message
}

// NewFakeEmail starts an email API that records accepted messages.
func NewFakeEmail(t *testing.T) *FakeEmail {
	t.Helper()

	f := &FakeEmail{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.Fail.Load() {
			http.Error(w, "mailbox unavailable", http.StatusServiceUnavailable)
			return
		}
		var msg notify.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.messages = append(f.messages, msg)
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// CountFor returns how many accepted messages mention orderNumber in the subject.
func (f *FakeEmail) CountFor(orderNumber string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, msg := range f.messages {
		if strings.Contains(msg.Subject, orderNumber) {
			count++
		}
	}
	return count
}
