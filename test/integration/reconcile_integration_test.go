package integration

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"atelier-checkout/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentWebhooks_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	env := setupTestServer(t, testDB)

	CleanupDB(t, testDB.Pool)
	SeedCatalog(t, testDB.Pool)

	w := env.do(t, http.MethodPost, "/api/checkout/hosted", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created model.HostedCheckoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	const deliveries = 8
	codes := make([]int, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.postWebhook(t, created.SessionID, created.OrderID.String()).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "delivery %d", i)
	}

	order := env.getOrder(t, created.OrderID.String())
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.Len(t, order.Items, 2)

	assert.Len(t, env.variantStock(t, "V-SHIRT-M-BLK").Movements, 1)
	assert.Equal(t, 4, env.productStock(t, "P-TOTE"))
	assert.Equal(t, 1, env.email.CountFor(created.OrderNumber))
}

func TestOrderNumbers_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	env := setupTestServer(t, testDB)

	CleanupDB(t, testDB.Pool)

	const checkouts = 10
	numbers := make(chan string, checkouts)

	var wg sync.WaitGroup
	for i := 0; i < checkouts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/api/checkout/wallet", checkoutBody(), nil)
			if w.Code != http.StatusOK {
				t.Errorf("unexpected status %d: %s", w.Code, w.Body.String())
				return
			}
			var resp model.WalletOrderResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Errorf("failed to decode response: %v", err)
				return
			}
			numbers <- resp.OrderNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, checkouts)
}
