package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"atelier-checkout/internal/model"

	"github.com/shopspring/decimal"
)

const (
	// Currency is the only currency the storefront sells in.
	Currency = "EUR"

	// MaxMetadataBytes is the largest serialized cart snapshot accepted for
	// the wallet path.
	MaxMetadataBytes = 8 * 1024

	ProviderHosted = "hosted"
	ProviderWallet = "wallet"
)

// LineItem is one priced line sent to a payment provider.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	ImageURL  string
}

// LineItemsFromCart maps cart lines to provider line items.
func LineItemsFromCart(cart []model.CartItem) []LineItem {
	items := make([]LineItem, len(cart))
	for i, c := range cart {
		name := c.Name
		if label := c.VariantLabel(); label != "" {
			name = fmt.Sprintf("%s (%s)", c.Name, label)
		}
		items[i] = LineItem{
			Name:      name,
			Quantity:  c.Quantity,
			UnitPrice: c.Price,
			ImageURL:  c.ImageURL,
		}
	}
	return items
}

// SessionRequest asks the hosted provider for a payment page.
type SessionRequest struct {
	LineItems     []LineItem
	Shipping      decimal.Decimal
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session is a hosted payment page.
type Session struct {
	ID  string
	URL string
}

// HostedCheckout creates hosted payment sessions in a single call.
type HostedCheckout interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// WalletOrderRequest asks the wallet provider to create an order.
type WalletOrderRequest struct {
	ReferenceID string
	Items       []LineItem
	Subtotal    decimal.Decimal
	Shipping    decimal.Decimal
}

// WalletOrder is a provider-side order. CaptureID is set once the order has
// been captured.
type WalletOrder struct {
	ID         string
	Status     string
	ApproveURL string
	CaptureID  string
}

// WalletStatusCompleted is the provider status of a captured order.
const WalletStatusCompleted = "COMPLETED"

// IsCaptured reports whether the provider already settled the order.
func (o *WalletOrder) IsCaptured() bool {
	return o.Status == WalletStatusCompleted && o.CaptureID != ""
}

// Capture is the settled payment of a wallet order.
type Capture struct {
	ID      string
	OrderID string
	Status  string
}

// Wallet is a two-step create/capture provider.
type Wallet interface {
	CreateOrder(ctx context.Context, req WalletOrderRequest) (*WalletOrder, error)
	Capture(ctx context.Context, providerOrderID string) (*Capture, error)
	GetOrder(ctx context.Context, providerOrderID string) (*WalletOrder, error)
}

// ProviderError is returned when a payment provider rejects a request or
// cannot be reached.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s provider error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// minorUnits converts euros to cents.
func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// providerErrorFromResponse builds a ProviderError from a non-2xx response,
// using the provider's message when the body carries one.
func providerErrorFromResponse(provider string, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Message          string          `json:"message"`
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	var nested struct {
		Message string `json:"message"`
	}

	message := http.StatusText(resp.StatusCode)
	if err := json.Unmarshal(body, &payload); err == nil {
		_ = json.Unmarshal(payload.Error, &nested)
		switch {
		case nested.Message != "":
			message = nested.Message
		case payload.Message != "":
			message = payload.Message
		case payload.ErrorDescription != "":
			message = payload.ErrorDescription
		}
	}

	return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: message}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
