package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tokenExpiryMargin renews the access token this long before it expires.
const tokenExpiryMargin = time.Minute

type walletMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type walletItem struct {
	Name       string      `json:"name"`
	Quantity   string      `json:"quantity"`
	UnitAmount walletMoney `json:"unit_amount"`
}

type walletAmount struct {
	walletMoney
	Breakdown struct {
		ItemTotal walletMoney `json:"item_total"`
		Shipping  walletMoney `json:"shipping"`
	} `json:"breakdown"`
}

type walletPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	Amount      walletAmount `json:"amount"`
	Items       []walletItem `json:"items"`
}

type walletOrderPayload struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []walletPurchaseUnit `json:"purchase_units"`
}

type walletLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type walletOrderResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []walletLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type walletToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// walletClient implements Wallet with OAuth client-credentials authentication.
type walletClient struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	logger       zerolog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// NewWalletClient creates a wallet provider client.
func NewWalletClient(baseURL, clientID, clientSecret string, timeout time.Duration, logger zerolog.Logger) Wallet {
	return &walletClient{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.With().Str("provider", ProviderWallet).Logger(),
		now:          time.Now,
	}
}

func walletValue(d decimal.Decimal) walletMoney {
	return walletMoney{CurrencyCode: Currency, Value: d.StringFixed(2)}
}

// CreateOrder creates a provider order referencing the local order id.
func (c *walletClient) CreateOrder(ctx context.Context, req WalletOrderRequest) (*WalletOrder, error) {
	unit := walletPurchaseUnit{
		ReferenceID: req.ReferenceID,
		Items:       make([]walletItem, len(req.Items)),
	}
	unit.Amount.walletMoney = walletValue(req.Subtotal.Add(req.Shipping))
	unit.Amount.Breakdown.ItemTotal = walletValue(req.Subtotal)
	unit.Amount.Breakdown.Shipping = walletValue(req.Shipping)
	for i, item := range req.Items {
		unit.Items[i] = walletItem{
			Name:       item.Name,
			Quantity:   strconv.Itoa(item.Quantity),
			UnitAmount: walletValue(item.UnitPrice),
		}
	}

	payload := walletOrderPayload{
		Intent:        "CAPTURE",
		PurchaseUnits: []walletPurchaseUnit{unit},
	}

	var resp walletOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &ProviderError{Provider: ProviderWallet, Message: "provider returned an empty order id"}
	}

	order := resp.toOrder()

	c.logger.Info().
		Str("wallet_order_id", order.ID).
		Str("reference_id", req.ReferenceID).
		Msg("wallet order created")

	return order, nil
}

// Capture settles an approved provider order.
func (c *walletClient) Capture(ctx context.Context, providerOrderID string) (*Capture, error) {
	var resp walletOrderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	if resp.Status != WalletStatusCompleted {
		c.logger.Warn().
			Str("wallet_order_id", providerOrderID).
			Str("status", resp.Status).
			Msg("wallet capture not completed")
		return nil, &ProviderError{Provider: ProviderWallet, Message: fmt.Sprintf("capture status %s", resp.Status)}
	}

	capture := &Capture{OrderID: resp.ID, Status: resp.Status, ID: resp.captureID()}
	if capture.ID == "" {
		return nil, &ProviderError{Provider: ProviderWallet, Message: "capture response has no capture id"}
	}

	c.logger.Info().
		Str("wallet_order_id", providerOrderID).
		Str("capture_id", capture.ID).
		Msg("wallet order captured")

	return capture, nil
}

// GetOrder fetches the provider's current view of an order.
func (c *walletClient) GetOrder(ctx context.Context, providerOrderID string) (*WalletOrder, error) {
	var resp walletOrderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(providerOrderID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &ProviderError{Provider: ProviderWallet, Message: "provider returned an empty order id"}
	}
	return resp.toOrder(), nil
}

func (r *walletOrderResponse) captureID() string {
	for _, unit := range r.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0].ID
		}
	}
	return ""
}

func (r *walletOrderResponse) toOrder() *WalletOrder {
	order := &WalletOrder{ID: r.ID, Status: r.Status, CaptureID: r.captureID()}
	for _, link := range r.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApproveURL = link.Href
			break
		}
	}
	return order
}

// do sends a request with a bearer token and decodes the JSON response. A nil
// payload sends no body.
func (c *walletClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode wallet request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build wallet request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("failed to reach wallet provider")
		return &ProviderError{Provider: ProviderWallet, Message: err.Error()}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		perr := providerErrorFromResponse(ProviderWallet, resp)
		c.logger.Error().
			Str("path", path).
			Int("status_code", perr.StatusCode).
			Str("message", perr.Message).
			Msg("wallet provider rejected request")
		return perr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: ProviderWallet, StatusCode: resp.StatusCode, Message: "invalid response body"}
	}
	return nil
}

// token returns a cached access token, fetching a new one when it is about to expire.
func (c *walletClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch wallet access token")
		return "", &ProviderError{Provider: ProviderWallet, Message: err.Error()}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", providerErrorFromResponse(ProviderWallet, resp)
	}

	var tok walletToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", &ProviderError{Provider: ProviderWallet, StatusCode: resp.StatusCode, Message: "invalid token response"}
	}

	c.accessToken = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpiryMargin)

	c.logger.Debug().Int("expires_in", tok.ExpiresIn).Msg("wallet access token refreshed")

	return c.accessToken, nil
}
