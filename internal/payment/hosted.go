package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type hostedLineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	ImageURL   string `json:"image_url,omitempty"`
}

type hostedSessionPayload struct {
	Mode           string            `json:"mode"`
	LineItems      []hostedLineItem  `json:"line_items"`
	ShippingAmount int64             `json:"shipping_amount"`
	Currency       string            `json:"currency"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	SuccessURL     string            `json:"success_url"`
	CancelURL      string            `json:"cancel_url"`
	Metadata       map[string]string `json:"metadata"`
}

type hostedSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// hostedClient implements HostedCheckout against the card processor's REST API.
type hostedClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     zerolog.Logger
}

// NewHostedClient creates a hosted checkout client.
func NewHostedClient(baseURL, secretKey string, timeout time.Duration, logger zerolog.Logger) HostedCheckout {
	return &hostedClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		logger:     logger.With().Str("provider", ProviderHosted).Logger(),
	}
}

// CreateSession requests a hosted payment page for the given lines.
func (c *hostedClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload := hostedSessionPayload{
		Mode:           "payment",
		LineItems:      make([]hostedLineItem, len(req.LineItems)),
		ShippingAmount: minorUnits(req.Shipping),
		Currency:       strings.ToLower(Currency),
		CustomerEmail:  req.CustomerEmail,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Metadata:       req.Metadata,
	}
	for i, item := range req.LineItems {
		payload.LineItems[i] = hostedLineItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitAmount: minorUnits(item.UnitPrice),
			Currency:   strings.ToLower(Currency),
			ImageURL:   item.ImageURL,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to reach hosted checkout provider")
		return nil, &ProviderError{Provider: ProviderHosted, Message: err.Error()}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		perr := providerErrorFromResponse(ProviderHosted, resp)
		c.logger.Error().
			Int("status_code", perr.StatusCode).
			Str("message", perr.Message).
			Msg("hosted checkout provider rejected session")
		return nil, perr
	}

	var session hostedSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, &ProviderError{Provider: ProviderHosted, StatusCode: resp.StatusCode, Message: "invalid session response"}
	}
	if session.ID == "" || session.URL == "" {
		return nil, &ProviderError{Provider: ProviderHosted, StatusCode: resp.StatusCode, Message: "provider returned an empty session"}
	}

	c.logger.Info().
		Str("session_id", session.ID).
		Str("order_id", req.Metadata["order_id"]).
		Msg("hosted session created")

	return &Session{ID: session.ID, URL: session.URL}, nil
}
