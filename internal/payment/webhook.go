package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"atelier-checkout/internal/model"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on hosted webhooks.
	SignatureHeader = "Checkout-Signature"

	// DefaultTolerance is the maximum age of a signed webhook.
	DefaultTolerance = 5 * time.Minute

	EventCheckoutCompleted = "checkout.session.completed"
	PaymentStatusPaid      = "paid"
)

// WebhookEvent is a hosted provider event.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the session object carried by checkout events.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// IsPaidCompletion reports whether the event confirms a paid session.
func (e *WebhookEvent) IsPaidCompletion() bool {
	return e.Type == EventCheckoutCompleted && e.Data.Object.PaymentStatus == PaymentStatusPaid
}

// WebhookVerifier checks hosted webhook signatures.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier for secret. A zero tolerance uses DefaultTolerance.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify validates header against payload and returns the parsed event.
func (v *WebhookVerifier) Verify(payload []byte, header string) (*WebhookEvent, error) {
	timestamp, signatures := parseSignatureHeader(header)
	if timestamp == "" || len(signatures) == 0 {
		return nil, model.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, model.ErrInvalidSignature
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age > v.tolerance || age < -v.tolerance {
		return nil, model.ErrInvalidSignature
	}

	expected := computeSignature(v.secret, timestamp, payload)
	valid := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err == nil && hmac.Equal(decoded, expected) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, model.ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return &event, nil
}

// SignPayload builds a signature header for payload at ts.
func SignPayload(secret string, payload []byte, ts time.Time) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(computeSignature([]byte(secret), timestamp, payload)))
}

func computeSignature(secret []byte, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (string, []string) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	return timestamp, signatures
}
