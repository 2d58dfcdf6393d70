package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// httpSender posts messages to a transactional-email REST API.
type httpSender struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPSender creates a sender for POST {baseURL}/emails.
func NewHTTPSender(baseURL, apiKey string, timeout time.Duration) Sender {
	return &httpSender{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Send delivers msg. Any non-2xx response is an error.
func (s *httpSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach email API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}

// logSender logs messages instead of sending them. It is used when email is disabled.
type logSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger zerolog.Logger) Sender {
	return &logSender{logger: logger.With().Str("component", "notify-noop").Logger()}
}

// Send logs msg and reports success.
func (s *logSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email disabled, message not sent")
	return nil
}
