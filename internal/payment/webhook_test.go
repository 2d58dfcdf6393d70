package payment

import (
	"testing"
	"time"

	"atelier-checkout/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

var completedEvent = []byte(`{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {"object": {"id": "cs_test_1", "payment_status": "paid", "metadata": {"order_id": "6f1c", "order_number": "ATL-2025-000001"}}}
}`)

func TestWebhookVerifier_Verify(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr bool
	}{
		{
			name:    "Valid signature",
			payload: completedEvent,
			header:  SignPayload(testWebhookSecret, completedEvent, now),
		},
		{
			name:    "Valid within tolerance",
			payload: completedEvent,
			header:  SignPayload(testWebhookSecret, completedEvent, now.Add(-4*time.Minute)),
		},
		{
			name:    "Rotated secret alongside current",
			payload: completedEvent,
			header:  SignPayload(testWebhookSecret, completedEvent, now) + ",v1=deadbeef",
		},
		{
			name:    "Expired timestamp",
			payload: completedEvent,
			header:  SignPayload(testWebhookSecret, completedEvent, now.Add(-6*time.Minute)),
			wantErr: true,
		},
		{
			name:    "Wrong secret",
			payload: completedEvent,
			header:  SignPayload("other", completedEvent, now),
			wantErr: true,
		},
		{
			name:    "Tampered payload",
			payload: append([]byte(" "), completedEvent...),
			header:  SignPayload(testWebhookSecret, completedEvent, now),
			wantErr: true,
		},
		{
			name:    "Missing header",
			payload: completedEvent,
			header:  "",
			wantErr: true,
		},
		{
			name:    "Malformed timestamp",
			payload: completedEvent,
			header:  "t=yesterday,v1=abcd",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewWebhookVerifier(testWebhookSecret, 0)
			verifier.now = func() time.Time { return now }

			event, err := verifier.Verify(tt.payload, tt.header)

			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidSignature)
				assert.Nil(t, event)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "evt_1", event.ID)
			assert.True(t, event.IsPaidCompletion())
			assert.Equal(t, "cs_test_1", event.Data.Object.ID)
			assert.Equal(t, "6f1c", event.Data.Object.Metadata["order_id"])
		})
	}
}

func TestWebhookEvent_IsPaidCompletion(t *testing.T) {
	event := &WebhookEvent{Type: EventCheckoutCompleted}
	event.Data.Object.PaymentStatus = "unpaid"
	assert.False(t, event.IsPaidCompletion())

	event.Data.Object.PaymentStatus = PaymentStatusPaid
	assert.True(t, event.IsPaidCompletion())

	event.Type = "checkout.session.expired"
	assert.False(t, event.IsPaidCompletion())
}
