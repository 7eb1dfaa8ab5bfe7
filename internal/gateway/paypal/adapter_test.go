package paypal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/internal/domain"
)

func TestNewAdapterRequiresCredentials(t *testing.T) {
	_, err := NewAdapter("", "", "sandbox", "https://pay.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestMapStatusIsTotal(t *testing.T) {
	a := &Adapter{}

	cases := map[string]domain.Outcome{
		"COMPLETED":             domain.OutcomeCompleted,
		"CREATED":               domain.OutcomePending,
		"SAVED":                 domain.OutcomePending,
		"APPROVED":              domain.OutcomePending,
		"PAYER_ACTION_REQUIRED": domain.OutcomePending,
		"PENDING":               domain.OutcomePending,
		"VOIDED":                domain.OutcomeCancelled,
		"CANCELLED":             domain.OutcomeCancelled,
		"DECLINED":              domain.OutcomeFailed,
		"FAILED":                domain.OutcomeFailed,
	}
	for native, want := range cases {
		assert.Equal(t, want, a.MapStatus(native), "status %s", native)
	}

	// case-insensitive
	assert.Equal(t, domain.OutcomeCompleted, a.MapStatus("completed"))
}

func TestMapStatusFailsClosed(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, domain.OutcomeFailed, a.MapStatus("NEW_STATUS"))
}

func TestParseWebhookApprovedOrder(t *testing.T) {
	a := &Adapter{}
	body := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"5O190127TN364715T","status":"APPROVED"}}`)

	result, err := a.ParseWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", result.GatewayTransactionID)
	assert.Equal(t, "APPROVED", result.NativeStatus)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	a := &Adapter{}
	body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"cap-1"}}`)

	_, err := a.ParseWebhook(context.Background(), body)
	assert.ErrorIs(t, err, domain.ErrWebhookIgnored)
}
