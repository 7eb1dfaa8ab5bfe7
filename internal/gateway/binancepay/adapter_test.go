package binancepay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/internal/currency"
	"github.com/paybridge/paybridge/internal/domain"
)

func testAdapter() *Adapter {
	return &Adapter{converter: currency.NewConverter()}
}

func TestNewAdapterRequiresCredentials(t *testing.T) {
	_, err := NewAdapter("https://bpay.binanceapi.com", "", "", "https://pay.example.com", currency.NewConverter())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestMapStatusIsTotal(t *testing.T) {
	a := testAdapter()

	cases := map[string]domain.Outcome{
		"PAID":        domain.OutcomeCompleted,
		"PAY_SUCCESS": domain.OutcomeCompleted,
		"INITIAL":     domain.OutcomePending,
		"PENDING":     domain.OutcomePending,
		"REFUNDING":   domain.OutcomePending,
		"CANCELED":    domain.OutcomeCancelled,
		"EXPIRED":     domain.OutcomeCancelled,
		"PAY_CLOSED":  domain.OutcomeCancelled,
		"ERROR":       domain.OutcomeFailed,
	}
	for native, want := range cases {
		assert.Equal(t, want, a.MapStatus(native), "status %s", native)
	}
}

func TestMapStatusFailsClosed(t *testing.T) {
	assert.Equal(t, domain.OutcomeFailed, testAdapter().MapStatus("SOMETHING_ELSE"))
}

func TestParseWebhookObjectData(t *testing.T) {
	body := []byte(`{"bizType":"PAY","bizStatus":"PAY_SUCCESS","data":{"merchantTradeNo":"ORDER-1","prepayId":"bp-123"}}`)

	result, err := testAdapter().ParseWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "bp-123", result.GatewayTransactionID)
	assert.Equal(t, "ORDER-1", result.Reference)
	assert.Equal(t, "PAY_SUCCESS", result.NativeStatus)
}

func TestParseWebhookStringData(t *testing.T) {
	body := []byte(`{"bizType":"PAY","bizStatus":"PAY_CLOSED","data":"{\"merchantTradeNo\":\"ORDER-2\",\"prepayId\":\"bp-456\"}"}`)

	result, err := testAdapter().ParseWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "bp-456", result.GatewayTransactionID)
	assert.Equal(t, "PAY_CLOSED", result.NativeStatus)
}

func TestParseWebhookIgnoresOtherBizTypes(t *testing.T) {
	body := []byte(`{"bizType":"PAY_REFUND","bizStatus":"REFUND_SUCCESS","data":{}}`)

	_, err := testAdapter().ParseWebhook(context.Background(), body)
	assert.ErrorIs(t, err, domain.ErrWebhookIgnored)
}

func TestSignPayloadShape(t *testing.T) {
	c := newClient("https://bpay.binanceapi.com", "cert-sn", "secret")
	sig := c.sign("1700000000000", "nonce", `{"a":1}`)

	// HMAC-SHA512 uppercase hex: 128 hex chars.
	assert.Len(t, sig, 128)
	assert.Equal(t, sig, c.sign("1700000000000", "nonce", `{"a":1}`))
	assert.NotEqual(t, sig, c.sign("1700000000001", "nonce", `{"a":1}`))
}
