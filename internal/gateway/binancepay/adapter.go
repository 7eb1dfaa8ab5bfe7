package binancepay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/paybridge/paybridge/internal/currency"
	"github.com/paybridge/paybridge/internal/domain"
)

// Adapter implements domain.Gateway for Binance Pay. Binance Pay settles in
// USDT, so fiat order amounts are converted before the checkout session is
// created and the conversion is recorded on the order.
type Adapter struct {
	client    *client
	converter *currency.Converter
	baseURL   string
}

// NewAdapter creates a Binance Pay adapter.
func NewAdapter(apiBaseURL, apiKey, secretKey, baseURL string, converter *currency.Converter) (*Adapter, error) {
	if apiKey == "" || secretKey == "" {
		return nil, domain.NewPaymentError(domain.ErrNotConfigured,
			"Binance Pay credentials not configured", "BINANCE_CREDENTIALS_MISSING")
	}
	return &Adapter{
		client:    newClient(apiBaseURL, apiKey, secretKey),
		converter: converter,
		baseURL:   baseURL,
	}, nil
}

// Name returns the registry key for this gateway.
func (a *Adapter) Name() string { return "binance_pay" }

// SupportedCurrencies lists the currencies the bridge can convert to USDT.
func (a *Adapter) SupportedCurrencies() []string {
	return a.converter.Supported()
}

// SupportedCountries returns nil: Binance Pay is not country-gated.
func (a *Adapter) SupportedCountries() []string { return nil }

// Initiate converts the order amount to USDT and creates a checkout session.
func (a *Adapter) Initiate(ctx context.Context, order *domain.Order) (*domain.Checkout, error) {
	usdtAmount := a.converter.Convert(order.OriginalAmount, order.OriginalCurrency, "USDT")

	resp, err := a.client.createOrder(ctx, createOrderRequest{
		Env:             orderEnv{TerminalType: "WEB"},
		MerchantTradeNo: order.Reference,
		OrderAmount:     usdtAmount.StringFixed(2),
		Currency:        "USDT",
		Description:     fmt.Sprintf("Payment for order %s", order.Reference),
		ReturnURL:       fmt.Sprintf("%s/api/callback/binance_pay/success/%s", a.baseURL, order.ID),
		CancelURL:       fmt.Sprintf("%s/api/callback/binance_pay/cancel/%s", a.baseURL, order.ID),
		WebhookURL:      fmt.Sprintf("%s/api/webhook/binance_pay", a.baseURL),
	})
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create Binance Pay order: "+err.Error(), "BINANCE_ORDER_ERROR")
	}

	return &domain.Checkout{
		RedirectURL:          resp.CheckoutURL,
		GatewayTransactionID: resp.PrepayID,
		ConvertedAmount:      &usdtAmount,
		ConvertedCurrency:    "USDT",
	}, nil
}

// MapStatus maps a Binance Pay order or webhook status onto a canonical
// outcome. Unrecognized statuses fail closed.
func (a *Adapter) MapStatus(nativeStatus string) domain.Outcome {
	switch strings.ToUpper(nativeStatus) {
	case "PAID", "PAY_SUCCESS":
		return domain.OutcomeCompleted
	case "INITIAL", "PENDING", "REFUNDING":
		return domain.OutcomePending
	case "CANCELED", "CANCELLED", "EXPIRED", "PAY_CLOSED":
		return domain.OutcomeCancelled
	case "ERROR":
		return domain.OutcomeFailed
	default:
		log.Printf("Warning: unrecognized Binance Pay status %q, treating as failed", nativeStatus)
		return domain.OutcomeFailed
	}
}

// webhookNotification is the envelope Binance Pay posts to the webhook URL.
// The data field arrives either as an object or as a JSON-encoded string.
type webhookNotification struct {
	BizType   string          `json:"bizType"`
	BizStatus string          `json:"bizStatus"`
	Data      json.RawMessage `json:"data"`
}

type webhookData struct {
	MerchantTradeNo string `json:"merchantTradeNo"`
	PrepayID        string `json:"prepayId"`
}

// ParseWebhook normalizes a PAY notification, keyed by prepay id when
// present and by merchant reference otherwise.
func (a *Adapter) ParseWebhook(_ context.Context, body []byte) (*domain.WebhookResult, error) {
	var notification webhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"malformed Binance Pay webhook body", "BINANCE_WEBHOOK_ERROR")
	}

	if notification.BizType != "PAY" {
		log.Printf("Ignoring Binance Pay webhook bizType %q", notification.BizType)
		return nil, domain.ErrWebhookIgnored
	}

	data, err := decodeWebhookData(notification.Data)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"malformed Binance Pay webhook data", "BINANCE_WEBHOOK_ERROR")
	}

	return &domain.WebhookResult{
		GatewayTransactionID: data.PrepayID,
		Reference:            data.MerchantTradeNo,
		NativeStatus:         notification.BizStatus,
	}, nil
}

func decodeWebhookData(raw json.RawMessage) (*webhookData, error) {
	var data webhookData
	if err := json.Unmarshal(raw, &data); err == nil {
		return &data, nil
	}
	// Fall back to the string-encoded form.
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &data); err != nil {
		return nil, err
	}
	return &data, nil
}
