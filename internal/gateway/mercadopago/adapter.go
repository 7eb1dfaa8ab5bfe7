// Package mercadopago implements the Gateway interface using the official
// Mercado Pago SDK. Mercado Pago accounts are country-scoped, so one adapter
// is registered per configured country (mercadopago_ar, mercadopago_mx, ...),
// each with its own access token and settlement currency.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/paybridge/paybridge/internal/domain"
)

// Adapter implements domain.Gateway for one Mercado Pago country account.
type Adapter struct {
	country     string // ISO 3166-1 alpha-2, upper case
	currency    string // settlement currency for this country
	accessToken string
	baseURL     string // public base URL of this service, for back URLs
}

// NewAdapter creates a Mercado Pago adapter for one country.
func NewAdapter(country, currency, accessToken, baseURL string) (*Adapter, error) {
	if accessToken == "" {
		return nil, domain.NewPaymentError(domain.ErrNotConfigured,
			fmt.Sprintf("Mercado Pago access token not configured for country %s", country),
			"MP_TOKEN_MISSING")
	}
	return &Adapter{
		country:     strings.ToUpper(country),
		currency:    strings.ToUpper(currency),
		accessToken: accessToken,
		baseURL:     baseURL,
	}, nil
}

// Name returns the country-scoped registry key, e.g. "mercadopago_ar".
func (a *Adapter) Name() string {
	return "mercadopago_" + strings.ToLower(a.country)
}

// SupportedCurrencies lists the single settlement currency of this account.
func (a *Adapter) SupportedCurrencies() []string {
	return []string{a.currency}
}

// SupportedCountries lists the single country this account operates in.
func (a *Adapter) SupportedCountries() []string {
	return []string{a.country}
}

// Initiate creates a Checkout Pro preference and returns its init point.
func (a *Adapter) Initiate(ctx context.Context, order *domain.Order) (*domain.Checkout, error) {
	cfg, err := mpconfig.New(a.accessToken)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create Mercado Pago config", "MP_CONFIG_ERROR")
	}

	client := preference.NewClient(cfg)

	amount, _ := order.OriginalAmount.Float64()
	prefRequest := preference.Request{
		Items: []preference.ItemRequest{
			{
				ID:         order.Reference,
				Title:      fmt.Sprintf("Payment for order %s", order.Reference),
				Quantity:   1,
				UnitPrice:  amount,
				CurrencyID: strings.ToUpper(order.OriginalCurrency),
			},
		},
		ExternalReference: order.Reference,
		AutoReturn:        "approved",
		BackURLs: &preference.BackURLsRequest{
			Success: fmt.Sprintf("%s/api/callback/%s/success/%s", a.baseURL, a.Name(), order.ID),
			Pending: fmt.Sprintf("%s/api/callback/%s/pending/%s", a.baseURL, a.Name(), order.ID),
			Failure: fmt.Sprintf("%s/api/callback/%s/cancel/%s", a.baseURL, a.Name(), order.ID),
		},
		NotificationURL: fmt.Sprintf("%s/api/webhook/%s", a.baseURL, a.Name()),
	}

	result, err := client.Create(ctx, prefRequest)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create preference: "+err.Error(), "MP_PREFERENCE_ERROR")
	}

	return &domain.Checkout{
		RedirectURL:          result.InitPoint,
		GatewayTransactionID: result.ID,
	}, nil
}

// MapStatus maps a Mercado Pago payment status onto a canonical outcome.
// Unrecognized statuses fail closed.
func (a *Adapter) MapStatus(nativeStatus string) domain.Outcome {
	switch nativeStatus {
	case "approved":
		return domain.OutcomeCompleted
	case "pending", "in_process", "authorized":
		return domain.OutcomePending
	case "cancelled", "refunded":
		return domain.OutcomeCancelled
	case "rejected", "charged_back":
		return domain.OutcomeFailed
	default:
		log.Printf("Warning: unrecognized Mercado Pago status %q, treating as failed", nativeStatus)
		return domain.OutcomeFailed
	}
}

// webhookNotification is the IPN body Mercado Pago sends.
type webhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseWebhook handles a payment notification by fetching the payment it
// points at. The payment's external reference is the merchant reference the
// preference was created with, so the result is keyed by reference.
func (a *Adapter) ParseWebhook(ctx context.Context, body []byte) (*domain.WebhookResult, error) {
	var notification webhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"malformed Mercado Pago webhook body", "MP_WEBHOOK_ERROR")
	}

	if notification.Type != "payment" {
		log.Printf("Ignoring Mercado Pago webhook type %q", notification.Type)
		return nil, domain.ErrWebhookIgnored
	}

	cfg, err := mpconfig.New(a.accessToken)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create Mercado Pago config", "MP_CONFIG_ERROR")
	}

	id, err := strconv.Atoi(notification.Data.ID)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"invalid Mercado Pago payment id format", "MP_WEBHOOK_ERROR")
	}

	result, err := payment.NewClient(cfg).Get(ctx, id)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to get payment info: "+err.Error(), "MP_PAYMENT_ERROR")
	}

	return &domain.WebhookResult{
		Reference:    result.ExternalReference,
		NativeStatus: result.Status,
	}, nil
}
