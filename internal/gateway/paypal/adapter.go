// Package paypal implements the Gateway interface on top of the gopay PayPal
// client. PayPal uses a two-step flow: the customer approves the order at the
// redirect target, then the bridge captures it, so this adapter also
// implements the Capturer capability.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/paypal"

	"github.com/paybridge/paybridge/internal/domain"
)

// supportedCurrencies is the subset of PayPal settlement currencies the
// merchant platform quotes orders in.
var supportedCurrencies = []string{
	"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "ARS", "MXN", "CLP", "COP",
}

// Adapter implements domain.Gateway and domain.Capturer for PayPal.
type Adapter struct {
	client  *paypal.Client
	baseURL string
}

// NewAdapter creates a PayPal adapter. mode selects the live environment
// when set to "live"; anything else targets the sandbox.
func NewAdapter(clientID, secret, mode, baseURL string) (*Adapter, error) {
	if clientID == "" || secret == "" {
		return nil, domain.NewPaymentError(domain.ErrNotConfigured,
			"PayPal credentials not configured", "PAYPAL_CREDENTIALS_MISSING")
	}
	client, err := paypal.NewClient(clientID, secret, mode == "live")
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create PayPal client: "+err.Error(), "PAYPAL_CLIENT_ERROR")
	}
	return &Adapter{client: client, baseURL: baseURL}, nil
}

// Name returns the registry key for this gateway.
func (a *Adapter) Name() string { return "paypal" }

// SupportedCurrencies lists the currencies PayPal can settle for the bridge.
func (a *Adapter) SupportedCurrencies() []string { return supportedCurrencies }

// SupportedCountries returns nil: PayPal is not country-gated.
func (a *Adapter) SupportedCountries() []string { return nil }

// Initiate creates a PayPal order and returns its approve link.
func (a *Adapter) Initiate(ctx context.Context, order *domain.Order) (*domain.Checkout, error) {
	units := []*paypal.PurchaseUnit{
		{
			ReferenceId: order.Reference,
			Amount: &paypal.Amount{
				CurrencyCode: strings.ToUpper(order.OriginalCurrency),
				Value:        order.OriginalAmount.StringFixed(2),
			},
			Description: fmt.Sprintf("Payment for order %s", order.Reference),
		},
	}

	bm := make(gopay.BodyMap)
	bm.Set("intent", "CAPTURE")
	bm.Set("purchase_units", units)
	bm.SetBodyMap("application_context", func(b gopay.BodyMap) {
		b.Set("brand_name", order.ShopName)
		b.Set("return_url", fmt.Sprintf("%s/api/callback/paypal/success/%s", a.baseURL, order.ID))
		b.Set("cancel_url", fmt.Sprintf("%s/api/callback/paypal/cancel/%s", a.baseURL, order.ID))
	})

	rsp, err := a.client.CreateOrder(ctx, bm)
	if err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to create PayPal order: "+err.Error(), "PAYPAL_ORDER_ERROR")
	}
	if rsp.Code != paypal.Success {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"PayPal order creation rejected: "+rsp.Error, "PAYPAL_ORDER_ERROR")
	}

	approveURL := ""
	for _, link := range rsp.Response.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"PayPal order response carried no approve link", "PAYPAL_ORDER_ERROR")
	}

	return &domain.Checkout{
		RedirectURL:          approveURL,
		GatewayTransactionID: rsp.Response.Id,
	}, nil
}

// MapStatus maps a PayPal order status onto a canonical outcome.
// Unrecognized statuses fail closed.
func (a *Adapter) MapStatus(nativeStatus string) domain.Outcome {
	switch strings.ToUpper(nativeStatus) {
	case "COMPLETED":
		return domain.OutcomeCompleted
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED", "PENDING":
		return domain.OutcomePending
	case "VOIDED", "CANCELLED":
		return domain.OutcomeCancelled
	case "DECLINED", "FAILED":
		return domain.OutcomeFailed
	default:
		log.Printf("Warning: unrecognized PayPal status %q, treating as failed", nativeStatus)
		return domain.OutcomeFailed
	}
}

// Capture captures an approved PayPal order and returns the final outcome.
// An order that was already captured resolves by checking its detail;
// an unapproved order resolves to cancelled.
func (a *Adapter) Capture(ctx context.Context, gatewayTransactionID string) (domain.Outcome, error) {
	captureRsp, err := a.client.OrderCapture(ctx, gatewayTransactionID, nil)
	if err != nil {
		return domain.OutcomeFailed, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to capture PayPal order: "+err.Error(), "PAYPAL_CAPTURE_ERROR")
	}
	if captureRsp.Code != paypal.Success {
		if len(captureRsp.ErrorResponse.Details) > 0 {
			detail := captureRsp.ErrorResponse.Details[0]
			switch detail.Issue {
			case "ORDER_ALREADY_CAPTURED":
				// Fall through to the detail check below.
			case "ORDER_NOT_APPROVED":
				return domain.OutcomeCancelled, nil
			default:
				return domain.OutcomeFailed, domain.NewPaymentError(domain.ErrGatewayError,
					"PayPal capture rejected: "+detail.Description, "PAYPAL_CAPTURE_ERROR")
			}
		} else {
			return domain.OutcomeFailed, domain.NewPaymentError(domain.ErrGatewayError,
				"PayPal capture rejected", "PAYPAL_CAPTURE_ERROR")
		}
	}

	detailRsp, err := a.client.OrderDetail(ctx, gatewayTransactionID, nil)
	if err != nil {
		return domain.OutcomeFailed, domain.NewPaymentError(domain.ErrGatewayError,
			"failed to fetch PayPal order detail: "+err.Error(), "PAYPAL_DETAIL_ERROR")
	}
	if detailRsp.Code != paypal.Success {
		return domain.OutcomeFailed, domain.NewPaymentError(domain.ErrGatewayError,
			"PayPal order detail rejected", "PAYPAL_DETAIL_ERROR")
	}

	return a.MapStatus(detailRsp.Response.Status), nil
}

// webhookEvent is the subset of a PayPal webhook body the bridge acts on.
type webhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"resource"`
}

// ParseWebhook normalizes checkout-order events. Capture events and other
// event types are ignored; the capture flow is driven from the approved
// order itself.
func (a *Adapter) ParseWebhook(_ context.Context, body []byte) (*domain.WebhookResult, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayError,
			"malformed PayPal webhook body", "PAYPAL_WEBHOOK_ERROR")
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		return &domain.WebhookResult{
			GatewayTransactionID: event.Resource.ID,
			NativeStatus:         "APPROVED",
		}, nil
	case "CHECKOUT.ORDER.VOIDED":
		return &domain.WebhookResult{
			GatewayTransactionID: event.Resource.ID,
			NativeStatus:         "VOIDED",
		}, nil
	default:
		log.Printf("Ignoring PayPal webhook event %q", event.EventType)
		return nil, domain.ErrWebhookIgnored
	}
}
