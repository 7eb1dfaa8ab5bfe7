// Package domain contains the core business entities and interfaces for the payment bridge.
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderStore is the record-store port the core consumes. All cross-request
// state lives behind this interface; the core never touches storage directly.
type OrderStore interface {
	// CreateOrFind atomically creates the order or returns the existing one
	// for the same merchant reference. A repeated reference never produces a
	// duplicate. created reports whether a new row was written.
	CreateOrFind(ctx context.Context, order *Order) (stored *Order, created bool, err error)

	// FindByID retrieves an order by internal id.
	// Returns ErrOrderNotFound if it does not exist.
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByReference retrieves an order by merchant reference.
	FindByReference(ctx context.Context, reference string) (*Order, error)

	// FindByGatewayID retrieves an order by gateway transaction id.
	FindByGatewayID(ctx context.Context, gatewayTransactionID string) (*Order, error)

	// TransitionStatus performs a compare-and-set status update guarded by the
	// current status. On a CAS miss it returns the fresh order together with
	// ErrStatusConflict so the caller can tell an idempotent repeat from a
	// real conflict.
	TransitionStatus(ctx context.Context, id string, from, to OrderStatus) (*Order, error)

	// BindGateway records the selected gateway name and its transaction id.
	BindGateway(ctx context.Context, id, gateway, gatewayTransactionID string) error

	// SetConversion records a converted amount/currency on the order.
	SetConversion(ctx context.Context, id string, amount decimal.Decimal, currency string) error

	// AppendEvent writes one append-only transaction log entry.
	AppendEvent(ctx context.Context, event *TransactionEvent) error

	// AppendCallbackAttempt writes one append-only delivery attempt record.
	AppendCallbackAttempt(ctx context.Context, attempt *CallbackAttempt) error

	// ListEvents returns the most recent events for an order, newest first.
	ListEvents(ctx context.Context, orderID string, limit int) ([]TransactionEvent, error)
}

// Gateway is the capability interface each payment provider integration
// implements. Initiate must be side-effect free with respect to the order
// lifecycle; the caller performs the select-gateway transition only after
// Initiate succeeds.
type Gateway interface {
	// Name is the registry key for this gateway.
	Name() string

	// Initiate starts a checkout session with the provider and returns the
	// redirect target plus the gateway's transaction id.
	Initiate(ctx context.Context, order *Order) (*Checkout, error)

	// MapStatus maps a gateway-native status onto a canonical outcome. It is
	// total: an unrecognized native status maps to OutcomeFailed, never to
	// OutcomeCompleted.
	MapStatus(nativeStatus string) Outcome

	// SupportedCurrencies lists the currencies this gateway can settle.
	SupportedCurrencies() []string

	// SupportedCountries lists the countries this gateway operates in.
	// Empty means the gateway is not country-gated.
	SupportedCountries() []string
}

// Capturer is the optional capability of gateways that require an explicit
// capture step after customer approval.
type Capturer interface {
	Capture(ctx context.Context, gatewayTransactionID string) (Outcome, error)
}

// WebhookResult is a normalized server-side gateway notification. Exactly
// one of GatewayTransactionID and Reference identifies the order, depending
// on what the gateway includes in its payload.
type WebhookResult struct {
	GatewayTransactionID string
	Reference            string
	NativeStatus         string
}

// WebhookParser is the optional capability of gateways whose server-side
// notifications the bridge accepts. Returns ErrWebhookIgnored for
// notification types the bridge does not act on.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, body []byte) (*WebhookResult, error)
}
