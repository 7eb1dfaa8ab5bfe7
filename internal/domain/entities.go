// Package domain contains the core business entities and interfaces for the
// payment bridge. This is the innermost layer of the Clean Architecture - it
// has no dependencies on external frameworks or infrastructure.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
// Transitions: pending -> processing -> {completed, cancelled, failed}.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusFailed     OrderStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Outcome is the canonical result of a payment, independent of any
// gateway's native vocabulary.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomePending   Outcome = "pending"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Status maps an outcome onto the order status it settles the order into.
// A pending outcome keeps the order in processing.
func (o Outcome) Status() OrderStatus {
	switch o {
	case OutcomeCompleted:
		return StatusCompleted
	case OutcomeCancelled:
		return StatusCancelled
	case OutcomeFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// EventType returns the transaction event type logged for this outcome.
func (o Outcome) EventType() string {
	switch o {
	case OutcomeCompleted:
		return EventPaymentCompleted
	case OutcomeCancelled:
		return EventPaymentCancelled
	case OutcomeFailed:
		return EventPaymentFailed
	default:
		return EventPaymentPending
	}
}

// Order represents one checkout handed off by the merchant platform.
// Orders are never deleted; the event log is the audit trail.
type Order struct {
	ID        string `json:"id"`
	Reference string `json:"reference"` // merchant reference, unique and immutable
	AccountID string `json:"account_id"`
	ShopName  string `json:"shop_name"`

	OriginalAmount    decimal.Decimal  `json:"original_amount"`
	OriginalCurrency  string           `json:"original_currency"`
	ConvertedAmount   *decimal.Decimal `json:"converted_amount,omitempty"`
	ConvertedCurrency string           `json:"converted_currency,omitempty"`

	CompleteURL string `json:"complete_url"`
	CancelURL   string `json:"cancel_url"`
	CallbackURL string `json:"callback_url"`

	Status               OrderStatus `json:"status"`
	Gateway              string      `json:"gateway,omitempty"`
	GatewayTransactionID string      `json:"gateway_transaction_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction event types recorded on every lifecycle transition.
const (
	EventPaymentInitiated  = "payment_initiated"
	EventPaymentProcessing = "payment_processing"
	EventPaymentCompleted  = "payment_completed"
	EventPaymentCancelled  = "payment_cancelled"
	EventPaymentFailed     = "payment_failed"
	EventPaymentPending    = "payment_pending"
)

// TransactionEvent is an append-only log entry attached to an order.
// Events are never mutated after creation.
type TransactionEvent struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	EventType    string          `json:"event_type"`
	Gateway      string          `json:"gateway"`
	RequestData  json.RawMessage `json:"request_data,omitempty"`
	ResponseData json.RawMessage `json:"response_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CallbackAttempt records one delivery try of an outbound callback to the
// merchant platform. StatusCode is nil on network failure; NextRetryAt is
// nil when no further retry is scheduled.
type CallbackAttempt struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	CallbackURL   string     `json:"callback_url"`
	AttemptNumber int        `json:"attempt_number"` // 1-based
	StatusCode    *int       `json:"status_code,omitempty"`
	ResponseBody  string     `json:"response_body,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Checkout is the result of initiating a payment with a gateway adapter.
type Checkout struct {
	// RedirectURL is where the customer must be sent to complete payment.
	RedirectURL string
	// GatewayTransactionID is the gateway's identifier for this checkout.
	GatewayTransactionID string
	// ConvertedAmount/ConvertedCurrency are set when the gateway required a
	// currency conversion before accepting the order.
	ConvertedAmount   *decimal.Decimal
	ConvertedCurrency string
}
