// Package notify delivers signed outcome callbacks to the merchant platform.
// Delivery is at-least-once with a bounded retry budget; the receiver is
// expected to deduplicate on the merchant reference.
package notify

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paybridge/paybridge/internal/domain"
	"github.com/paybridge/paybridge/internal/signature"
)

// minAttempts is the delivery budget floor. Three attempts is a requirement
// of the merchant platform, not an internal tuning choice.
const minAttempts = 3

// Config tunes the delivery loop.
type Config struct {
	// MaxAttempts is the retry budget. Values below 3 are raised to 3.
	MaxAttempts int
	// BaseDelay scales the backoff: the wait after attempt n is n*BaseDelay.
	BaseDelay time.Duration
	// Timeout bounds each individual HTTP call, not the whole sequence.
	Timeout time.Duration
}

// Notifier builds signed callback payloads and delivers them with retries,
// logging every attempt to the store.
type Notifier struct {
	store       domain.OrderStore
	signer      *signature.Signer
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewNotifier creates a notifier signing with the outbound callback secret.
func NewNotifier(store domain.OrderStore, signer *signature.Signer, cfg Config) *Notifier {
	if cfg.MaxAttempts < minAttempts {
		cfg.MaxAttempts = minAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		store:       store,
		signer:      signer,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		sleep:       time.Sleep,
	}
}

// Notify posts the signed outcome to the order's callback URL. It returns
// true once the merchant platform answers 200, false when the retry budget
// is exhausted. Exhaustion is an expected outcome, not an error: the order's
// own state stands either way, and the caller surfaces the false as an
// operational alert.
func (n *Notifier) Notify(ctx context.Context, order *domain.Order, outcome domain.Outcome, message string) bool {
	params := signature.Params{
		"x_account_id": order.AccountID,
		"x_amount":     order.OriginalAmount.String(),
		"x_currency":   order.OriginalCurrency,
		"x_reference":  order.Reference,
		"x_result":     string(outcome),
		"x_timestamp":  strconv.FormatInt(time.Now().Unix(), 10),
	}
	if message != "" {
		params["x_message"] = message
	}
	params[signature.SignatureParam] = n.signer.Sign(params)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	body := form.Encode()

	log.Printf("Delivering callback for order %s: result=%s url=%s",
		order.Reference, outcome, order.CallbackURL)

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		statusCode, responseBody, err := n.post(ctx, order.CallbackURL, body)

		if err == nil && statusCode == http.StatusOK {
			n.recordAttempt(ctx, order, attempt, &statusCode, responseBody, nil)
			n.markDelivered(ctx, order, outcome)
			log.Printf("Callback delivered for order %s on attempt %d", order.Reference, attempt)
			return true
		}

		var codePtr *int
		if err == nil {
			codePtr = &statusCode
		} else {
			responseBody = err.Error()
		}
		var nextRetry *time.Time
		if attempt < n.maxAttempts {
			at := time.Now().Add(time.Duration(attempt) * n.baseDelay)
			nextRetry = &at
		}
		n.recordAttempt(ctx, order, attempt, codePtr, responseBody, nextRetry)

		log.Printf("Callback attempt %d/%d failed for order %s: status=%v err=%v",
			attempt, n.maxAttempts, order.Reference, statusCode, err)

		if attempt < n.maxAttempts {
			n.sleep(time.Duration(attempt) * n.baseDelay)
		}
	}

	log.Printf("Error: all %d callback delivery attempts failed for order %s",
		n.maxAttempts, order.Reference)
	return false
}

// post performs one form-encoded delivery attempt.
func (n *Notifier) post(ctx context.Context, callbackURL, body string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, strings.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(respBody), nil
}

// recordAttempt appends the audit record for one delivery try. A failure to
// write the record is logged but never interrupts the delivery loop.
func (n *Notifier) recordAttempt(ctx context.Context, order *domain.Order, attempt int, statusCode *int, responseBody string, nextRetry *time.Time) {
	err := n.store.AppendCallbackAttempt(ctx, &domain.CallbackAttempt{
		OrderID:       order.ID,
		CallbackURL:   order.CallbackURL,
		AttemptNumber: attempt,
		StatusCode:    statusCode,
		ResponseBody:  responseBody,
		NextRetryAt:   nextRetry,
	})
	if err != nil {
		log.Printf("Failed to record callback attempt for order %s: %v", order.Reference, err)
	}
}

// markDelivered settles the order into the delivered outcome. The resolve
// CAS is idempotent: the gateway result normally set the terminal state
// before delivery started, so a conflict on the same status is a no-op.
func (n *Notifier) markDelivered(ctx context.Context, order *domain.Order, outcome domain.Outcome) {
	target := outcome.Status()
	if !target.Terminal() {
		return
	}
	current, err := n.store.TransitionStatus(ctx, order.ID, domain.StatusProcessing, target)
	if err != nil {
		if current != nil && current.Status == target {
			return
		}
		log.Printf("Warning: could not mark order %s as %s after delivery: %v",
			order.Reference, target, err)
	}
}
