// Package order implements the order lifecycle: the state machine between a
// merchant platform checkout and its final, delivered outcome.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paybridge/paybridge/internal/domain"
	"github.com/paybridge/paybridge/internal/gateway"
	"github.com/paybridge/paybridge/internal/notify"
	"github.com/paybridge/paybridge/internal/signature"
)

// requiredParams are the fields an inbound signed request must carry.
var requiredParams = []string{
	"x_reference",
	"x_amount",
	"x_currency",
	"x_shop_name",
	"x_url_complete",
	"x_url_cancel",
	"x_url_callback",
	"x_account_id",
	"x_signature",
}

// Service orchestrates order creation, gateway selection and resolution.
type Service struct {
	store     domain.OrderStore
	registry  *gateway.Registry
	verifier  *signature.Signer
	deliverer notify.Deliverer
}

// NewService creates the lifecycle service. verifier holds the inbound
// request secret; deliverer receives one callback job per settled outcome.
func NewService(store domain.OrderStore, registry *gateway.Registry, verifier *signature.Signer, deliverer notify.Deliverer) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		verifier:  verifier,
		deliverer: deliverer,
	}
}

// Initiate authenticates an inbound signed request and creates the order, or
// returns the existing order for the same merchant reference. A reference
// that already left the pending state is rejected: re-submission never
// re-creates and never re-enters checkout.
func (s *Service) Initiate(ctx context.Context, params signature.Params) (*domain.Order, error) {
	for _, field := range requiredParams {
		if params[field] == "" {
			return nil, domain.NewPaymentError(domain.ErrMissingField,
				fmt.Sprintf("%s is required", field), "MISSING_FIELD")
		}
	}

	if !s.verifier.Verify(params) {
		log.Printf("Warning: invalid signature on payment request, reference=%s account=%s",
			params["x_reference"], params["x_account_id"])
		return nil, domain.NewPaymentError(domain.ErrInvalidSignature,
			"signature verification failed", "INVALID_SIGNATURE")
	}

	amount, err := decimal.NewFromString(params["x_amount"])
	if err != nil || amount.IsNegative() || amount.IsZero() {
		return nil, domain.NewPaymentError(domain.ErrInvalidRequest,
			"x_amount is not a valid amount", "INVALID_AMOUNT")
	}

	order := &domain.Order{
		ID:               uuid.New().String(),
		Reference:        params["x_reference"],
		AccountID:        params["x_account_id"],
		ShopName:         params["x_shop_name"],
		OriginalAmount:   amount,
		OriginalCurrency: strings.ToUpper(params["x_currency"]),
		CompleteURL:      params["x_url_complete"],
		CancelURL:        params["x_url_cancel"],
		CallbackURL:      params["x_url_callback"],
		Status:           domain.StatusPending,
	}

	stored, created, err := s.store.CreateOrFind(ctx, order)
	if err != nil {
		return nil, err
	}

	if !created {
		if stored.Status != domain.StatusPending {
			return stored, domain.NewPaymentError(domain.ErrAlreadyProcessed,
				fmt.Sprintf("order %s is already %s", stored.Reference, stored.Status),
				"ALREADY_PROCESSED")
		}
		log.Printf("Order already exists, returning for gateway selection, reference=%s id=%s",
			stored.Reference, stored.ID)
		return stored, nil
	}

	if err := s.appendEvent(ctx, stored.ID, domain.EventPaymentInitiated, "merchant",
		auditParams(params), map[string]any{"order_id": stored.ID, "status": stored.Status}); err != nil {
		return nil, err
	}

	log.Printf("Order created, id=%s reference=%s amount=%s %s",
		stored.ID, stored.Reference, stored.OriginalAmount, stored.OriginalCurrency)
	return stored, nil
}

// SelectGateway starts a checkout session with the chosen gateway and moves
// the order from pending to processing. The adapter call happens before the
// transition: initiation is side-effect free for the lifecycle, so a failed
// gateway call leaves the order selectable again.
func (s *Service) SelectGateway(ctx context.Context, orderID, gatewayName, country string) (*domain.Order, string, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if order.Status != domain.StatusPending {
		return order, "", domain.NewPaymentError(domain.ErrAlreadyProcessed,
			fmt.Sprintf("order %s is already %s", order.Reference, order.Status),
			"ALREADY_PROCESSED")
	}

	g, err := s.registry.Resolve(gatewayName, country)
	if err != nil {
		return order, "", err
	}
	if err := gateway.CheckEligibility(g, order, country); err != nil {
		return order, "", err
	}

	checkout, err := g.Initiate(ctx, order)
	if err != nil {
		log.Printf("Gateway initiation failed, order=%s gateway=%s: %v", order.Reference, g.Name(), err)
		return order, "", err
	}

	order, err = s.store.TransitionStatus(ctx, order.ID, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return order, "", domain.NewPaymentError(domain.ErrAlreadyProcessed,
				fmt.Sprintf("order %s was processed concurrently", order.Reference),
				"ALREADY_PROCESSED")
		}
		return nil, "", err
	}
	if err := s.store.BindGateway(ctx, order.ID, g.Name(), checkout.GatewayTransactionID); err != nil {
		return nil, "", err
	}
	order.Gateway = g.Name()
	order.GatewayTransactionID = checkout.GatewayTransactionID

	if checkout.ConvertedAmount != nil {
		if err := s.store.SetConversion(ctx, order.ID, *checkout.ConvertedAmount, checkout.ConvertedCurrency); err != nil {
			return nil, "", err
		}
		order.ConvertedAmount = checkout.ConvertedAmount
		order.ConvertedCurrency = checkout.ConvertedCurrency
	}

	if err := s.appendEvent(ctx, order.ID, domain.EventPaymentProcessing, g.Name(),
		map[string]any{"gateway": gatewayName, "country": country},
		map[string]any{
			"gateway_transaction_id": checkout.GatewayTransactionID,
			"redirect_url":           checkout.RedirectURL,
		}); err != nil {
		return nil, "", err
	}

	log.Printf("Payment processing initiated, order=%s gateway=%s tx=%s",
		order.Reference, g.Name(), checkout.GatewayTransactionID)
	return order, checkout.RedirectURL, nil
}

// Resolve settles a processing order into the outcome reported by its
// gateway and schedules the callback delivery. Resolving an already-terminal
// order to the same outcome is a no-op that still appends the audit event;
// resolving it to a different outcome is rejected, never overwritten.
func (s *Service) Resolve(ctx context.Context, orderID string, outcome domain.Outcome, message string, requestData any) (*domain.Order, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, order, outcome, message, requestData)
}

func (s *Service) resolve(ctx context.Context, order *domain.Order, outcome domain.Outcome, message string, requestData any) (*domain.Order, error) {
	target := outcome.Status()

	// A pending outcome is not a transition: the order stays processing,
	// but the merchant platform still hears about it.
	if !target.Terminal() {
		if err := s.appendEvent(ctx, order.ID, outcome.EventType(), order.Gateway,
			requestData, map[string]any{"status": outcome}); err != nil {
			return nil, err
		}
		s.enqueue(order.ID, outcome, message)
		return order, nil
	}

	if order.Status.Terminal() {
		if order.Status == target {
			// Idempotent repeat: log the event, do not re-deliver.
			if err := s.appendEvent(ctx, order.ID, outcome.EventType(), order.Gateway,
				requestData, map[string]any{"status": outcome, "idempotent": true}); err != nil {
				return nil, err
			}
			return order, nil
		}
		log.Printf("Warning: conflicting outcome for order %s: recorded=%s reported=%s",
			order.Reference, order.Status, target)
		return order, domain.NewPaymentError(domain.ErrOutcomeConflict,
			fmt.Sprintf("order %s is already %s, cannot resolve to %s", order.Reference, order.Status, target),
			"OUTCOME_CONFLICT")
	}

	updated, err := s.store.TransitionStatus(ctx, order.ID, domain.StatusProcessing, target)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) && updated != nil && updated.Status.Terminal() {
			// Lost a race with a concurrent resolver; re-evaluate against
			// the fresh status so both triggers collapse to one outcome.
			return s.resolve(ctx, updated, outcome, message, requestData)
		}
		return nil, err
	}

	if err := s.appendEvent(ctx, updated.ID, outcome.EventType(), updated.Gateway,
		requestData, map[string]any{"status": outcome}); err != nil {
		return nil, err
	}

	s.enqueue(updated.ID, outcome, message)
	log.Printf("Order resolved, reference=%s outcome=%s", updated.Reference, outcome)
	return updated, nil
}

// ResolveWebhook normalizes a server-side gateway notification and resolves
// the order it points at. Gateways that require an explicit capture step get
// it here, once the notification reports customer approval.
func (s *Service) ResolveWebhook(ctx context.Context, gatewayName string, body []byte) (*domain.Order, error) {
	g, err := s.registry.Resolve(gatewayName, "")
	if err != nil {
		return nil, err
	}
	parser, ok := g.(domain.WebhookParser)
	if !ok {
		log.Printf("Gateway %s does not accept webhooks, ignoring", g.Name())
		return nil, domain.ErrWebhookIgnored
	}

	result, err := parser.ParseWebhook(ctx, body)
	if err != nil {
		return nil, err
	}

	order, err := s.findWebhookOrder(ctx, result)
	if err != nil {
		return nil, err
	}

	outcome := g.MapStatus(result.NativeStatus)
	if outcome == domain.OutcomePending && order.Status == domain.StatusProcessing {
		if capturer, ok := g.(domain.Capturer); ok {
			captured, err := capturer.Capture(ctx, order.GatewayTransactionID)
			if err != nil {
				log.Printf("Capture failed for order %s on %s: %v", order.Reference, g.Name(), err)
			} else {
				outcome = captured
			}
		}
	}

	message := fmt.Sprintf("Payment %s via %s webhook", outcome, g.Name())
	return s.resolve(ctx, order, outcome, message, json.RawMessage(body))
}

func (s *Service) findWebhookOrder(ctx context.Context, result *domain.WebhookResult) (*domain.Order, error) {
	if result.GatewayTransactionID != "" {
		order, err := s.store.FindByGatewayID(ctx, result.GatewayTransactionID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}
	if result.Reference != "" {
		return s.store.FindByReference(ctx, result.Reference)
	}
	return nil, domain.ErrOrderNotFound
}

// Get returns an order and its most recent events.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, []domain.TransactionEvent, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.ListEvents(ctx, orderID, 10)
	if err != nil {
		return nil, nil, err
	}
	return order, events, nil
}

func (s *Service) enqueue(orderID string, outcome domain.Outcome, message string) {
	if s.deliverer == nil {
		return
	}
	s.deliverer.Enqueue(notify.Job{OrderID: orderID, Outcome: outcome, Message: message})
}

// appendEvent writes the audit record for one transition. The event log is
// the replay mechanism operators reconcile gateway discrepancies with, so a
// write failure fails the operation.
func (s *Service) appendEvent(ctx context.Context, orderID, eventType, gatewayName string, requestData, responseData any) error {
	return s.store.AppendEvent(ctx, &domain.TransactionEvent{
		OrderID:      orderID,
		EventType:    eventType,
		Gateway:      gatewayName,
		RequestData:  marshalSnapshot(requestData),
		ResponseData: marshalSnapshot(responseData),
	})
}

func marshalSnapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// auditParams snapshots an inbound parameter set for the event log with the
// signature stripped out.
func auditParams(params signature.Params) map[string]string {
	snapshot := make(map[string]string, len(params))
	for k, v := range params {
		if k == signature.SignatureParam {
			continue
		}
		snapshot[k] = v
	}
	return snapshot
}
