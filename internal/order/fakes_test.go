package order

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/paybridge/paybridge/internal/domain"
	"github.com/paybridge/paybridge/internal/notify"
)

// memStore is an in-memory OrderStore for lifecycle tests.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	events []domain.TransactionEvent
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*domain.Order)}
}

func (m *memStore) CreateOrFind(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Reference == order.Reference {
			clone := *o
			return &clone, false, nil
		}
	}
	clone := *order
	m.orders[order.ID] = &clone
	copy := clone
	return &copy, true, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *memStore) FindByReference(_ context.Context, reference string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Reference == reference {
			clone := *o
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memStore) FindByGatewayID(_ context.Context, gatewayTransactionID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.GatewayTransactionID == gatewayTransactionID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memStore) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != from {
		clone := *o
		return &clone, domain.NewPaymentError(domain.ErrStatusConflict, "status conflict", "STATUS_CONFLICT")
	}
	o.Status = to
	clone := *o
	return &clone, nil
}

func (m *memStore) BindGateway(_ context.Context, id, gateway, gatewayTransactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Gateway = gateway
	o.GatewayTransactionID = gatewayTransactionID
	return nil
}

func (m *memStore) SetConversion(_ context.Context, id string, amount decimal.Decimal, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.ConvertedAmount = &amount
	o.ConvertedCurrency = currency
	return nil
}

func (m *memStore) AppendEvent(_ context.Context, event *domain.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) AppendCallbackAttempt(_ context.Context, _ *domain.CallbackAttempt) error {
	return nil
}

func (m *memStore) ListEvents(_ context.Context, orderID string, limit int) ([]domain.TransactionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransactionEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].OrderID == orderID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) eventTypes(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.OrderID == orderID {
			out = append(out, e.EventType)
		}
	}
	return out
}

// captureDeliverer records enqueued callback jobs instead of delivering them.
type captureDeliverer struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (c *captureDeliverer) Enqueue(job notify.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
}

func (c *captureDeliverer) enqueued() []notify.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Job, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// stubGateway is a scriptable payment gateway.
type stubGateway struct {
	name        string
	currencies  []string
	countries   []string
	checkout    *domain.Checkout
	initiateErr error
	statuses    map[string]domain.Outcome

	webhook    *domain.WebhookResult
	webhookErr error

	captureOutcome domain.Outcome
	captureErr     error
	captured       []string
}

func (s *stubGateway) Name() string { return s.name }

func (s *stubGateway) Initiate(_ context.Context, _ *domain.Order) (*domain.Checkout, error) {
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.checkout, nil
}

func (s *stubGateway) MapStatus(native string) domain.Outcome {
	if o, ok := s.statuses[native]; ok {
		return o
	}
	return domain.OutcomeFailed
}

func (s *stubGateway) SupportedCurrencies() []string { return s.currencies }
func (s *stubGateway) SupportedCountries() []string  { return s.countries }

func (s *stubGateway) ParseWebhook(_ context.Context, _ []byte) (*domain.WebhookResult, error) {
	if s.webhookErr != nil {
		return nil, s.webhookErr
	}
	return s.webhook, nil
}

// capturingGateway adds an explicit capture step on top of stubGateway.
type capturingGateway struct {
	*stubGateway
}

func (c *capturingGateway) Capture(_ context.Context, gatewayTransactionID string) (domain.Outcome, error) {
	c.captured = append(c.captured, gatewayTransactionID)
	if c.captureErr != nil {
		return domain.OutcomeFailed, c.captureErr
	}
	return c.captureOutcome, nil
}
