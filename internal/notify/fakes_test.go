package notify

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/paybridge/paybridge/internal/domain"
)

// fakeStore is an in-memory OrderStore for delivery tests.
type fakeStore struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	events   []domain.TransactionEvent
	attempts []domain.CallbackAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*domain.Order)}
}

func (f *fakeStore) put(order *domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *order
	f.orders[order.ID] = &clone
}

func (f *fakeStore) CreateOrFind(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Reference == order.Reference {
			clone := *o
			return &clone, false, nil
		}
	}
	clone := *order
	f.orders[order.ID] = &clone
	copy := clone
	return &copy, true, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeStore) FindByReference(_ context.Context, reference string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Reference == reference {
			clone := *o
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeStore) FindByGatewayID(_ context.Context, gatewayTransactionID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayTransactionID == gatewayTransactionID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeStore) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
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

func (f *fakeStore) BindGateway(_ context.Context, id, gateway, gatewayTransactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Gateway = gateway
	o.GatewayTransactionID = gatewayTransactionID
	return nil
}

func (f *fakeStore) SetConversion(_ context.Context, id string, amount decimal.Decimal, currency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.ConvertedAmount = &amount
	o.ConvertedCurrency = currency
	return nil
}

func (f *fakeStore) AppendEvent(_ context.Context, event *domain.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) AppendCallbackAttempt(_ context.Context, attempt *domain.CallbackAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, orderID string, limit int) ([]domain.TransactionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransactionEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].OrderID == orderID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeStore) recordedAttempts() []domain.CallbackAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CallbackAttempt, len(f.attempts))
	copy(out, f.attempts)
	return out
}
