package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:")
	require.NoError(t, err)
	return s
}

func newOrder(reference string) *domain.Order {
	return &domain.Order{
		Reference:        reference,
		AccountID:        "acct-42",
		ShopName:         "Demo Shop",
		OriginalAmount:   decimal.RequireFromString("100.00"),
		OriginalCurrency: "USD",
		CompleteURL:      "https://shop.example.com/done",
		CancelURL:        "https://shop.example.com/cancel",
		CallbackURL:      "https://shop.example.com/callback",
		Status:           domain.StatusPending,
	}
}

func TestCreateOrFindDeduplicatesReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, created, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusPending, second.Status)
}

func TestFindByIDNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTransitionStatusCAS(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order, _, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)

	updated, err := s.TransitionStatus(ctx, order.ID, domain.StatusPending, domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)

	// CAS miss: order is no longer pending.
	current, err := s.TransitionStatus(ctx, order.ID, domain.StatusPending, domain.StatusProcessing)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)
	assert.Equal(t, domain.StatusProcessing, current.Status)

	// Terminal transition succeeds once and only once.
	_, err = s.TransitionStatus(ctx, order.ID, domain.StatusProcessing, domain.StatusCompleted)
	require.NoError(t, err)
	_, err = s.TransitionStatus(ctx, order.ID, domain.StatusProcessing, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)
}

func TestBindGatewayAndFindByGatewayID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order, _, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)

	require.NoError(t, s.BindGateway(ctx, order.ID, "paypal", "pp-123"))

	found, err := s.FindByGatewayID(ctx, "pp-123")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, "paypal", found.Gateway)

	assert.ErrorIs(t, s.BindGateway(ctx, "missing", "paypal", "x"), domain.ErrOrderNotFound)
}

func TestSetConversion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order, _, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)

	require.NoError(t, s.SetConversion(ctx, order.ID, decimal.RequireFromString("100.00"), "USDT"))

	found, err := s.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ConvertedAmount)
	assert.True(t, found.ConvertedAmount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "USDT", found.ConvertedCurrency)
}

func TestAppendAndListEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order, _, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)

	req, _ := json.Marshal(map[string]string{"x_reference": "ORDER-1"})
	require.NoError(t, s.AppendEvent(ctx, &domain.TransactionEvent{
		OrderID:     order.ID,
		EventType:   domain.EventPaymentInitiated,
		Gateway:     "merchant",
		RequestData: req,
	}))
	require.NoError(t, s.AppendEvent(ctx, &domain.TransactionEvent{
		OrderID:   order.ID,
		EventType: domain.EventPaymentProcessing,
		Gateway:   "paypal",
	}))

	events, err := s.ListEvents(ctx, order.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, order.ID, e.OrderID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestAppendCallbackAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order, _, err := s.CreateOrFind(ctx, newOrder("ORDER-1"))
	require.NoError(t, err)

	code := 500
	require.NoError(t, s.AppendCallbackAttempt(ctx, &domain.CallbackAttempt{
		OrderID:       order.ID,
		CallbackURL:   order.CallbackURL,
		AttemptNumber: 1,
		StatusCode:    &code,
		ResponseBody:  "server error",
	}))
	ok := 200
	require.NoError(t, s.AppendCallbackAttempt(ctx, &domain.CallbackAttempt{
		OrderID:       order.ID,
		CallbackURL:   order.CallbackURL,
		AttemptNumber: 2,
		StatusCode:    &ok,
	}))

	attempts, err := s.ListCallbackAttempts(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
}
