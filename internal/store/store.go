package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/paybridge/paybridge/internal/domain"
)

// Store implements domain.OrderStore backed by a gorm database.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at dsn and migrates the schema.
// Use "file::memory:" for an in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Each pooled connection to :memory: is a distinct database, so an
		// in-memory store must stay on a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&orderModel{}, &transactionEventModel{}, &callbackAttemptModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateOrFind atomically creates the order or returns the existing one for
// the same merchant reference. The unique index on reference is what makes
// a double-submit from the merchant platform safe.
func (s *Store) CreateOrFind(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	model := fromDomainOrder(order)
	if model.ID == "" {
		model.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).
		Create(model)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create order: %w", res.Error)
	}

	created := res.RowsAffected == 1
	stored, err := s.FindByReference(ctx, order.Reference)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// FindByID retrieves an order by internal id.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOne(ctx, "id = ?", id)
}

// FindByReference retrieves an order by merchant reference.
func (s *Store) FindByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return s.findOne(ctx, "reference = ?", reference)
}

// FindByGatewayID retrieves an order by gateway transaction id.
func (s *Store) FindByGatewayID(ctx context.Context, gatewayTransactionID string) (*domain.Order, error) {
	return s.findOne(ctx, "gateway_transaction_id = ?", gatewayTransactionID)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var model orderModel
	err := s.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return model.toDomain(), nil
}

// TransitionStatus performs the compare-and-set status update. The guard on
// the current status is what protects terminal orders from stale or
// concurrent resolvers.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	res := s.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition order status: %w", res.Error)
	}

	order, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return order, domain.NewPaymentError(domain.ErrStatusConflict,
			fmt.Sprintf("order %s is %s, expected %s", id, order.Status, from),
			"STATUS_CONFLICT")
	}
	return order, nil
}

// BindGateway records the selected gateway and its transaction id.
func (s *Store) BindGateway(ctx context.Context, id, gateway, gatewayTransactionID string) error {
	res := s.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway":                gateway,
			"gateway_transaction_id": gatewayTransactionID,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to bind gateway: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// SetConversion records a converted amount/currency on the order.
func (s *Store) SetConversion(ctx context.Context, id string, amount decimal.Decimal, currency string) error {
	res := s.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"converted_amount":   amount,
			"converted_currency": currency,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set conversion: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// AppendEvent writes one append-only transaction log entry.
func (s *Store) AppendEvent(ctx context.Context, event *domain.TransactionEvent) error {
	model := &transactionEventModel{
		ID:           event.ID,
		OrderID:      event.OrderID,
		EventType:    event.EventType,
		Gateway:      event.Gateway,
		RequestData:  []byte(event.RequestData),
		ResponseData: []byte(event.ResponseData),
		CreatedAt:    event.CreatedAt,
	}
	if model.ID == "" {
		model.ID = uuid.New().String()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// AppendCallbackAttempt writes one append-only delivery attempt record.
func (s *Store) AppendCallbackAttempt(ctx context.Context, attempt *domain.CallbackAttempt) error {
	model := &callbackAttemptModel{
		ID:            attempt.ID,
		OrderID:       attempt.OrderID,
		CallbackURL:   attempt.CallbackURL,
		AttemptNumber: attempt.AttemptNumber,
		StatusCode:    attempt.StatusCode,
		ResponseBody:  attempt.ResponseBody,
		NextRetryAt:   attempt.NextRetryAt,
		CreatedAt:     attempt.CreatedAt,
	}
	if model.ID == "" {
		model.ID = uuid.New().String()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append callback attempt: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for an order, newest first.
func (s *Store) ListEvents(ctx context.Context, orderID string, limit int) ([]domain.TransactionEvent, error) {
	var models []transactionEventModel
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]domain.TransactionEvent, 0, len(models))
	for i := range models {
		events = append(events, models[i].toDomain())
	}
	return events, nil
}

// ListCallbackAttempts returns the delivery attempts for an order in
// chronological order. Used for out-of-band reconciliation.
func (s *Store) ListCallbackAttempts(ctx context.Context, orderID string) ([]domain.CallbackAttempt, error) {
	var models []callbackAttemptModel
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list callback attempts: %w", err)
	}
	attempts := make([]domain.CallbackAttempt, 0, len(models))
	for _, m := range models {
		attempts = append(attempts, domain.CallbackAttempt{
			ID:            m.ID,
			OrderID:       m.OrderID,
			CallbackURL:   m.CallbackURL,
			AttemptNumber: m.AttemptNumber,
			StatusCode:    m.StatusCode,
			ResponseBody:  m.ResponseBody,
			NextRetryAt:   m.NextRetryAt,
			CreatedAt:     m.CreatedAt,
		})
	}
	return attempts, nil
}
