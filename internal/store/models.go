// Package store implements the OrderStore port on top of gorm. Orders and
// their logs are the only cross-request state in the service.
package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/paybridge/paybridge/internal/domain"
)

type orderModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Reference string `gorm:"uniqueIndex;size:100"`
	AccountID string `gorm:"size:100"`
	ShopName  string `gorm:"size:255"`

	OriginalAmount    decimal.Decimal  `gorm:"type:decimal(20,8)"`
	OriginalCurrency  string           `gorm:"size:10"`
	ConvertedAmount   *decimal.Decimal `gorm:"type:decimal(20,8)"`
	ConvertedCurrency string           `gorm:"size:10"`

	CompleteURL string
	CancelURL   string
	CallbackURL string

	Status               string `gorm:"size:20;index"`
	Gateway              string `gorm:"size:50"`
	GatewayTransactionID string `gorm:"index;size:100"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (orderModel) TableName() string { return "orders" }

type transactionEventModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	OrderID      string `gorm:"index;size:36"`
	EventType    string `gorm:"size:50"`
	Gateway      string `gorm:"size:50"`
	RequestData  datatypes.JSON
	ResponseData datatypes.JSON
	CreatedAt    time.Time
}

func (transactionEventModel) TableName() string { return "transaction_logs" }

type callbackAttemptModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	OrderID       string `gorm:"index;size:36"`
	CallbackURL   string
	AttemptNumber int
	StatusCode    *int
	ResponseBody  string
	NextRetryAt   *time.Time
	CreatedAt     time.Time
}

func (callbackAttemptModel) TableName() string { return "callback_retries" }

func (m *orderModel) toDomain() *domain.Order {
	return &domain.Order{
		ID:                   m.ID,
		Reference:            m.Reference,
		AccountID:            m.AccountID,
		ShopName:             m.ShopName,
		OriginalAmount:       m.OriginalAmount,
		OriginalCurrency:     m.OriginalCurrency,
		ConvertedAmount:      m.ConvertedAmount,
		ConvertedCurrency:    m.ConvertedCurrency,
		CompleteURL:          m.CompleteURL,
		CancelURL:            m.CancelURL,
		CallbackURL:          m.CallbackURL,
		Status:               domain.OrderStatus(m.Status),
		Gateway:              m.Gateway,
		GatewayTransactionID: m.GatewayTransactionID,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func fromDomainOrder(o *domain.Order) *orderModel {
	return &orderModel{
		ID:                   o.ID,
		Reference:            o.Reference,
		AccountID:            o.AccountID,
		ShopName:             o.ShopName,
		OriginalAmount:       o.OriginalAmount,
		OriginalCurrency:     o.OriginalCurrency,
		ConvertedAmount:      o.ConvertedAmount,
		ConvertedCurrency:    o.ConvertedCurrency,
		CompleteURL:          o.CompleteURL,
		CancelURL:            o.CancelURL,
		CallbackURL:          o.CallbackURL,
		Status:               string(o.Status),
		Gateway:              o.Gateway,
		GatewayTransactionID: o.GatewayTransactionID,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

func (m *transactionEventModel) toDomain() domain.TransactionEvent {
	return domain.TransactionEvent{
		ID:           m.ID,
		OrderID:      m.OrderID,
		EventType:    m.EventType,
		Gateway:      m.Gateway,
		RequestData:  []byte(m.RequestData),
		ResponseData: []byte(m.ResponseData),
		CreatedAt:    m.CreatedAt,
	}
}
