package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"permit-service/internal/interval"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodCash       PaymentMethod = "CASH"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPix, PaymentMethodCash:
		return true
	}
	return false
}

type Permit struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VehicleID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"vehicleId"`
	ZoneID          int64           `gorm:"not null;index" json:"zoneId"`
	PriceConfigID   uuid.UUID       `gorm:"type:uuid;not null" json:"priceConfigId"`
	UserID          *uuid.UUID      `gorm:"type:uuid;index" json:"userId"`
	DurationHours   int             `gorm:"not null" json:"durationHours"`
	StartTime       time.Time       `gorm:"not null" json:"startTime"`
	EndTime         time.Time       `gorm:"not null" json:"endTime"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	PaymentStatus   PaymentStatus   `gorm:"type:payment_status;not null" json:"paymentStatus"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(32);not null" json:"paymentMethod"`
	TransactionCode string          `gorm:"type:varchar(14);not null;uniqueIndex" json:"transactionCode"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`

	Vehicle *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Zone    *Zone    `gorm:"foreignKey:ZoneID" json:"zone,omitempty"`
}

func (Permit) TableName() string {
	return "permits"
}

func (p *Permit) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p Permit) Interval() interval.Interval {
	return interval.Closed(p.StartTime, p.EndTime)
}

// ActiveAt reports whether the permit is paid and its window covers t.
func (p Permit) ActiveAt(t time.Time) bool {
	return p.PaymentStatus == PaymentStatusCompleted && p.Interval().Contains(t)
}
