package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InfringementStatusLog struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	InfringementID uuid.UUID           `gorm:"type:uuid;not null" json:"infringementId"`
	OldStatus      *InfringementStatus `gorm:"type:infringement_status" json:"oldStatus"`
	NewStatus      InfringementStatus  `gorm:"type:infringement_status;not null" json:"newStatus"`
	Note           string              `gorm:"type:text" json:"note"`
	ChangedBy      *uuid.UUID          `gorm:"type:uuid" json:"changedBy"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"createdAt"`
}

func (InfringementStatusLog) TableName() string {
	return "infringement_status_log"
}

func (l *InfringementStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type PermitStatusLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	PermitID  uuid.UUID      `gorm:"type:uuid;not null" json:"permitId"`
	OldStatus *PaymentStatus `gorm:"type:payment_status" json:"oldStatus"`
	NewStatus PaymentStatus  `gorm:"type:payment_status;not null" json:"newStatus"`
	Note      string         `gorm:"type:text" json:"note"`
	ChangedBy *uuid.UUID     `gorm:"type:uuid" json:"changedBy"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

func (PermitStatusLog) TableName() string {
	return "permit_status_log"
}

func (l *PermitStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
