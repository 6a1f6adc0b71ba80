package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FiscalActionType string

const (
	FiscalActionVerification FiscalActionType = "VERIFICATION"
	FiscalActionInfringement FiscalActionType = "INFRINGEMENT"
	FiscalActionPatrol       FiscalActionType = "PATROL"
)

type VerificationResult string

const (
	VerificationValid    VerificationResult = "VALID"
	VerificationExpired  VerificationResult = "EXPIRED"
	VerificationNotFound VerificationResult = "NOT_FOUND"
)

type InfringementType string

const (
	InfringementNoPermit      InfringementType = "NO_PERMIT"
	InfringementExpiredPermit InfringementType = "EXPIRED_PERMIT"
)

func (t InfringementType) Valid() bool {
	return t == InfringementNoPermit || t == InfringementExpiredPermit
}

type InfringementStatus string

const (
	InfringementStatusRegistered InfringementStatus = "REGISTERED"
	InfringementStatusNotified   InfringementStatus = "NOTIFIED"
	InfringementStatusContested  InfringementStatus = "CONTESTED"
	InfringementStatusConfirmed  InfringementStatus = "CONFIRMED"
	InfringementStatusPaid       InfringementStatus = "PAID"
	InfringementStatusCancelled  InfringementStatus = "CANCELLED"
)

var infringementTransitions = map[InfringementStatus][]InfringementStatus{
	InfringementStatusRegistered: {InfringementStatusNotified, InfringementStatusCancelled},
	InfringementStatusNotified:   {InfringementStatusContested, InfringementStatusConfirmed},
	InfringementStatusContested:  {InfringementStatusConfirmed, InfringementStatusCancelled},
	InfringementStatusConfirmed:  {InfringementStatusPaid, InfringementStatusCancelled},
}

func (s InfringementStatus) CanTransitionTo(next InfringementStatus) bool {
	for _, allowed := range infringementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s InfringementStatus) Terminal() bool {
	return s == InfringementStatusPaid || s == InfringementStatusCancelled
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type FiscalAction struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	FiscalUserID uuid.UUID        `gorm:"type:uuid;not null;index" json:"fiscalUserId"`
	Plate        string           `gorm:"type:varchar(32);not null;index" json:"plate"`
	ActionType   FiscalActionType `gorm:"type:fiscal_action_type;not null" json:"actionType"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	PerformedAt  time.Time        `gorm:"not null" json:"performedAt"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

func (FiscalAction) TableName() string {
	return "fiscal_actions"
}

func (a *FiscalAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *FiscalAction) SetCoordinates(c *Coordinates) {
	if c == nil {
		return
	}
	lat, lng := c.Latitude, c.Longitude
	a.Latitude = &lat
	a.Longitude = &lng
}

type Verification struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	FiscalActionID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"fiscalActionId"`
	Result         VerificationResult `gorm:"type:verification_result;not null" json:"result"`
	PermitID       *uuid.UUID         `gorm:"type:uuid" json:"permitId"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"createdAt"`

	FiscalAction *FiscalAction `gorm:"foreignKey:FiscalActionID" json:"fiscalAction,omitempty"`
	Permit       *Permit       `gorm:"foreignKey:PermitID" json:"permit,omitempty"`
}

func (Verification) TableName() string {
	return "verifications"
}

func (v *Verification) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type Infringement struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VehicleID      uuid.UUID                   `gorm:"type:uuid;not null;index" json:"vehicleId"`
	FiscalActionID uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex" json:"fiscalActionId"`
	Type           InfringementType            `gorm:"column:infringement_type;type:infringement_type;not null" json:"infringementType"`
	Notes          string                      `gorm:"type:text" json:"notes"`
	Evidence       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"evidence"`
	Status         InfringementStatus          `gorm:"type:infringement_status;not null;default:'REGISTERED'" json:"status"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`

	Vehicle      *Vehicle      `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	FiscalAction *FiscalAction `gorm:"foreignKey:FiscalActionID" json:"fiscalAction,omitempty"`
}

func (Infringement) TableName() string {
	return "infringements"
}

func (i *Infringement) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
