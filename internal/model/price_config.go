package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"permit-service/internal/interval"
)

// SupportedDurations lists the hour tiers a permit can be bought for.
var SupportedDurations = []int{1, 2, 3, 4, 5, 6, 12}

func ValidDuration(hours int) bool {
	for _, d := range SupportedDurations {
		if d == hours {
			return true
		}
	}
	return false
}

// PriceConfig is a zone's price table for [ValidFrom, ValidTo).
// A nil ValidTo means the config stays in effect until closed.
type PriceConfig struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ZoneID      int64           `gorm:"not null;index" json:"zoneId"`
	ValidFrom   time.Time       `gorm:"not null" json:"validFrom"`
	ValidTo     *time.Time      `json:"validTo"`
	Hour1Price  decimal.Decimal `gorm:"column:hour1_price;type:numeric(10,2);not null" json:"hour1Price"`
	Hour2Price  decimal.Decimal `gorm:"column:hour2_price;type:numeric(10,2);not null" json:"hour2Price"`
	Hour3Price  decimal.Decimal `gorm:"column:hour3_price;type:numeric(10,2);not null" json:"hour3Price"`
	Hour4Price  decimal.Decimal `gorm:"column:hour4_price;type:numeric(10,2);not null" json:"hour4Price"`
	Hour5Price  decimal.Decimal `gorm:"column:hour5_price;type:numeric(10,2);not null" json:"hour5Price"`
	Hour6Price  decimal.Decimal `gorm:"column:hour6_price;type:numeric(10,2);not null" json:"hour6Price"`
	Hour12Price decimal.Decimal `gorm:"column:hour12_price;type:numeric(10,2);not null" json:"hour12Price"`
	CreatedBy   *uuid.UUID      `gorm:"type:uuid" json:"createdBy"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`

	Zone *Zone `gorm:"foreignKey:ZoneID" json:"zone,omitempty"`
}

func (PriceConfig) TableName() string {
	return "price_configs"
}

func (c *PriceConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c PriceConfig) Interval() interval.Interval {
	return interval.New(c.ValidFrom, c.ValidTo)
}

// PriceFor returns the tier price for a supported duration.
func (c PriceConfig) PriceFor(hours int) (decimal.Decimal, bool) {
	switch hours {
	case 1:
		return c.Hour1Price, true
	case 2:
		return c.Hour2Price, true
	case 3:
		return c.Hour3Price, true
	case 4:
		return c.Hour4Price, true
	case 5:
		return c.Hour5Price, true
	case 6:
		return c.Hour6Price, true
	case 12:
		return c.Hour12Price, true
	default:
		return decimal.Zero, false
	}
}

// Prices returns the tiers keyed by duration.
func (c PriceConfig) Prices() map[int]decimal.Decimal {
	prices := make(map[int]decimal.Decimal, len(SupportedDurations))
	for _, d := range SupportedDurations {
		p, _ := c.PriceFor(d)
		prices[d] = p
	}
	return prices
}
