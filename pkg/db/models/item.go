package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Item is a single listing with a stock counter. Quantity only moves through
// the inventory ledger.
type Item struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string           `gorm:"column:title;not null"`
	PriceMinor int64            `gorm:"column:price_minor;not null"`
	Currency   enums.Currency   `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Quantity   int              `gorm:"column:quantity;not null;default:0;check:quantity >= 0"`
	Status     enums.ItemStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
