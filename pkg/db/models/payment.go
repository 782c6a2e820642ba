package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Payment is the local record of one gateway transaction. Rows leave pending
// exactly once and are immutable afterwards.
type Payment struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	Reference        string                      `gorm:"column:reference;not null;uniqueIndex:payments_reference_key"`
	ItemID           uuid.UUID                   `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID          uuid.UUID                   `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID         uuid.UUID                   `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountMinor      int64                       `gorm:"column:amount_minor;not null"`
	Currency         enums.Currency              `gorm:"column:currency;type:text;not null"`
	DeliveryAddress  string                      `gorm:"column:delivery_address;not null"`
	AuthorizationURL string                      `gorm:"column:authorization_url;not null"`
	Status           enums.PaymentStatus         `gorm:"column:status;type:text;not null;default:'pending';index:idx_payments_status_created_at,priority:1"`
	FailureReason    *enums.PaymentFailureReason `gorm:"column:failure_reason;type:text"`
	PaidAt           *time.Time                  `gorm:"column:paid_at"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime;index:idx_payments_status_created_at,priority:2"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether actorID is the buyer or the seller.
func (p *Payment) IsParty(actorID uuid.UUID) bool {
	return actorID == p.BuyerID || actorID == p.SellerID
}
