package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Order is materialized from exactly one successful payment and is never
// deleted.
type Order struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID          uuid.UUID            `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:orders_payment_id_key"`
	Reference          string               `gorm:"column:reference;not null"`
	ItemID             uuid.UUID            `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID            uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID           uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountMinor        int64                `gorm:"column:amount_minor;not null"`
	Currency           enums.Currency       `gorm:"column:currency;type:text;not null"`
	DeliveryAddress    string               `gorm:"column:delivery_address;not null"`
	Status             enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending_delivery';index:idx_orders_status_created_at,priority:1"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	CompletedVia       *enums.CompletionVia `gorm:"column:completed_via;type:text"`
	CancellationReason *string              `gorm:"column:cancellation_reason"`
	CancelledBy        *uuid.UUID           `gorm:"column:cancelled_by;type:uuid"`
	CancelledAt        *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime;index:idx_orders_status_created_at,priority:2"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether actorID is the buyer or the seller.
func (o *Order) IsParty(actorID uuid.UUID) bool {
	return actorID == o.BuyerID || actorID == o.SellerID
}

// Completion describes how a delivered order was completed.
type Completion struct {
	At  time.Time
	Via enums.CompletionVia
}

// Completion returns the delivered variant, or nil when the order is not
// delivered.
func (o *Order) Completion() *Completion {
	if o.Status != enums.OrderStatusDelivered || o.DeliveredAt == nil || o.CompletedVia == nil {
		return nil
	}
	return &Completion{At: *o.DeliveredAt, Via: *o.CompletedVia}
}
