package payloads

import (
	"time"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/google/uuid"
)

// PaymentSettledEvent is emitted when a payment moves to success and its order
// is created.
type PaymentSettledEvent struct {
	PaymentID   uuid.UUID           `json:"payment_id"`
	Reference   string              `json:"reference"`
	OrderID     uuid.UUID           `json:"order_id"`
	ItemID      uuid.UUID           `json:"item_id"`
	BuyerID     uuid.UUID           `json:"buyer_id"`
	SellerID    uuid.UUID           `json:"seller_id"`
	AmountMinor int64               `json:"amount_minor"`
	Currency    enums.Currency      `json:"currency"`
	Source      enums.ResolveSource `json:"source"`
	PaidAt      time.Time           `json:"paid_at"`
}

// PaymentFailedEvent is emitted when a payment ends in failure. An out_of_stock
// reason means the buyer was charged and needs a refund.
type PaymentFailedEvent struct {
	PaymentID     uuid.UUID                  `json:"payment_id"`
	Reference     string                     `json:"reference"`
	ItemID        uuid.UUID                  `json:"item_id"`
	BuyerID       uuid.UUID                  `json:"buyer_id"`
	SellerID      uuid.UUID                  `json:"seller_id"`
	AmountMinor   int64                      `json:"amount_minor"`
	FailureReason enums.PaymentFailureReason `json:"failure_reason"`
	RefundNeeded  bool                       `json:"refund_needed"`
	Source        enums.ResolveSource        `json:"source"`
}

// OrderCreatedEvent announces a new order awaiting delivery.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	Reference   string    `json:"reference"`
	ItemID      uuid.UUID `json:"item_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	AmountMinor int64     `json:"amount_minor"`
}

// OrderCompletedEvent covers both buyer confirmation and scheduler completion.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	ItemID      uuid.UUID           `json:"item_id"`
	BuyerID     uuid.UUID           `json:"buyer_id"`
	SellerID    uuid.UUID           `json:"seller_id"`
	DeliveredAt time.Time           `json:"delivered_at"`
	Via         enums.CompletionVia `json:"via"`
}

// OrderCancelledEvent is emitted when either party cancels a pending order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ItemID      uuid.UUID `json:"item_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}
