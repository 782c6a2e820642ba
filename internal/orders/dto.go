package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

const maxCancelReasonLength = 500

// DeliveryUpdate moves a pending order to delivered. CreatedBefore restricts
// the write to orders older than the cutoff.
type DeliveryUpdate struct {
	OrderID       uuid.UUID
	At            time.Time
	Via           enums.CompletionVia
	CreatedBefore *time.Time
}

// CancellationUpdate moves a pending order to cancelled.
type CancellationUpdate struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
	At      time.Time
}

// CancelInput is a party's request to cancel a pending order.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// CancelRequest is the API body for order cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

// CompletionDTO is the delivered variant of an order.
type CompletionDTO struct {
	At  time.Time `json:"at"`
	Via string    `json:"via"`
}

// OrderDTO is the public view of an order.
type OrderDTO struct {
	ID                 string         `json:"id"`
	PaymentID          string         `json:"paymentId"`
	Reference          string         `json:"reference"`
	ItemID             string         `json:"itemId"`
	BuyerID            string         `json:"buyerId"`
	SellerID           string         `json:"sellerId"`
	Amount             int64          `json:"amount"`
	AmountDisplay      string         `json:"amountDisplay"`
	Currency           string         `json:"currency"`
	DeliveryAddress    string         `json:"deliveryAddress"`
	Status             string         `json:"status"`
	Delivered          *CompletionDTO `json:"delivered,omitempty"`
	CancellationReason *string        `json:"cancellationReason,omitempty"`
	CancelledBy        *string        `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

func NewOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 o.ID.String(),
		PaymentID:          o.PaymentID.String(),
		Reference:          o.Reference,
		ItemID:             o.ItemID.String(),
		BuyerID:            o.BuyerID.String(),
		SellerID:           o.SellerID.String(),
		Amount:             o.AmountMinor,
		AmountDisplay:      o.Currency.FormatMinor(o.AmountMinor),
		Currency:           string(o.Currency),
		DeliveryAddress:    o.DeliveryAddress,
		Status:             string(o.Status),
		CancellationReason: o.CancellationReason,
		CancelledAt:        o.CancelledAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if c := o.Completion(); c != nil {
		dto.Delivered = &CompletionDTO{At: c.At, Via: string(c.Via)}
	}
	if o.CancelledBy != nil {
		by := o.CancelledBy.String()
		dto.CancelledBy = &by
	}
	return dto
}
