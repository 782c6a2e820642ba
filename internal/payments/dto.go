package payments

import (
	"time"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// InitializeRequest is the checkout body accepted by the API.
type InitializeRequest struct {
	ItemID          string `json:"itemId" validate:"required,uuid"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	DeliveryAddress string `json:"deliveryAddress" validate:"required,notblank,min=5,max=500"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
}

// InitializeResponse is returned once the gateway checkout is open.
type InitializeResponse struct {
	PaymentURL    string `json:"paymentUrl"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	Currency      string `json:"currency"`
}

// PaymentDTO is the public view of a payment record.
type PaymentDTO struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	ItemID        string     `json:"itemId"`
	BuyerID       string     `json:"buyerId"`
	SellerID      string     `json:"sellerId"`
	Amount        int64      `json:"amount"`
	AmountDisplay string     `json:"amountDisplay"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failureReason,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func NewInitializeResponse(p *models.Payment) InitializeResponse {
	return InitializeResponse{
		PaymentURL:    p.AuthorizationURL,
		Reference:     p.Reference,
		Amount:        p.AmountMinor,
		AmountDisplay: p.Currency.FormatMinor(p.AmountMinor),
		Currency:      string(p.Currency),
	}
}

func NewPaymentDTO(p *models.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:            p.ID.String(),
		Reference:     p.Reference,
		ItemID:        p.ItemID.String(),
		BuyerID:       p.BuyerID.String(),
		SellerID:      p.SellerID.String(),
		Amount:        p.AmountMinor,
		AmountDisplay: p.Currency.FormatMinor(p.AmountMinor),
		Currency:      string(p.Currency),
		Status:        string(p.Status),
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
	if p.FailureReason != nil {
		reason := string(*p.FailureReason)
		dto.FailureReason = &reason
	}
	return dto
}
