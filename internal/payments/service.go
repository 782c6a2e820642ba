package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/gateway"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const referencePrefix = "stl_"

// ItemReader loads the listing being bought.
type ItemReader interface {
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
}

// SellerVerifier reports whether a seller may accept payments.
type SellerVerifier interface {
	IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

// GatewayInitializer opens a hosted checkout at the payment gateway.
type GatewayInitializer interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
}

// Service exposes checkout and payment reads.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
}

// Options holds checkout settings taken from configuration.
type Options struct {
	CallbackURL     string
	DefaultCurrency enums.Currency
}

// InitializeInput is a buyer's checkout intent for a single item.
type InitializeInput struct {
	BuyerID         uuid.UUID
	BuyerEmail      string
	ItemID          uuid.UUID
	AmountMinor     int64
	DeliveryAddress string
}

type service struct {
	repo    Repository
	items   ItemReader
	sellers SellerVerifier
	gateway GatewayInitializer
	opts    Options
	logg    *logger.Logger
	newRef  func() string
}

// NewService wires the checkout service.
func NewService(repo Repository, items ItemReader, sellers SellerVerifier, gw GatewayInitializer, opts Options, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("item reader required")
	}
	if sellers == nil {
		return nil, fmt.Errorf("seller verifier required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = enums.CurrencyNGN
	}
	return &service{
		repo:    repo,
		items:   items,
		sellers: sellers,
		gateway: gw,
		opts:    opts,
		logg:    logg,
		newRef:  NewReference,
	}, nil
}

// NewReference returns a fresh payment reference.
func NewReference() string {
	return referencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Initialize validates the checkout, opens the gateway transaction and only
// then records the pending payment. A gateway failure leaves no local row.
func (s *service) Initialize(ctx context.Context, input InitializeInput) (*models.Payment, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	address := strings.TrimSpace(input.DeliveryAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	email := strings.TrimSpace(input.BuyerEmail)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email is required")
	}

	item, err := s.items.FindItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Status == enums.ItemStatusHidden {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if item.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "item is out of stock").
			WithDetails(map[string]any{"item_id": item.ID.String()})
	}
	if item.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer cannot purchase their own item")
	}
	if input.AmountMinor != item.PriceMinor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match item price").
			WithDetails(map[string]any{"expected": item.PriceMinor, "received": input.AmountMinor})
	}

	verified, err := s.sellers.IsVerified(ctx, item.SellerID)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller is not verified")
	}

	currency := item.Currency
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}
	reference := s.newRef()

	result, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Reference:   reference,
		Email:       email,
		AmountMinor: item.PriceMinor,
		Currency:    currency,
		CallbackURL: s.opts.CallbackURL,
		Metadata: map[string]string{
			"item_id":  item.ID.String(),
			"buyer_id": input.BuyerID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Reference:        reference,
		ItemID:           item.ID,
		BuyerID:          input.BuyerID,
		SellerID:         item.SellerID,
		AmountMinor:      item.PriceMinor,
		Currency:         currency,
		DeliveryAddress:  address,
		AuthorizationURL: result.AuthorizationURL,
		Status:           enums.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}

	if s.logg != nil {
		logCtx := s.logg.WithReference(ctx, reference)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"item_id":      item.ID.String(),
			"amount_minor": item.PriceMinor,
		})
		s.logg.Info(logCtx, "payment.initialized")
	}
	return payment, nil
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}
