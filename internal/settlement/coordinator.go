package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockDecrementer takes one unit of an item inside the settling transaction.
type StockDecrementer interface {
	DecrementOnSale(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
}

// GatewayVerifier polls the gateway for the outcome of a reference.
type GatewayVerifier interface {
	Verify(ctx context.Context, reference string) (enums.PaymentOutcome, error)
}

// Deps groups the collaborators of the coordinator.
type Deps struct {
	Payments  payments.Repository
	Orders    orders.Repository
	Inventory StockDecrementer
	Tx        txRunner
	Outbox    outboxPublisher
	Gateway   GatewayVerifier
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
}

// Coordinator resolves each payment reference to a terminal outcome exactly
// once. The compare-and-swap on the payment row is the only serialization
// point, so concurrent webhook and verify calls are safe across instances.
type Coordinator struct {
	payments  payments.Repository
	orders    orders.Repository
	inventory StockDecrementer
	tx        txRunner
	outbox    outboxPublisher
	gateway   GatewayVerifier
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway verifier required")
	}
	return &Coordinator{
		payments:  deps.Payments,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		gateway:   deps.Gateway,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Resolve applies cmd in a single transaction. Terminal payments and pending
// outcomes are no-ops. An out-of-stock sale still commits the failed payment
// and its refund event before OUT_OF_STOCK is returned alongside the result.
func (c *Coordinator) Resolve(ctx context.Context, cmd ResolveCommand) (*Result, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	if c.logg != nil {
		ctx = c.logg.WithReference(ctx, cmd.Reference)
	}

	var (
		result      Result
		businessErr error
	)
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result = Result{}
		businessErr = nil

		payRepo := c.payments.WithTx(tx)
		orderRepo := c.orders.WithTx(tx)

		payment, err := payRepo.FindByReference(ctx, cmd.Reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnknownReference, "unknown payment reference").
					WithDetails(map[string]any{"reference": cmd.Reference})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status.IsTerminal() {
			return c.loadCurrent(ctx, payRepo, orderRepo, payment, &result)
		}

		switch cmd.Outcome {
		case enums.PaymentOutcomePending:
			result.Payment = payment
			return nil
		case enums.PaymentOutcomeFailed:
			return c.fail(ctx, tx, payRepo, orderRepo, payment, cmd, &result)
		default:
			outOfStock, err := c.settle(ctx, tx, payRepo, orderRepo, payment, cmd, &result)
			if outOfStock {
				businessErr = pkgerrors.New(pkgerrors.CodeOutOfStock, "item sold out before payment settled").
					WithDetails(map[string]any{"reference": payment.Reference, "item_id": payment.ItemID.String()})
			}
			return err
		}
	})
	if err != nil {
		c.metrics.IncResolve(string(cmd.Source), string(cmd.Outcome), "error")
		return nil, err
	}

	label := "noop"
	switch {
	case businessErr != nil:
		label = "out_of_stock"
	case result.Applied:
		label = "applied"
	}
	c.metrics.IncResolve(string(cmd.Source), string(cmd.Outcome), label)

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"source":  cmd.Source,
			"outcome": cmd.Outcome,
			"applied": result.Applied,
			"status":  result.Payment.Status,
		})
		switch {
		case businessErr != nil:
			c.logg.Warn(logCtx, "settlement.out_of_stock")
		case result.Applied:
			c.logg.Info(logCtx, "settlement.resolved")
		default:
			c.logg.Debug(logCtx, "settlement.noop")
		}
	}
	return &result, businessErr
}

// settle claims a pending payment as successful, takes the stock and creates
// the order. outOfStock reports a claimed payment that had to be failed
// because the item sold out.
func (c *Coordinator) settle(ctx context.Context, tx *gorm.DB, payRepo payments.Repository, orderRepo orders.Repository, payment *models.Payment, cmd ResolveCommand, result *Result) (outOfStock bool, err error) {
	paidAt := c.now()
	affected, err := payRepo.MarkSucceeded(ctx, payment.ID, paidAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment succeeded")
	}
	if affected == 0 {
		return false, c.loadCurrent(ctx, payRepo, orderRepo, payment, result)
	}

	if err := c.inventory.DecrementOnSale(ctx, tx, payment.ItemID); err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
			return false, err
		}
		if _, err := payRepo.RevertToOutOfStock(ctx, payment.ID); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail out-of-stock payment")
		}
		reason := enums.FailureReasonOutOfStock
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = &reason
		payment.PaidAt = nil
		if err := c.emitFailed(ctx, tx, payment, cmd.Source, true); err != nil {
			return false, err
		}
		result.Payment = payment
		result.Applied = true
		return true, nil
	}

	order := &models.Order{
		PaymentID:       payment.ID,
		Reference:       payment.Reference,
		ItemID:          payment.ItemID,
		BuyerID:         payment.BuyerID,
		SellerID:        payment.SellerID,
		AmountMinor:     payment.AmountMinor,
		Currency:        payment.Currency,
		DeliveryAddress: payment.DeliveryAddress,
		Status:          enums.OrderStatusPendingDelivery,
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for payment")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	payment.Status = enums.PaymentStatusSuccess
	payment.PaidAt = &paidAt

	actor := &outbox.ActorRef{Role: outbox.ActorRoleGateway}
	settled := outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		Data: payloads.PaymentSettledEvent{
			PaymentID:   payment.ID,
			Reference:   payment.Reference,
			OrderID:     order.ID,
			ItemID:      payment.ItemID,
			BuyerID:     payment.BuyerID,
			SellerID:    payment.SellerID,
			AmountMinor: payment.AmountMinor,
			Currency:    payment.Currency,
			Source:      cmd.Source,
			PaidAt:      paidAt,
		},
	}
	if err := c.outbox.Emit(ctx, tx, settled); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment settled event")
	}
	created := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			PaymentID:   payment.ID,
			Reference:   payment.Reference,
			ItemID:      order.ItemID,
			BuyerID:     order.BuyerID,
			SellerID:    order.SellerID,
			AmountMinor: order.AmountMinor,
		},
	}
	if err := c.outbox.Emit(ctx, tx, created); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
	}

	result.Payment = payment
	result.Order = order
	result.Applied = true
	return false, nil
}

func (c *Coordinator) fail(ctx context.Context, tx *gorm.DB, payRepo payments.Repository, orderRepo orders.Repository, payment *models.Payment, cmd ResolveCommand, result *Result) error {
	affected, err := payRepo.MarkFailed(ctx, payment.ID, enums.FailureReasonGatewayDeclined)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if affected == 0 {
		return c.loadCurrent(ctx, payRepo, orderRepo, payment, result)
	}
	reason := enums.FailureReasonGatewayDeclined
	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = &reason
	if err := c.emitFailed(ctx, tx, payment, cmd.Source, false); err != nil {
		return err
	}
	result.Payment = payment
	result.Applied = true
	return nil
}

func (c *Coordinator) emitFailed(ctx context.Context, tx *gorm.DB, payment *models.Payment, source enums.ResolveSource, refundNeeded bool) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         &outbox.ActorRef{Role: outbox.ActorRoleGateway},
		Data: payloads.PaymentFailedEvent{
			PaymentID:     payment.ID,
			Reference:     payment.Reference,
			ItemID:        payment.ItemID,
			BuyerID:       payment.BuyerID,
			SellerID:      payment.SellerID,
			AmountMinor:   payment.AmountMinor,
			FailureReason: *payment.FailureReason,
			RefundNeeded:  refundNeeded,
			Source:        source,
		},
	}
	if err := c.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment failed event")
	}
	return nil
}

// loadCurrent fills result with the committed state of a payment another
// resolver already finished.
func (c *Coordinator) loadCurrent(ctx context.Context, payRepo payments.Repository, orderRepo orders.Repository, payment *models.Payment, result *Result) error {
	current, err := payRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	result.Payment = current
	result.Applied = false
	if current.Status != enums.PaymentStatusSuccess {
		return nil
	}
	order, err := orderRepo.FindByPaymentID(ctx, current.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
	}
	result.Order = order
	return nil
}

// VerifyAndResolve is the manual pull path. The gateway is consulted outside
// any transaction and only while the payment is still pending.
func (c *Coordinator) VerifyAndResolve(ctx context.Context, reference string, actorID uuid.UUID) (*Result, error) {
	payment, err := c.payments.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if !payment.IsParty(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment access denied")
	}
	if payment.Status.IsTerminal() {
		var result Result
		if err := c.loadCurrent(ctx, c.payments, c.orders, payment, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	outcome, err := c.gateway.Verify(ctx, reference)
	if err != nil {
		c.metrics.IncResolve(string(enums.ResolveSourceVerify), "unknown", "gateway_error")
		return nil, err
	}
	return c.Resolve(ctx, ResolveCommand{
		Reference: reference,
		Outcome:   outcome,
		Source:    enums.ResolveSourceVerify,
	})
}

// HandleWebhook resolves charge.success and charge.failed pushes. Other
// events return a nil result and no error.
func (c *Coordinator) HandleWebhook(ctx context.Context, event WebhookEvent) (*Result, error) {
	outcome, ok := OutcomeForEvent(event.Event)
	if !ok {
		c.metrics.IncWebhook(event.Event, "ignored")
		return nil, nil
	}
	result, err := c.Resolve(ctx, ResolveCommand{
		Reference: event.Data.Reference,
		Outcome:   outcome,
		Source:    enums.ResolveSourceWebhook,
	})
	switch {
	case err == nil:
		c.metrics.IncWebhook(event.Event, "processed")
	case pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference):
		c.metrics.IncWebhook(event.Event, "unknown_reference")
	case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
		c.metrics.IncWebhook(event.Event, "out_of_stock")
	default:
		c.metrics.IncWebhook(event.Event, "error")
	}
	return result, err
}
