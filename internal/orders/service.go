package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryRestorer returns the unit taken by a sale when its order is
// cancelled.
type InventoryRestorer interface {
	RestoreOnCancel(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
}

// Service drives the order lifecycle after settlement.
type Service interface {
	Get(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	AutoComplete(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (*models.Order, error)
	ListAutoCompletable(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryRestorer
	now       func() time.Time
}

// NewService wires the order lifecycle manager.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory InventoryRestorer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory restorer required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order access denied")
	}
	return order, nil
}

// MarkDelivered lets the buyer confirm receipt.
func (s *service) MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		// terminal orders reject every actor, before any ownership check
		if err := requirePending(order); err != nil {
			return err
		}
		if !order.IsParty(actorID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order access denied")
		}
		if actorID != order.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm delivery")
		}

		at := s.now()
		via := enums.CompletionViaBuyer
		if err := s.completeDelivery(ctx, repo, order, DeliveryUpdate{OrderID: order.ID, At: at, Via: via}); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &actorID, Role: outbox.ActorRoleBuyer},
			Data:          completedPayload(order),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order delivered event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel lets either party cancel a pending order and returns its unit to
// stock in the same transaction.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	if utf8.RuneCountInString(reason) > maxCancelReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is too long").
			WithDetails(map[string]any{"max": maxCancelReasonLength})
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requirePending(order); err != nil {
			return err
		}
		if !order.IsParty(input.ActorID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order access denied")
		}

		at := s.now()
		affected, err := repo.MarkCancelled(ctx, CancellationUpdate{
			OrderID: order.ID,
			ActorID: input.ActorID,
			Reason:  reason,
			At:      at,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if affected == 0 {
			return invalidState(order.ID)
		}
		if err := s.inventory.RestoreOnCancel(ctx, tx, order.ItemID); err != nil {
			return err
		}

		actorID := input.ActorID
		order.Status = enums.OrderStatusCancelled
		order.CancellationReason = &reason
		order.CancelledBy = &actorID
		order.CancelledAt = &at
		order.UpdatedAt = at

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &actorID, Role: actorRole(order, actorID)},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				ItemID:      order.ItemID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				CancelledBy: actorID,
				Reason:      reason,
				CancelledAt: at,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AutoComplete delivers an order on the buyer's behalf once it is older than
// cutoff. Orders that moved on or are too recent report InvalidOrderState.
func (s *service) AutoComplete(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := requirePending(order); err != nil {
			return err
		}
		if !order.CreatedAt.Before(cutoff) {
			return pkgerrors.New(pkgerrors.CodeInvalidOrderState, "order is not old enough to auto-complete")
		}

		update := DeliveryUpdate{
			OrderID:       order.ID,
			At:            s.now(),
			Via:           enums.CompletionViaScheduler,
			CreatedBefore: &cutoff,
		}
		if err := s.completeDelivery(ctx, repo, order, update); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderAutoCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: outbox.ActorRoleSystem},
			Data:          completedPayload(order),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order auto-completed event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListAutoCompletable(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	orders, err := s.repo.ListPendingCreatedBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auto-completable orders")
	}
	return orders, nil
}

func (s *service) completeDelivery(ctx context.Context, repo Repository, order *models.Order, update DeliveryUpdate) error {
	affected, err := repo.MarkDelivered(ctx, update)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
	}
	if affected == 0 {
		return invalidState(order.ID)
	}
	via := update.Via
	at := update.At
	order.Status = enums.OrderStatusDelivered
	order.DeliveredAt = &at
	order.CompletedVia = &via
	order.UpdatedAt = at
	return nil
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func requirePending(order *models.Order) error {
	if order.Status != enums.OrderStatusPendingDelivery {
		return invalidState(order.ID).WithDetails(map[string]any{"status": string(order.Status)})
	}
	return nil
}

func invalidState(orderID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidOrderState, fmt.Sprintf("order %s is no longer pending delivery", orderID))
}

func actorRole(order *models.Order, actorID uuid.UUID) string {
	if actorID == order.BuyerID {
		return outbox.ActorRoleBuyer
	}
	return outbox.ActorRoleSeller
}

func completedPayload(order *models.Order) payloads.OrderCompletedEvent {
	event := payloads.OrderCompletedEvent{
		OrderID:  order.ID,
		ItemID:   order.ItemID,
		BuyerID:  order.BuyerID,
		SellerID: order.SellerID,
	}
	if c := order.Completion(); c != nil {
		event.DeliveredAt = c.At
		event.Via = c.Via
	}
	return event
}
