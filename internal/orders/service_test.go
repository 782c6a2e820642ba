package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
)

type harness struct {
	db      *gorm.DB
	svc     Service
	outbox  *outbox.Repository
	buyer   uuid.UUID
	seller  uuid.UUID
	item    *models.Item
	pending *models.Order
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox down")
}

func newHarness(t *testing.T, publisher outboxPublisher) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	if publisher == nil {
		publisher = outbox.NewService(outboxRepo, nil)
	}
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), publisher, ledger)
	require.NoError(t, err)

	h := &harness{db: conn, svc: svc, outbox: outboxRepo, buyer: uuid.New(), seller: uuid.New()}
	h.item = &models.Item{
		SellerID:   h.seller,
		Title:      "Desk lamp",
		PriceMinor: 120000,
		Currency:   enums.CurrencyNGN,
		Quantity:   0,
		Status:     enums.ItemStatusSold,
	}
	require.NoError(t, conn.Create(h.item).Error)
	h.pending = h.seedOrder(t, time.Now().UTC().Add(-time.Hour))
	return h
}

func (h *harness) seedOrder(t *testing.T, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		PaymentID:       uuid.New(),
		Reference:       "stl_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ItemID:          h.item.ID,
		BuyerID:         h.buyer,
		SellerID:        h.seller,
		AmountMinor:     h.item.PriceMinor,
		Currency:        enums.CurrencyNGN,
		DeliveryAddress: "22 Awolowo Rd, Ikoyi",
		Status:          enums.OrderStatusPendingDelivery,
		CreatedAt:       createdAt,
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func (h *harness) reloadOrder(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", id).Error)
	return order
}

func (h *harness) reloadItem(t *testing.T) models.Item {
	t.Helper()
	var item models.Item
	require.NoError(t, h.db.First(&item, "id = ?", h.item.ID).Error)
	return item
}

func (h *harness) eventTypes(t *testing.T, id uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := h.outbox.ListByAggregate(nil, id)
	require.NoError(t, err)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

func TestMarkDeliveredByBuyer(t *testing.T) {
	h := newHarness(t, nil)

	order, err := h.svc.MarkDelivered(context.Background(), h.pending.ID, h.buyer)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, order.Status)
	completion := order.Completion()
	require.NotNil(t, completion)
	assert.Equal(t, enums.CompletionViaBuyer, completion.Via)

	stored := h.reloadOrder(t, h.pending.ID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.CompletedVia)
	assert.Equal(t, enums.CompletionViaBuyer, *stored.CompletedVia)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderDelivered}, h.eventTypes(t, h.pending.ID))
}

func TestMarkDeliveredRejectsNonBuyers(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.MarkDelivered(context.Background(), h.pending.ID, h.seller)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "seller: %v", err)

	_, err = h.svc.MarkDelivered(context.Background(), h.pending.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "outsider: %v", err)

	assert.Equal(t, enums.OrderStatusPendingDelivery, h.reloadOrder(t, h.pending.ID).Status)
}

func TestMarkDeliveredUnknownOrder(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.MarkDelivered(context.Background(), uuid.New(), h.buyer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestCancelByBuyerRestoresStock(t *testing.T) {
	h := newHarness(t, nil)

	order, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: h.pending.ID,
		ActorID: h.buyer,
		Reason:  "changed mind",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)

	stored := h.reloadOrder(t, h.pending.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "changed mind", *stored.CancellationReason)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, h.buyer, *stored.CancelledBy)
	assert.Nil(t, stored.Completion())

	item := h.reloadItem(t)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, enums.ItemStatusActive, item.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCancelled}, h.eventTypes(t, h.pending.ID))
}

func TestCancelBySeller(t *testing.T) {
	h := newHarness(t, nil)

	order, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: h.pending.ID,
		ActorID: h.seller,
		Reason:  "cannot ship to that address",
	})
	require.NoError(t, err)
	require.NotNil(t, order.CancelledBy)
	assert.Equal(t, h.seller, *order.CancelledBy)
}

func TestCancelRejectsOutsiderOnPendingOrder(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Cancel(context.Background(), CancelInput{OrderID: h.pending.ID, ActorID: uuid.New(), Reason: "nosy"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
	assert.Equal(t, enums.OrderStatusPendingDelivery, h.reloadOrder(t, h.pending.ID).Status)
}

func TestCancelValidatesReason(t *testing.T) {
	h := newHarness(t, nil)

	for name, reason := range map[string]string{
		"empty":    "   ",
		"too long": strings.Repeat("x", maxCancelReasonLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Cancel(context.Background(), CancelInput{OrderID: h.pending.ID, ActorID: h.buyer, Reason: reason})
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, h.reloadItem(t).Quantity)
}

func TestTerminalOrdersRejectEveryAction(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	delivered := h.pending
	_, err := h.svc.MarkDelivered(ctx, delivered.ID, h.buyer)
	require.NoError(t, err)

	cancelled := h.seedOrder(t, time.Now().UTC().Add(-time.Hour))
	_, err = h.svc.Cancel(ctx, CancelInput{OrderID: cancelled.ID, ActorID: h.seller, Reason: "out of stock"})
	require.NoError(t, err)
	stockAfterCancel := h.reloadItem(t).Quantity

	outsider := uuid.New()
	for _, id := range []uuid.UUID{delivered.ID, cancelled.ID} {
		for _, actor := range []uuid.UUID{h.buyer, h.seller, outsider} {
			_, err := h.svc.Cancel(ctx, CancelInput{OrderID: id, ActorID: actor, Reason: "again"})
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState), "cancel by %s: %v", actor, err)

			_, err = h.svc.MarkDelivered(ctx, id, actor)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState), "deliver by %s: %v", actor, err)
		}

		_, err = h.svc.AutoComplete(ctx, id, time.Now().UTC())
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState), "auto-complete: %v", err)
	}
	assert.Equal(t, stockAfterCancel, h.reloadItem(t).Quantity)
}

func TestAutoCompleteHonoursCutoff(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	cutoff := now.Add(-48 * time.Hour)
	old := h.seedOrder(t, now.Add(-49*time.Hour))

	_, err := h.svc.AutoComplete(ctx, h.pending.ID, cutoff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState), "recent order: %v", err)

	order, err := h.svc.AutoComplete(ctx, old.ID, cutoff)
	require.NoError(t, err)
	require.NotNil(t, order.Completion())
	assert.Equal(t, enums.CompletionViaScheduler, order.Completion().Via)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderAutoCompleted}, h.eventTypes(t, old.ID))

	_, err = h.svc.AutoComplete(ctx, old.ID, cutoff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState), "rerun: %v", err)
	assert.Len(t, h.eventTypes(t, old.ID), 1)
}

func TestListAutoCompletableIsStrict(t *testing.T) {
	h := newHarness(t, nil)
	cutoff := time.Now().UTC().Add(-48 * time.Hour)
	atCutoff := h.seedOrder(t, cutoff)
	older := h.seedOrder(t, cutoff.Add(-time.Minute))
	oldest := h.seedOrder(t, cutoff.Add(-time.Hour))

	orders, err := h.svc.ListAutoCompletable(context.Background(), cutoff, 10)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []uuid.UUID{oldest.ID, older.ID}, ids)
	assert.NotContains(t, ids, atCutoff.ID)

	limited, err := h.svc.ListAutoCompletable(context.Background(), cutoff, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldest.ID, limited[0].ID)
}

func TestCancelRollsBackWhenOutboxFails(t *testing.T) {
	h := newHarness(t, failingOutbox{})

	_, err := h.svc.Cancel(context.Background(), CancelInput{OrderID: h.pending.ID, ActorID: h.buyer, Reason: "changed mind"})
	require.Error(t, err)

	assert.Equal(t, enums.OrderStatusPendingDelivery, h.reloadOrder(t, h.pending.ID).Status)
	assert.Equal(t, 0, h.reloadItem(t).Quantity)
}

func TestGetRequiresParty(t *testing.T) {
	h := newHarness(t, nil)

	order, err := h.svc.Get(context.Background(), h.pending.ID, h.seller)
	require.NoError(t, err)
	assert.Equal(t, h.pending.ID, order.ID)

	_, err = h.svc.Get(context.Background(), h.pending.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Get(context.Background(), uuid.New(), h.buyer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	if _, err := NewService(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing repository")
	}
}
