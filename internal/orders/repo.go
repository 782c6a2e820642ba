package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkDelivered(ctx context.Context, update DeliveryUpdate) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", update.OrderID, enums.OrderStatusPendingDelivery)
	if update.CreatedBefore != nil {
		query = query.Where("created_at < ?", *update.CreatedBefore)
	}
	res := query.Updates(map[string]any{
		"status":        enums.OrderStatusDelivered,
		"delivered_at":  update.At,
		"completed_via": update.Via,
		"updated_at":    update.At,
	})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkCancelled(ctx context.Context, update CancellationUpdate) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", update.OrderID, enums.OrderStatusPendingDelivery).
		Updates(map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancellation_reason": update.Reason,
			"cancelled_by":        update.ActorID,
			"cancelled_at":        update.At,
			"updated_at":          update.At,
		})
	return res.RowsAffected, res.Error
}

// ListPendingCreatedBefore returns the oldest pending orders first so a
// capped batch always drains the backlog from the front.
func (r *repository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingDelivery, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
