package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Repository is the payment record store. The Mark* helpers are
// compare-and-swap writes that only move a pending row; callers inspect the
// affected row count to learn whether they won.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason enums.PaymentFailureReason) (int64, error)
	RevertToOutOfStock(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":     enums.PaymentStatusSuccess,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason enums.PaymentFailureReason) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// RevertToOutOfStock fails a payment that the current transaction just moved
// to success but could not be fulfilled. Outside that transaction the row is
// only ever seen going from pending to failed.
func (r *repository) RevertToOutOfStock(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusSuccess).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": enums.FailureReasonOutOfStock,
			"paid_at":        nil,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
