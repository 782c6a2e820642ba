package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Repository holds the only statements allowed to change item stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ItemExists(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementQuantity(ctx context.Context, id uuid.UUID) (int64, error)
	RestoreQuantity(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ItemExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// DecrementQuantity takes one unit if any remain and flips the item to sold on
// the last unit. Hidden items stay hidden. SET expressions read the pre-update row.
func (r *repository) DecrementQuantity(ctx context.Context, id uuid.UUID) (int64, error) {
	status := gorm.Expr("CASE WHEN status <> ? AND quantity - 1 = 0 THEN ? ELSE status END",
		string(enums.ItemStatusHidden), string(enums.ItemStatusSold))
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity > 0", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - 1"),
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// RestoreQuantity returns one unit and reactivates a sold-out item.
func (r *repository) RestoreQuantity(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + 1"),
			"status":     gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", string(enums.ItemStatusSold), string(enums.ItemStatusActive)),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
