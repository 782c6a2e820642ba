package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders table. Mark*
// helpers are compare-and-swap writes guarded on pending_delivery.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, update DeliveryUpdate) (int64, error)
	MarkCancelled(ctx context.Context, update CancellationUpdate) (int64, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
