package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// Ledger applies stock movements for sales and cancellations. Mutators run on
// the caller's transaction so the movement commits with the state change that
// caused it.
type Ledger struct {
	repo Repository
}

// NewLedger builds the inventory ledger.
func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &Ledger{repo: repo}, nil
}

// FindItem loads an item for checkout checks.
func (l *Ledger) FindItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := l.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

// DecrementOnSale takes one unit for a settled payment. It fails with
// OUT_OF_STOCK when nothing is left and NOT_FOUND when the item is gone.
func (l *Ledger) DecrementOnSale(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	repo := l.repo.WithTx(tx)
	affected, err := repo.DecrementQuantity(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement item quantity")
	}
	if affected == 1 {
		return nil
	}
	exists, err := repo.ItemExists(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check item")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "item is out of stock").
		WithDetails(map[string]any{"item_id": itemID.String()})
}

// RestoreOnCancel returns the unit taken by a cancelled order.
func (l *Ledger) RestoreOnCancel(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	affected, err := l.repo.WithTx(tx).RestoreQuantity(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore item quantity")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}
