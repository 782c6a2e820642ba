package sellers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// Verifier answers whether a seller passed account verification. Seller rows
// are written by the accounts service; this package only reads them.
type Verifier interface {
	IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

type verifier struct {
	db *gorm.DB
}

// NewVerifier returns a Verifier backed by the sellers table.
func NewVerifier(db *gorm.DB) (Verifier, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &verifier{db: db}, nil
}

// IsVerified returns false for unknown sellers.
func (v *verifier) IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	var seller models.Seller
	err := v.db.WithContext(ctx).
		Select("id", "verified").
		Where("id = ?", sellerID).
		First(&seller).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return seller.Verified, nil
}
