package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is owned by the accounts collaborator; settlement only reads the
// verification flag.
type Seller struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Verified   bool       `gorm:"column:verified;not null;default:false"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Seller) TableName() string { return "sellers" }
