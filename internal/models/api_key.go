package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is the tenant credential. Resolving one supplies the
// organization context the admission path requires.
type APIKey struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	KeyHash        string     `gorm:"uniqueIndex;not null" json:"-"`
	Name           string     `gorm:"not null" json:"name"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	CreatedBy      string     `json:"created_by"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (APIKey) TableName() string {
	return "api_keys"
}
