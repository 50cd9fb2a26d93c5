package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is a base model for all entities.
type Model struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetID returns the ID of the entity.
func (m Model) GetID() string {
	return m.ID
}

// BeforeCreate assigns an ID when the caller did not pick one.
// This is a GORM hook and should not be called directly.
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

// BeforeUpdate sets the UpdatedAt field before updating an entity.
// This is a GORM hook and should not be called directly.
func (m *Model) BeforeUpdate(tx *gorm.DB) error {
	m.UpdatedAt = time.Now()
	return nil
}
