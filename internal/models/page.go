package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is one image in a user's flipbook. Images themselves live elsewhere; only the URL is kept.
type Page struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	OwnerID          string    `gorm:"not null;uniqueIndex:idx_pages_owner_position" json:"owner_id"`
	Position         int       `gorm:"not null;uniqueIndex:idx_pages_owner_position" json:"position"`
	URL              string    `gorm:"type:text;not null" json:"url"`
	ShortDescription string    `gorm:"type:text" json:"short_description,omitempty"`
}

// BeforeCreate assigns a random id when none is set
func (p *Page) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
