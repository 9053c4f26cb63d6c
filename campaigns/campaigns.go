package campaigns

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("campaign not found")

// Campaign statuses. New campaigns start as drafts.
const (
	StatusDraft    = "DRAFT"
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// Campaign is a marketing campaign with a free-form metadata document.
type Campaign struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Repo persists campaigns.
type Repo interface {
	Create(c *Campaign) error
	Update(c *Campaign) error
	GetByID(id string) (*Campaign, error)
	List(limit int) ([]*Campaign, error)
}
