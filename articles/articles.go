package articles

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("article not found")
	ErrNotReviewed = errors.New("article must be reviewed before publishing")
)

// Article is a piece of content moving through a draft -> reviewed ->
// published workflow. Deletion is soft: a deleted article keeps its row and
// can be restored.
type Article struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	ContentRewrite string     `json:"content_rewrite,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	IsReviewed     bool       `json:"is_reviewed"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`

	// Audit trail, stored as actor names.
	CreatedBy   string `json:"created_by,omitempty"`
	UpdatedBy   string `json:"updated_by,omitempty"`
	EditedBy    string `json:"edited_by,omitempty"`
	PublishedBy string `json:"published_by,omitempty"`
	DeletedBy   string `json:"deleted_by,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsPublished reports whether the article has a publication time at or
// before now.
func (a *Article) IsPublished(now time.Time) bool {
	return a.PublishedAt != nil && !a.PublishedAt.After(now)
}

func (a *Article) IsDraft() bool {
	return a.PublishedAt == nil
}

func (a *Article) IsDeleted() bool {
	return a.DeletedAt != nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a title and collapses every non-alphanumeric run into a
// single hyphen.
func Slugify(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}
