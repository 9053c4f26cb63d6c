package articles

import "time"

// Publication status filter values used by Search.
const (
	StatusPublished = "PUBLISHED"
	StatusDraft     = "DRAFT"
)

// SearchFilters narrows a Search call. Zero values mean "no filter".
type SearchFilters struct {
	Category   string // substring match against the category list
	Label      string // substring match against the label list
	Search     string // substring match against title or content
	IsReviewed *bool
	Status     string // StatusPublished or StatusDraft
}

// Repo persists articles. Soft-deleted rows are excluded everywhere unless a
// method says otherwise.
type Repo interface {
	Create(a *Article) error
	Update(a *Article) error
	// GetByID returns the article; with includeDeleted it also finds
	// soft-deleted rows (the restore path needs that).
	GetByID(id string, includeDeleted bool) (*Article, error)
	GetBySlug(slug string) (*Article, error)
	// SlugExists reports whether any row, deleted or not, already uses the slug.
	SlugExists(slug string) (bool, error)
	// Search returns matching articles ordered by creation time descending,
	// capped at limit. The evaluation instant decides what counts as published.
	Search(filters SearchFilters, limit int, now time.Time) ([]*Article, error)
}
