package articles

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pressline/go-content-server/users"
)

const defaultSearchLimit = 10

// Service implements the article publishing workflow. Every mutation is
// attributed to the acting principal by name.
type Service struct {
	repo    Repo
	logger  zerolog.Logger
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(repo Repo, options ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// CreateInput carries the writable fields of a new article.
type CreateInput struct {
	Slug           string // generated from the title when empty
	Title          string
	Content        string
	ContentRewrite string
	Categories     []string
	Labels         []string
	IsReviewed     bool
}

// Create persists a new draft. A missing slug is generated from the title
// and uniquified with a numeric suffix.
func (s *Service) Create(input CreateInput, actor *users.User) (*Article, error) {
	now := s.nowFunc()

	slug := input.Slug
	if slug == "" {
		var err error
		slug, err = s.uniqueSlug(Slugify(input.Title))
		if err != nil {
			return nil, err
		}
	}

	article := &Article{
		ID:             uuid.New().String(),
		Slug:           slug,
		Title:          input.Title,
		Content:        input.Content,
		ContentRewrite: input.ContentRewrite,
		Categories:     input.Categories,
		Labels:         input.Labels,
		IsReviewed:     input.IsReviewed,
		CreatedBy:      actor.Name,
		UpdatedBy:      actor.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(article); err != nil {
		return nil, errors.Wrap(err, "Service.Create")
	}

	s.logger.Info().Str("event", "article.created").Str("article_id", article.ID).Str("slug", article.Slug).Msg("article created")
	return article, nil
}

// UpdateInput carries optional field changes; nil pointers leave the field alone.
type UpdateInput struct {
	Title          *string
	Content        *string
	ContentRewrite *string
	Categories     []string
	Labels         []string
}

// Update applies the given changes and stamps the editing actor.
func (s *Service) Update(id string, input UpdateInput, actor *users.User) (*Article, error) {
	article, err := s.repo.GetByID(id, false)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Update")
	}

	if input.Title != nil {
		article.Title = *input.Title
	}
	if input.Content != nil {
		article.Content = *input.Content
	}
	if input.ContentRewrite != nil {
		article.ContentRewrite = *input.ContentRewrite
	}
	if input.Categories != nil {
		article.Categories = input.Categories
	}
	if input.Labels != nil {
		article.Labels = input.Labels
	}
	article.UpdatedBy = actor.Name
	article.EditedBy = actor.Name
	article.UpdatedAt = s.nowFunc()

	if err := s.repo.Update(article); err != nil {
		return nil, errors.Wrap(err, "Service.Update save")
	}
	return article, nil
}

// Publish makes a reviewed article live. Unreviewed articles are rejected.
func (s *Service) Publish(id string, actor *users.User) (*Article, error) {
	article, err := s.repo.GetByID(id, false)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Publish")
	}
	if !article.IsReviewed {
		return nil, ErrNotReviewed
	}

	now := s.nowFunc()
	article.PublishedAt = &now
	article.PublishedBy = actor.Name
	article.UpdatedBy = actor.Name
	article.UpdatedAt = now

	if err := s.repo.Update(article); err != nil {
		return nil, errors.Wrap(err, "Service.Publish save")
	}

	s.logger.Info().Str("event", "article.published").Str("article_id", article.ID).Str("published_by", actor.Name).Msg("article published")
	return article, nil
}

// Unpublish takes an article back to draft.
func (s *Service) Unpublish(id string, actor *users.User) (*Article, error) {
	article, err := s.repo.GetByID(id, false)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Unpublish")
	}

	article.PublishedAt = nil
	article.PublishedBy = ""
	article.UpdatedBy = actor.Name
	article.UpdatedAt = s.nowFunc()

	if err := s.repo.Update(article); err != nil {
		return nil, errors.Wrap(err, "Service.Unpublish save")
	}
	return article, nil
}

// Review records the review outcome.
func (s *Service) Review(id string, actor *users.User, approved bool) (*Article, error) {
	article, err := s.repo.GetByID(id, false)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Review")
	}

	article.IsReviewed = approved
	article.UpdatedBy = actor.Name
	article.UpdatedAt = s.nowFunc()

	if err := s.repo.Update(article); err != nil {
		return nil, errors.Wrap(err, "Service.Review save")
	}
	return article, nil
}

// Delete soft-deletes the article, recording who removed it.
func (s *Service) Delete(id string, actor *users.User) error {
	article, err := s.repo.GetByID(id, false)
	if err != nil {
		return errors.Wrap(err, "Service.Delete")
	}

	now := s.nowFunc()
	article.DeletedAt = &now
	article.DeletedBy = actor.Name

	if err := s.repo.Update(article); err != nil {
		return errors.Wrap(err, "Service.Delete save")
	}

	s.logger.Info().Str("event", "article.deleted").Str("article_id", article.ID).Str("deleted_by", actor.Name).Msg("article deleted")
	return nil
}

// Restore brings a soft-deleted article back.
func (s *Service) Restore(id string, actor *users.User) (*Article, error) {
	article, err := s.repo.GetByID(id, true)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Restore")
	}

	article.DeletedAt = nil
	article.DeletedBy = ""
	article.UpdatedBy = actor.Name
	article.UpdatedAt = s.nowFunc()

	if err := s.repo.Update(article); err != nil {
		return nil, errors.Wrap(err, "Service.Restore save")
	}
	return article, nil
}

// Search returns matching articles, newest first.
func (s *Service) Search(filters SearchFilters, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	found, err := s.repo.Search(filters, limit, s.nowFunc())
	if err != nil {
		return nil, errors.Wrap(err, "Service.Search")
	}
	return found, nil
}

// FindByID and FindBySlug are deliberately two explicit lookups instead of a
// polymorphic id-or-slug search, so a slug that looks like an id cannot be
// misrouted.
func (s *Service) FindByID(id string) (*Article, error) {
	return s.repo.GetByID(id, false)
}

func (s *Service) FindBySlug(slug string) (*Article, error) {
	return s.repo.GetBySlug(slug)
}

// uniqueSlug appends -1, -2, ... until the slug is free.
func (s *Service) uniqueSlug(base string) (string, error) {
	slug := base
	for count := 1; ; count++ {
		exists, err := s.repo.SlugExists(slug)
		if err != nil {
			return "", errors.Wrap(err, "Service.uniqueSlug")
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, count)
	}
}
