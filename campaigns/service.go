package campaigns

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service upserts campaigns. The single Maintain entry point mirrors the
// create-or-update shape of the GraphQL mutation it backs.
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

// MaintainInput carries the writable campaign fields. Status and Metadata are
// optional on update; an empty Status on create defaults to DRAFT.
type MaintainInput struct {
	Title    string
	Status   string
	Metadata map[string]any
}

// Maintain creates a campaign when id is empty, otherwise updates the
// existing one. Updating a missing campaign is ErrNotFound.
func (s *Service) Maintain(input MaintainInput, id string) (*Campaign, error) {
	now := s.nowFunc()

	if id != "" {
		campaign, err := s.repo.GetByID(id)
		if err != nil {
			return nil, errors.Wrapf(err, "Service.Maintain %q", id)
		}

		campaign.Title = input.Title
		if input.Status != "" {
			campaign.Status = input.Status
		}
		if input.Metadata != nil {
			campaign.Metadata = input.Metadata
		}
		campaign.UpdatedAt = now

		if err := s.repo.Update(campaign); err != nil {
			return nil, errors.Wrap(err, "Service.Maintain update")
		}
		return campaign, nil
	}

	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	campaign := &Campaign{
		ID:        uuid.New().String(),
		Title:     input.Title,
		Status:    status,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(campaign); err != nil {
		return nil, errors.Wrap(err, "Service.Maintain create")
	}

	s.logger.Info().Str("event", "campaign.created").Str("campaign_id", campaign.ID).Msg("campaign created")
	return campaign, nil
}

// Get returns a campaign by id.
func (s *Service) Get(id string) (*Campaign, error) {
	return s.repo.GetByID(id)
}
