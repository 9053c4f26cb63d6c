package articles_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pressline/go-content-server/articles"
	articlerepofake "github.com/pressline/go-content-server/articles/repofake"
	"github.com/pressline/go-content-server/users"
)

var testEditor = &users.User{ID: "user-1", Email: "editor@example.com", Name: "Sam Editor"}

type articleFixture struct {
	now     time.Time
	repo    *articlerepofake.FakeArticleRepo
	service *articles.Service
}

func setupArticleFixture(t *testing.T) *articleFixture {
	t.Helper()

	f := &articleFixture{
		now:  time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC),
		repo: articlerepofake.NewFakeArticleRepo(),
	}
	f.service = articles.NewService(f.repo,
		articles.WithNowFunc(func() time.Time { return f.now }),
	)
	return f
}

func TestCreateGeneratesUniqueSlug(t *testing.T) {
	f := setupArticleFixture(t)

	first, err := f.service.Create(articles.CreateInput{Title: "Breaking News!"}, testEditor)
	require.NoError(t, err)
	require.Equal(t, "breaking-news", first.Slug)
	require.Equal(t, testEditor.Name, first.CreatedBy)
	require.Equal(t, testEditor.Name, first.UpdatedBy)

	second, err := f.service.Create(articles.CreateInput{Title: "Breaking News!"}, testEditor)
	require.NoError(t, err)
	require.Equal(t, "breaking-news-1", second.Slug)

	third, err := f.service.Create(articles.CreateInput{Title: "Breaking News!"}, testEditor)
	require.NoError(t, err)
	require.Equal(t, "breaking-news-2", third.Slug)
}

func TestPublishRequiresReview(t *testing.T) {
	f := setupArticleFixture(t)

	draft, err := f.service.Create(articles.CreateInput{Title: "Draft"}, testEditor)
	require.NoError(t, err)

	_, err = f.service.Publish(draft.ID, testEditor)
	require.ErrorIs(t, err, articles.ErrNotReviewed)

	_, err = f.service.Review(draft.ID, testEditor, true)
	require.NoError(t, err)

	published, err := f.service.Publish(draft.ID, testEditor)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	require.Equal(t, f.now, *published.PublishedAt)
	require.Equal(t, testEditor.Name, published.PublishedBy)
	require.True(t, published.IsPublished(f.now))
}

func TestUnpublishClearsPublication(t *testing.T) {
	f := setupArticleFixture(t)

	a, err := f.service.Create(articles.CreateInput{Title: "Live", IsReviewed: true}, testEditor)
	require.NoError(t, err)
	_, err = f.service.Publish(a.ID, testEditor)
	require.NoError(t, err)

	back, err := f.service.Unpublish(a.ID, testEditor)
	require.NoError(t, err)
	require.Nil(t, back.PublishedAt)
	require.Empty(t, back.PublishedBy)
	require.True(t, back.IsDraft())
}

func TestDeleteAndRestoreRoundTrip(t *testing.T) {
	f := setupArticleFixture(t)

	a, err := f.service.Create(articles.CreateInput{Title: "Ephemeral"}, testEditor)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(a.ID, testEditor))

	_, err = f.service.FindByID(a.ID)
	require.ErrorIs(t, err, articles.ErrNotFound)

	restored, err := f.service.Restore(a.ID, testEditor)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)
	require.Empty(t, restored.DeletedBy)

	found, err := f.service.FindByID(a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, found.ID)
}

func TestUpdateAppliesOnlyGivenFields(t *testing.T) {
	f := setupArticleFixture(t)

	a, err := f.service.Create(articles.CreateInput{
		Title:      "Original",
		Content:    "body",
		Categories: []string{"tech"},
	}, testEditor)
	require.NoError(t, err)

	newTitle := "Rewritten"
	updated, err := f.service.Update(a.ID, articles.UpdateInput{Title: &newTitle}, testEditor)
	require.NoError(t, err)
	require.Equal(t, "Rewritten", updated.Title)
	require.Equal(t, "body", updated.Content)
	require.Equal(t, []string{"tech"}, updated.Categories)
	require.Equal(t, testEditor.Name, updated.EditedBy)
}

func TestSearchFilters(t *testing.T) {
	f := setupArticleFixture(t)

	_, err := f.service.Create(articles.CreateInput{
		Title:      "Go Generics Deep Dive",
		Content:    "types and constraints",
		Categories: []string{"tech", "programming"},
		IsReviewed: true,
	}, testEditor)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	cooking, err := f.service.Create(articles.CreateInput{
		Title:      "Weeknight Pasta",
		Content:    "sauce basics",
		Categories: []string{"cooking"},
	}, testEditor)
	require.NoError(t, err)

	byCategory, err := f.service.Search(articles.SearchFilters{Category: "tech"}, 10)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.Equal(t, "go-generics-deep-dive", byCategory[0].Slug)

	byText, err := f.service.Search(articles.SearchFilters{Search: "pasta"}, 10)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	require.Equal(t, cooking.ID, byText[0].ID)

	drafts, err := f.service.Search(articles.SearchFilters{Status: articles.StatusDraft}, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	// Newest first.
	require.Equal(t, cooking.ID, drafts[0].ID)
}

func TestFindBySlugAndByIDAreDistinct(t *testing.T) {
	f := setupArticleFixture(t)

	a, err := f.service.Create(articles.CreateInput{Title: "Addressable"}, testEditor)
	require.NoError(t, err)

	bySlug, err := f.service.FindBySlug("addressable")
	require.NoError(t, err)
	require.Equal(t, a.ID, bySlug.ID)

	_, err = f.service.FindByID("addressable")
	require.ErrorIs(t, err, articles.ErrNotFound)
}
