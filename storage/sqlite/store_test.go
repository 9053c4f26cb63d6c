package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/pressline/go-content-server/articles"
	"github.com/pressline/go-content-server/campaigns"
	"github.com/pressline/go-content-server/token"
	"github.com/pressline/go-content-server/users"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/content.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTokenRoundTrip(t *testing.T) {
	store := openTestStore(t)
	repo := store.Tokens()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 30)
	in := &token.Token{
		ID:         "tok-1",
		OwnerID:    "user-1",
		Name:       "ci",
		SecretHash: token.HashSecret("super-secret"),
		Abilities:  []string{"article:read", "article:write"},
		Metadata:   token.Metadata{"purpose": "ci", "ip_address": "203.0.113.7"},
		CreatedBy:  "admin-1",
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}
	if err := repo.Create(in); err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := repo.GetByID("tok-1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Name != "ci" || got.OwnerID != "user-1" || got.CreatedBy != "admin-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Abilities) != 2 || got.Abilities[0] != "article:read" {
		t.Fatalf("abilities = %v", got.Abilities)
	}
	if got.Metadata["purpose"] != "ci" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, expires)
	}
	if got.LastUsedAt != nil {
		t.Fatalf("last_used_at = %v, want nil", got.LastUsedAt)
	}

	byHash, err := repo.GetBySecretHash(token.HashSecret("super-secret"))
	if err != nil || byHash.ID != "tok-1" {
		t.Fatalf("get by secret hash: %v %+v", err, byHash)
	}

	byName, err := repo.GetByOwnerAndName("user-1", "ci")
	if err != nil || byName.ID != "tok-1" {
		t.Fatalf("get by owner and name: %v %+v", err, byName)
	}

	if _, err := repo.GetByID("missing"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("missing token err = %v, want ErrNotFound", err)
	}
}

func TestListByOwnerFiltersExpired(t *testing.T) {
	store := openTestStore(t)
	repo := store.Tokens()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	seed := []*token.Token{
		{ID: "t-eternal", OwnerID: "user-1", Name: "eternal", SecretHash: "h1", Abilities: []string{"*"}, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "t-live", OwnerID: "user-1", Name: "live", SecretHash: "h2", Abilities: []string{"*"}, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: &future},
		{ID: "t-dead", OwnerID: "user-1", Name: "dead", SecretHash: "h3", Abilities: []string{"*"}, CreatedAt: now.Add(-1 * time.Hour), ExpiresAt: &past},
		{ID: "t-other", OwnerID: "user-2", Name: "other", SecretHash: "h4", Abilities: []string{"*"}, CreatedAt: now},
	}
	for _, tok := range seed {
		if err := repo.Create(tok); err != nil {
			t.Fatalf("create %s: %v", tok.ID, err)
		}
	}

	active, err := repo.ListByOwner("user-1", false, now)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active len = %d, want 2", len(active))
	}
	// Creation time descending.
	if active[0].ID != "t-live" || active[1].ID != "t-eternal" {
		t.Fatalf("active order = %s, %s", active[0].ID, active[1].ID)
	}

	all, err := repo.ListByOwner("user-1", true, now)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all len = %d, want 3", len(all))
	}
}

func TestDeleteExpiredIsSetBasedAndIdempotent(t *testing.T) {
	store := openTestStore(t)
	repo := store.Tokens()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(24 * time.Hour)

	seed := []*token.Token{
		{ID: "gone-1", OwnerID: "u", Name: "a", SecretHash: "h1", Abilities: []string{"*"}, CreatedAt: now, ExpiresAt: &past},
		{ID: "gone-2", OwnerID: "u", Name: "b", SecretHash: "h2", Abilities: []string{"*"}, CreatedAt: now, ExpiresAt: &past},
		{ID: "kept", OwnerID: "u", Name: "c", SecretHash: "h3", Abilities: []string{"*"}, CreatedAt: now, ExpiresAt: &future},
	}
	for _, tok := range seed {
		if err := repo.Create(tok); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	count, err := repo.DeleteExpired(now)
	if err != nil || count != 2 {
		t.Fatalf("delete expired = %d, %v; want 2", count, err)
	}
	count, err = repo.DeleteExpired(now)
	if err != nil || count != 0 {
		t.Fatalf("second delete expired = %d, %v; want 0", count, err)
	}
	if _, err := repo.GetByID("kept"); err != nil {
		t.Fatalf("kept token should survive: %v", err)
	}
}

func TestInTransactionRollsBack(t *testing.T) {
	store := openTestStore(t)
	repo := store.Tokens()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := repo.InTransaction(func(r token.Repo) error {
		if err := r.Create(&token.Token{
			ID: "tx-token", OwnerID: "u", Name: "tx", SecretHash: "hx",
			Abilities: []string{"*"}, CreatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transaction err = %v, want boom", err)
	}

	if _, err := repo.GetByID("tx-token"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("rolled-back token should be absent, got err = %v", err)
	}
}

func TestUpdateLastUsed(t *testing.T) {
	store := openTestStore(t)
	repo := store.Tokens()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	if err := repo.Create(&token.Token{
		ID: "t", OwnerID: "u", Name: "n", SecretHash: "h",
		Abilities: []string{"*"}, CreatedAt: now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	usedAt := now.Add(time.Minute)
	if err := repo.UpdateLastUsed("t", usedAt); err != nil {
		t.Fatalf("update last used: %v", err)
	}
	got, err := repo.GetByID("t")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(usedAt) {
		t.Fatalf("last_used_at = %v, want %v", got.LastUsedAt, usedAt)
	}

	if err := repo.UpdateLastUsed("missing", usedAt); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("missing token err = %v, want ErrNotFound", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := openTestStore(t)
	repo := store.Users()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	user := &users.User{Email: "jane@example.com", Name: "Jane", CreatedAt: now}
	if err := repo.Upsert(user); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if user.ID == "" {
		t.Fatal("upsert should assign an id")
	}

	byEmail, err := repo.GetByEmail("jane@example.com")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("get by email: %v %+v", err, byEmail)
	}
	byID, err := repo.GetByID(user.ID)
	if err != nil || byID.Email != "jane@example.com" {
		t.Fatalf("get by id: %v %+v", err, byID)
	}
	if _, err := repo.GetByEmail("nobody@example.com"); err == nil {
		t.Fatal("missing user should error")
	}
}

func TestArticleRoundTripAndSearch(t *testing.T) {
	store := openTestStore(t)
	repo := store.Articles()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	a := &articles.Article{
		ID: "a-1", Slug: "hello-world", Title: "Hello World", Content: "first post",
		Categories: []string{"tech", "intro"}, Labels: []string{"featured"},
		IsReviewed: true, CreatedBy: "Jane", UpdatedBy: "Jane",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Create(a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetBySlug("hello-world")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if len(got.Categories) != 2 || got.Categories[1] != "intro" {
		t.Fatalf("categories = %v", got.Categories)
	}

	exists, err := repo.SlugExists("hello-world")
	if err != nil || !exists {
		t.Fatalf("slug exists = %v, %v", exists, err)
	}

	found, err := repo.Search(articles.SearchFilters{Category: "tech"}, 10, now)
	if err != nil || len(found) != 1 {
		t.Fatalf("search by category: %v, len %d", err, len(found))
	}
	found, err = repo.Search(articles.SearchFilters{Status: articles.StatusPublished}, 10, now)
	if err != nil || len(found) != 0 {
		t.Fatalf("unpublished article matched published filter: %v, len %d", err, len(found))
	}

	// Soft delete hides the row from normal lookups but keeps it reachable
	// for restore.
	deleted := now.Add(time.Hour)
	got.DeletedAt = &deleted
	got.DeletedBy = "Jane"
	got.UpdatedAt = deleted
	if err := repo.Update(got); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := repo.GetByID("a-1", false); !errors.Is(err, articles.ErrNotFound) {
		t.Fatalf("deleted article visible: %v", err)
	}
	trashed, err := repo.GetByID("a-1", true)
	if err != nil || trashed.DeletedAt == nil {
		t.Fatalf("trashed lookup: %v %+v", err, trashed)
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	store := openTestStore(t)
	repo := store.Campaigns()

	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	c := &campaigns.Campaign{
		ID: "c-1", Title: "Launch", Status: campaigns.StatusDraft,
		Metadata:  map[string]any{"channel": "email"},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID("c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Metadata["channel"] != "email" {
		t.Fatalf("metadata = %v", got.Metadata)
	}

	got.Status = campaigns.StatusActive
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetByID("c-1")
	if err != nil || updated.Status != campaigns.StatusActive {
		t.Fatalf("updated status = %v, %v", updated, err)
	}

	if err := repo.Update(&campaigns.Campaign{ID: "missing", Metadata: map[string]any{}}); !errors.Is(err, campaigns.ErrNotFound) {
		t.Fatalf("missing campaign err = %v, want ErrNotFound", err)
	}
}
