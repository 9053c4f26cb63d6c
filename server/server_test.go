package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pressline/go-content-server/articles"
	articlerepofake "github.com/pressline/go-content-server/articles/repofake"
	campaignrepofake "github.com/pressline/go-content-server/campaigns/repofake"
	"github.com/pressline/go-content-server/campaigns"
	"github.com/pressline/go-content-server/internal/config"
	"github.com/pressline/go-content-server/server"
	"github.com/pressline/go-content-server/token"
	tokenrepofake "github.com/pressline/go-content-server/token/repofake"
	"github.com/pressline/go-content-server/users"
	fakeuserrepo "github.com/pressline/go-content-server/users/repofake"
)

type serverFixture struct {
	t       *testing.T
	now     time.Time
	manager *token.Manager
	server  *server.Server

	admin       *users.User
	adminSecret string
}

func newServerFixture(t *testing.T) *serverFixture {
	f := &serverFixture{
		t:   t,
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	userRepo := fakeuserrepo.NewFakeUserRepo()
	admin := &users.User{Email: "admin@example.com", Name: "Admin", CreatedAt: f.now}
	require.NoError(t, userRepo.Upsert(admin))
	f.admin = admin

	f.manager = token.NewManager(tokenrepofake.NewFakeTokenRepo(), userRepo, token.WithNowFunc(clock))
	secret, _, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner: admin.Email,
		Name:  "admin-token",
	}, token.Provenance{})
	require.NoError(t, err)
	f.adminSecret = secret

	articleService := articles.NewService(articlerepofake.NewFakeArticleRepo(), articles.WithNowFunc(clock))
	campaignService := campaigns.NewService(campaignrepofake.NewFakeCampaignRepo(), campaigns.WithNowFunc(clock))

	cfg := config.Config{AppName: "test", Env: "TEST", AllowedOrigins: []string{"*"}}
	srv, err := server.New(cfg, server.Services{
		Tokens:    f.manager,
		Users:     userRepo,
		Articles:  articleService,
		Campaigns: campaignService,
	}, zerolog.Nop(), server.WithNowFunc(clock))
	require.NoError(t, err)
	f.server = srv

	return f
}

func (f *serverFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// do sends an authenticated JSON request and decodes the response body.
func (f *serverFixture) do(method, path, secret string, body any, out any) *httptest.ResponseRecorder {
	f.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (f *serverFixture) graphql(query string, variables map[string]any) map[string]any {
	f.t.Helper()

	var result struct {
		Data   map[string]any   `json:"data"`
		Errors []map[string]any `json:"errors"`
	}
	rec := f.do(http.MethodPost, "/graphql", f.adminSecret, map[string]any{
		"query":     query,
		"variables": variables,
	}, &result)
	require.Equal(f.t, http.StatusOK, rec.Code)
	require.Empty(f.t, result.Errors, "graphql errors: %v", result.Errors)
	return result.Data
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingBearerTokenIsRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownSecretIsRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", "not-a-real-secret", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScopedTokenCannotAdministerTokens(t *testing.T) {
	f := newServerFixture(t)

	secret, _, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner:     f.admin.Email,
		Name:      "reader",
		Abilities: []string{"articles:read"},
	}, token.Provenance{})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", secret, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUsageStampThrottledToOncePerMinute(t *testing.T) {
	f := newServerFixture(t)

	var listed struct {
		Tokens []*token.Token `json:"tokens"`
	}

	rec := f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", f.adminSecret, nil, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	firstUse := f.now

	tok, err := f.manager.Authenticate(f.adminSecret)
	require.NoError(t, err)
	require.NotNil(t, tok.LastUsedAt)
	require.True(t, tok.LastUsedAt.Equal(firstUse))

	// Thirty seconds later the stamp must not move
	f.advance(30 * time.Second)
	rec = f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", f.adminSecret, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tok, err = f.manager.Authenticate(f.adminSecret)
	require.NoError(t, err)
	require.True(t, tok.LastUsedAt.Equal(firstUse))

	// Past the minute boundary it moves again
	f.advance(time.Minute)
	rec = f.do(http.MethodGet, "/admin/tokens?owner=admin@example.com", f.adminSecret, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tok, err = f.manager.Authenticate(f.adminSecret)
	require.NoError(t, err)
	require.True(t, tok.LastUsedAt.After(firstUse))
}

func TestCreateTokenEndpoint(t *testing.T) {
	f := newServerFixture(t)

	var created struct {
		Token  string       `json:"token"`
		Record *token.Token `json:"record"`
	}
	rec := f.do(http.MethodPost, "/admin/tokens", f.adminSecret, map[string]any{
		"owner":           f.admin.Email,
		"name":            "deploy",
		"abilities":       []string{"articles:publish"},
		"expires_in_days": 30,
	}, &created)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, created.Token)
	require.Equal(t, "deploy", created.Record.Name)
	require.Equal(t, []string{"articles:publish"}, created.Record.Abilities)
	require.NotNil(t, created.Record.ExpiresAt)

	// The issuing actor and call origin are recorded as provenance
	require.Equal(t, f.admin.ID, created.Record.CreatedBy)
	require.NotEmpty(t, created.Record.Metadata[token.MetaIPAddress])

	// The digest never appears in the response
	require.NotContains(t, rec.Body.String(), "secret_hash")
}

func TestCreateTokenUnknownOwnerIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/admin/tokens", f.adminSecret, map[string]any{
		"owner": "ghost@example.com",
		"name":  "nope",
	}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevokeTokenEndpointValidatesSelectors(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodDelete, "/admin/tokens", f.adminSecret, map[string]any{
		"owner": f.admin.Email,
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeTokenEndpoint(t *testing.T) {
	f := newServerFixture(t)

	_, created, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner: f.admin.Email,
		Name:  "doomed",
	}, token.Provenance{})
	require.NoError(t, err)

	var result struct {
		Revoked bool `json:"revoked"`
	}
	rec := f.do(http.MethodDelete, "/admin/tokens", f.adminSecret, map[string]any{
		"owner": f.admin.Email,
		"id":    created.ID,
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, result.Revoked)

	_, err = f.manager.GetTokenInfo(created.ID)
	require.ErrorIs(t, err, token.ErrNotFound)
}

func TestRotateTokenEndpoint(t *testing.T) {
	f := newServerFixture(t)

	oldSecret, oldTok, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner: f.admin.Email,
		Name:  "ci",
	}, token.Provenance{})
	require.NoError(t, err)

	var rotated struct {
		Token  string       `json:"token"`
		Record *token.Token `json:"record"`
	}
	rec := f.do(http.MethodPost, "/admin/tokens/rotate", f.adminSecret, map[string]any{
		"owner":    f.admin.Email,
		"old_name": "ci",
		"new_name": "ci-v2",
	}, &rotated)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ci-v2", rotated.Record.Name)
	require.Equal(t, "ci", rotated.Record.Metadata[token.MetaRotatedFrom])

	// Old credential is dead, new one works
	_, err = f.manager.Authenticate(oldSecret)
	require.ErrorIs(t, err, token.ErrInvalidToken)
	_, err = f.manager.Authenticate(rotated.Token)
	require.NoError(t, err)
	_, err = f.manager.GetTokenInfo(oldTok.ID)
	require.ErrorIs(t, err, token.ErrNotFound)
}

func TestTokenInfoEndpoint(t *testing.T) {
	f := newServerFixture(t)

	_, created, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner: f.admin.Email,
		Name:  "lookup-me",
	}, token.Provenance{})
	require.NoError(t, err)

	var info struct {
		Record *token.Token `json:"record"`
	}
	rec := f.do(http.MethodGet, fmt.Sprintf("/admin/tokens/%s", created.ID), f.adminSecret, nil, &info)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.ID, info.Record.ID)

	rec = f.do(http.MethodGet, "/admin/tokens/no-such-id", f.adminSecret, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTokensStatusFilters(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner:         f.admin.Email,
		Name:          "short-lived",
		ExpiresInDays: 3,
	}, token.Provenance{})
	require.NoError(t, err)

	var listed struct {
		Tokens []*token.Token `json:"tokens"`
		Count  int            `json:"count"`
	}
	rec := f.do(http.MethodGet, "/admin/tokens?status=expiring&days=7", f.adminSecret, nil, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, listed.Count)
	require.Equal(t, "short-lived", listed.Tokens[0].Name)

	rec = f.do(http.MethodGet, "/admin/tokens?status=bogus", f.adminSecret, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupEndpointRemovesExpiredTokens(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.manager.CreateToken(token.CreateTokenRequest{
		Owner:         f.admin.Email,
		Name:          "stale",
		ExpiresInDays: 1,
	}, token.Provenance{})
	require.NoError(t, err)

	f.advance(48 * time.Hour)

	var result struct {
		Removed int `json:"removed"`
	}
	rec := f.do(http.MethodPost, "/admin/tokens/cleanup", f.adminSecret, nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, result.Removed)

	rec = f.do(http.MethodPost, "/admin/tokens/cleanup", f.adminSecret, nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, result.Removed)
}
