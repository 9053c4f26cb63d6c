package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pressline/go-content-server/token"
	"github.com/pressline/go-content-server/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyToken stores the authenticated API token
	ContextKeyToken ContextKey = "api_token"
	// ContextKeyUser stores the token's owner
	ContextKeyUser ContextKey = "api_user"
)

func TokenFromContext(ctx context.Context) *token.Token {
	tok, _ := ctx.Value(ContextKeyToken).(*token.Token)
	return tok
}

func UserFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(ContextKeyUser).(*users.User)
	return user
}

// RequireToken is middleware that validates a Bearer API token, loads the
// owning user and injects both into the request context. After the handler
// runs it stamps the token's last use, at most once per active minute so a
// busy credential does not turn every request into a write.
func (s *Server) RequireToken() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			secret := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			tok, err := s.tokens.Authenticate(secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			owner, err := s.users.GetByID(tok.OwnerID)
			if err != nil || owner == nil {
				writeError(w, http.StatusUnauthorized, "unknown token owner")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyToken, tok)
			ctx = context.WithValue(ctx, ContextKeyUser, owner)
			next(w, r.WithContext(ctx))

			if tok.LastUsedAt == nil || s.nowFunc().Sub(*tok.LastUsedAt) >= time.Minute {
				if err := s.tokens.UpdateLastUsed(tok); err != nil {
					s.logger.Warn().Err(err).Str("token_id", tok.ID).Msg("failed to stamp token usage")
				}
			}
		}
	}
}

// RequireAbility rejects tokens that do not carry the given ability. Must run
// after RequireToken.
func (s *Server) RequireAbility(ability string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromContext(r.Context())
			if tok == nil || !tok.Can(ability) {
				writeError(w, http.StatusForbidden, "token lacks required ability")
				return
			}
			next(w, r)
		}
	}
}
