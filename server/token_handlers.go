package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/pressline/go-content-server/token"
)

type createTokenRequest struct {
	Owner         string         `json:"owner"`
	Name          string         `json:"name"`
	Abilities     []string       `json:"abilities"`
	ExpiresInDays int            `json:"expires_in_days"`
	Metadata      token.Metadata `json:"metadata"`
}

type tokenResponse struct {
	Token  string       `json:"token,omitempty"` // plaintext secret, shown once
	Record *token.Token `json:"record"`
}

// CreateTokenHandler issues a new token. The plaintext secret appears in this
// response and nowhere else.
func (s *Server) CreateTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plaintext, tok, err := s.tokens.CreateToken(token.CreateTokenRequest{
			Owner:         req.Owner,
			Name:          req.Name,
			Abilities:     req.Abilities,
			ExpiresInDays: req.ExpiresInDays,
			Metadata:      req.Metadata,
		}, s.provenanceFrom(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, tokenResponse{Token: plaintext, Record: tok})
	}
}

// ListTokensHandler lists an owner's tokens, or classifies tokens across all
// owners when a status filter is supplied:
//
//	GET /admin/tokens?owner=jane@example.com&include_expired=true
//	GET /admin/tokens?status=expiring&days=14
//	GET /admin/tokens?status=expired
//	GET /admin/tokens?status=unused&days=60
func (s *Server) ListTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var tokens []*token.Token
		var err error
		switch status := q.Get("status"); status {
		case "":
			owner := q.Get("owner")
			if owner == "" {
				writeError(w, http.StatusBadRequest, "owner or status query parameter is required")
				return
			}
			tokens, err = s.tokens.ListTokens(owner, q.Get("include_expired") == "true")
		case "expiring":
			tokens, err = s.tokens.GetExpiringTokens(intQuery(q.Get("days")))
		case "expired":
			tokens, err = s.tokens.GetExpiredTokens()
		case "unused":
			tokens, err = s.tokens.GetUnusedTokens(intQuery(q.Get("days")))
		default:
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens, "count": len(tokens)})
	}
}

type revokeTokenRequest struct {
	Owner string `json:"owner"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// RevokeTokenHandler revokes by id or by name, exactly one of the two.
func (s *Server) RevokeTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revokeTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		revoked, err := s.tokens.RevokeToken(req.Owner, req.ID, req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
	}
}

type rotateTokenRequest struct {
	Owner         string         `json:"owner"`
	OldName       string         `json:"old_name"`
	NewName       string         `json:"new_name"`
	Abilities     []string       `json:"abilities"`
	ExpiresInDays int            `json:"expires_in_days"`
	Metadata      token.Metadata `json:"metadata"`
}

// RotateTokenHandler replaces a token, returning the new plaintext secret.
func (s *Server) RotateTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rotateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plaintext, tok, err := s.tokens.RotateToken(token.RotateTokenRequest{
			Owner:         req.Owner,
			OldName:       req.OldName,
			NewName:       req.NewName,
			Abilities:     req.Abilities,
			ExpiresInDays: req.ExpiresInDays,
			Metadata:      req.Metadata,
		}, s.provenanceFrom(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{Token: plaintext, Record: tok})
	}
}

// TokenInfoHandler returns one token record by id, across all owners.
func (s *Server) TokenInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := s.tokens.GetTokenInfo(r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Record: tok})
	}
}

// CleanupTokensHandler bulk-deletes expired tokens.
func (s *Server) CleanupTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := s.tokens.RevokeExpiredTokens()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	}
}

// provenanceFrom captures who asked for the operation and from where.
func (s *Server) provenanceFrom(r *http.Request) token.Provenance {
	actorID := ""
	if user := UserFromContext(r.Context()); user != nil {
		actorID = user.ID
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return token.Provenance{
		ActorID:   actorID,
		IPAddress: host,
		UserAgent: r.UserAgent(),
	}
}

// intQuery parses an optional numeric query parameter; the manager applies
// its own default for zero.
func intQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
