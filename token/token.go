package token

import (
	"time"
)

// Reserved metadata keys written from Provenance at creation time. Caller
// supplied values for these keys are overwritten, everything else is kept.
const (
	MetaCreatedAt   = "created_at"
	MetaIPAddress   = "ip_address"
	MetaUserAgent   = "user_agent"
	MetaRotatedFrom = "rotated_from"
)

// AbilityAll grants a token unrestricted access.
const AbilityAll = "*"

// Metadata is an open key/value map capturing token provenance (creation IP,
// user agent, purpose/environment tags, rotation back-references). Values may
// be strings, numbers, booleans or nested maps; the shape is deliberately
// loose so callers can attach their own fields.
type Metadata map[string]any

// Token is a persisted bearer credential record. The plaintext secret is
// returned exactly once at creation; only its digest is stored.
type Token struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"` // sha-256 hex digest, set once, never serialized
	Abilities  []string   `json:"abilities"`
	Metadata   Metadata   `json:"metadata,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Provenance carries the request context captured when a token is issued.
// It is passed explicitly rather than read from ambient request state so the
// manager stays testable without a simulated request environment.
type Provenance struct {
	ActorID   string // principal performing the issuance (may differ from the owner)
	IPAddress string
	UserAgent string
}

// IsExpired reports whether the token's expiry is at or before now.
// Tokens without an expiry never expire.
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// IsActive reports whether the token is usable: no expiry, or expiry in the
// future. Revoked tokens are hard-deleted, so any loaded record that is not
// expired is active.
func (t *Token) IsActive(now time.Time) bool {
	return !t.IsExpired(now)
}

// ExpiresWithin reports whether the token expires in the window (now, now+d].
func (t *Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	if t.ExpiresAt == nil || !t.ExpiresAt.After(now) {
		return false
	}
	return !t.ExpiresAt.After(now.Add(d))
}

// Unused reports whether the token has seen no use since cutoff: either never
// used and created at or before cutoff, or last used at or before cutoff.
func (t *Token) Unused(cutoff time.Time) bool {
	if t.LastUsedAt == nil {
		return !t.CreatedAt.After(cutoff)
	}
	return !t.LastUsedAt.After(cutoff)
}

// Can reports whether the token grants the given ability, either through the
// wildcard or an exact scope match.
func (t *Token) Can(ability string) bool {
	for _, a := range t.Abilities {
		if a == AbilityAll || a == ability {
			return true
		}
	}
	return false
}
