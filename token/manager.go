package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pressline/go-content-server/users"
)

const defaultSecretLength = 32 // 256 bits

// Manager owns the full lifecycle of API bearer tokens: issuance, lookup,
// rotation, revocation, expiry classification and usage tracking. It depends
// on a credential store (Repo) and a principal directory (users.Repo) and
// holds no cross-call state of its own.
type Manager struct {
	repo         Repo
	users        users.Repo
	logger       zerolog.Logger
	secretLength int
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc overrides the clock, used in tests.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the audit logger. Events carry token ids and names only,
// never secret material.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSecretLength sets the number of random bytes in generated secrets.
func WithSecretLength(n int) ManagerOption {
	return func(m *Manager) {
		m.secretLength = n
	}
}

func NewManager(repo Repo, userRepo users.Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:         repo,
		users:        userRepo,
		logger:       zerolog.Nop(),
		secretLength: defaultSecretLength,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CreateTokenRequest describes a token issuance. Owner is a principal
// identifier, resolved by email first and then by id.
type CreateTokenRequest struct {
	Owner         string
	Name          string
	Abilities     []string // defaults to ["*"]
	ExpiresInDays int      // 0 means the token never expires
	Metadata      Metadata
}

// CreateToken issues a fresh bearer token for the owner and returns the
// plaintext secret exactly once, together with the persisted record. Only the
// sha-256 digest of the secret is stored.
func (m *Manager) CreateToken(req CreateTokenRequest, prov Provenance) (string, *Token, error) {
	if req.Name == "" {
		return "", nil, errors.Wrap(ErrInvalidArgument, "token name is required")
	}
	if req.ExpiresInDays < 0 {
		return "", nil, errors.Wrap(ErrInvalidArgument, "expiry days must be positive")
	}

	owner, err := m.resolveOwner(req.Owner)
	if err != nil {
		return "", nil, err
	}

	var plaintext string
	var tok *Token
	err = m.repo.InTransaction(func(r Repo) error {
		plaintext, tok, err = m.issue(r, owner, req.Name, req.Abilities, req.ExpiresInDays, req.Metadata, prov)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	m.logger.Info().
		Str("event", "token.created").
		Str("token_id", tok.ID).
		Str("token_name", tok.Name).
		Str("owner_id", tok.OwnerID).
		Str("created_by", tok.CreatedBy).
		Msg("api token created")

	return plaintext, tok, nil
}

// RevokeToken hard-deletes the owner's tokens matching the given id or name.
// Exactly one selector must be supplied. Returns whether at least one row was
// removed; revoking a token that does not exist is not an error.
func (m *Manager) RevokeToken(owner, tokenID, tokenName string) (bool, error) {
	if (tokenID == "") == (tokenName == "") {
		return false, errors.Wrap(ErrInvalidArgument, "exactly one of token id or token name is required")
	}

	principal, err := m.resolveOwner(owner)
	if err != nil {
		return false, err
	}

	var removed int
	if tokenID != "" {
		removed, err = m.repo.DeleteByID(principal.ID, tokenID)
	} else {
		removed, err = m.repo.DeleteByName(principal.ID, tokenName)
	}
	if err != nil {
		return false, errors.Wrap(err, "Manager.RevokeToken delete")
	}

	if removed > 0 {
		m.logger.Info().
			Str("event", "token.revoked").
			Str("owner_id", principal.ID).
			Str("token_id", tokenID).
			Str("token_name", tokenName).
			Int("removed", removed).
			Msg("api token revoked")
	}

	return removed > 0, nil
}

// RotateTokenRequest describes a rotation. NewName defaults to OldName
// suffixed with the creation date. Abilities and remaining validity are
// inherited from the old token when left empty.
type RotateTokenRequest struct {
	Owner         string
	OldName       string
	NewName       string
	Abilities     []string
	ExpiresInDays int
	Metadata      Metadata
}

// RotateToken atomically issues a replacement token and revokes the old one.
// The new token always records the old token's name under the rotated_from
// metadata key. When the old token had an expiry, the replacement expires the
// same number of days from now as the old one had remaining, so a credential
// about to expire rotates into one that also expires soon.
func (m *Manager) RotateToken(req RotateTokenRequest, prov Provenance) (string, *Token, error) {
	if req.ExpiresInDays < 0 {
		return "", nil, errors.Wrap(ErrInvalidArgument, "expiry days must be positive")
	}

	owner, err := m.resolveOwner(req.Owner)
	if err != nil {
		return "", nil, err
	}

	now := m.nowFunc()

	var plaintext string
	var tok *Token
	err = m.repo.InTransaction(func(r Repo) error {
		old, err := r.GetByOwnerAndName(owner.ID, req.OldName)
		if err != nil {
			return errors.Wrapf(err, "Manager.RotateToken %q", req.OldName)
		}

		newName := req.NewName
		if newName == "" {
			newName = old.Name + "-" + now.Format("20060102")
		}
		abilities := req.Abilities
		if len(abilities) == 0 {
			abilities = old.Abilities
		}
		days := req.ExpiresInDays
		if days == 0 && old.ExpiresAt != nil {
			days = remainingDays(*old.ExpiresAt, now)
		}

		metadata := req.Metadata.clone()
		metadata[MetaRotatedFrom] = old.Name

		plaintext, tok, err = m.issue(r, owner, newName, abilities, days, metadata, prov)
		if err != nil {
			return err
		}

		// Delete by id, not name, so rotating onto the same name cannot
		// remove the replacement that was just written.
		if _, err := r.DeleteByID(owner.ID, old.ID); err != nil {
			return errors.Wrap(err, "Manager.RotateToken revoke old")
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	m.logger.Info().
		Str("event", "token.rotated").
		Str("owner_id", owner.ID).
		Str("old_name", req.OldName).
		Str("token_id", tok.ID).
		Str("token_name", tok.Name).
		Msg("api token rotated")

	return plaintext, tok, nil
}

// ListTokens returns the owner's tokens ordered by creation time descending.
// Tokens without an expiry are always included regardless of includeExpired.
func (m *Manager) ListTokens(owner string, includeExpired bool) ([]*Token, error) {
	principal, err := m.resolveOwner(owner)
	if err != nil {
		return nil, err
	}
	tokens, err := m.repo.ListByOwner(principal.ID, includeExpired, m.nowFunc())
	if err != nil {
		return nil, errors.Wrap(err, "Manager.ListTokens")
	}
	return tokens, nil
}

// GetTokenInfo looks a token up by id across all owners. This is an
// administrative path with no ownership filter; authorization is the caller's
// responsibility.
func (m *Manager) GetTokenInfo(tokenID string) (*Token, error) {
	tok, err := m.repo.GetByID(tokenID)
	if err != nil {
		return nil, errors.Wrapf(err, "Manager.GetTokenInfo %q", tokenID)
	}
	return tok, nil
}

// GetExpiringTokens returns tokens across all owners expiring within the
// threshold: expiry strictly in the future and at most daysThreshold days
// away. A non-positive threshold defaults to 7 days.
func (m *Manager) GetExpiringTokens(daysThreshold int) ([]*Token, error) {
	if daysThreshold <= 0 {
		daysThreshold = 7
	}
	tokens, err := m.repo.ListExpiring(m.nowFunc(), time.Duration(daysThreshold)*24*time.Hour)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.GetExpiringTokens")
	}
	return tokens, nil
}

// GetExpiredTokens returns tokens across all owners whose expiry has passed.
func (m *Manager) GetExpiredTokens() ([]*Token, error) {
	tokens, err := m.repo.ListExpired(m.nowFunc())
	if err != nil {
		return nil, errors.Wrap(err, "Manager.GetExpiredTokens")
	}
	return tokens, nil
}

// GetUnusedTokens returns tokens with no use in the given number of days:
// never used and at least that old, or last used at least that long ago.
// A non-positive count defaults to 30 days.
func (m *Manager) GetUnusedTokens(days int) ([]*Token, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := m.nowFunc().Add(-time.Duration(days) * 24 * time.Hour)
	tokens, err := m.repo.ListUnused(cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.GetUnusedTokens")
	}
	return tokens, nil
}

// RevokeExpiredTokens deletes every expired token in one set-based operation
// and returns the number removed. Running it twice in a row drains nothing on
// the second pass; tokens created after the scan starts are never matched.
func (m *Manager) RevokeExpiredTokens() (int, error) {
	count, err := m.repo.DeleteExpired(m.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "Manager.RevokeExpiredTokens")
	}
	if count > 0 {
		m.logger.Info().
			Str("event", "token.cleanup").
			Int("removed", count).
			Msg("expired api tokens revoked")
	}
	return count, nil
}

// UpdateLastUsed stamps the token's last use with the current time. Callers
// on the request path are expected to throttle this to at most once per
// active minute per token to bound write amplification.
func (m *Manager) UpdateLastUsed(t *Token) error {
	now := m.nowFunc()
	if err := m.repo.UpdateLastUsed(t.ID, now); err != nil {
		return errors.Wrap(err, "Manager.UpdateLastUsed")
	}
	t.LastUsedAt = &now
	return nil
}

// Authenticate resolves a presented plaintext secret to its active token
// record via digest lookup. Unknown or expired secrets yield ErrInvalidToken.
func (m *Manager) Authenticate(plaintext string) (*Token, error) {
	tok, err := m.repo.GetBySecretHash(HashSecret(plaintext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "Manager.Authenticate")
	}
	if tok.IsExpired(m.nowFunc()) {
		return nil, ErrInvalidToken
	}
	return tok, nil
}

// issue creates and persists one token against the given store view. Shared
// by CreateToken and RotateToken so rotation issues inside its transaction.
func (m *Manager) issue(r Repo, owner *users.User, name string, abilities []string, expiresInDays int, metadata Metadata, prov Provenance) (string, *Token, error) {
	now := m.nowFunc()

	if len(abilities) == 0 {
		abilities = []string{AbilityAll}
	}

	secretBytes := make([]byte, m.secretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, errors.Wrap(err, "Manager.issue rand.Read")
	}
	plaintext := hex.EncodeToString(secretBytes)

	md := metadata.clone()
	md[MetaCreatedAt] = now.Format(time.RFC3339)
	if prov.IPAddress != "" {
		md[MetaIPAddress] = prov.IPAddress
	}
	if prov.UserAgent != "" {
		md[MetaUserAgent] = prov.UserAgent
	}

	createdBy := prov.ActorID
	if createdBy == "" {
		createdBy = owner.ID
	}

	tok := &Token{
		ID:         uuid.New().String(),
		OwnerID:    owner.ID,
		Name:       name,
		SecretHash: HashSecret(plaintext),
		Abilities:  abilities,
		Metadata:   md,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	if expiresInDays > 0 {
		expiresAt := now.AddDate(0, 0, expiresInDays)
		tok.ExpiresAt = &expiresAt
	}

	if err := r.Create(tok); err != nil {
		return "", nil, errors.Wrap(err, "Manager.issue Create")
	}
	return plaintext, tok, nil
}

// resolveOwner finds a principal by email first, then by id.
func (m *Manager) resolveOwner(identifier string) (*users.User, error) {
	if identifier == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "owner is required")
	}
	if user, err := m.users.GetByEmail(identifier); err == nil && user != nil {
		return user, nil
	}
	if user, err := m.users.GetByID(identifier); err == nil && user != nil {
		return user, nil
	}
	return nil, errors.Wrapf(ErrOwnerNotFound, "%q", identifier)
}

// HashSecret returns the hex-encoded sha-256 digest of a plaintext secret.
// The digest is the only credential material ever persisted.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// remainingDays is the number of whole days from now until expiry, rounded
// up, never less than one. Rotation uses it to carry a relative validity
// window forward instead of copying the absolute timestamp.
func remainingDays(expiresAt, now time.Time) int {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 1
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (md Metadata) clone() Metadata {
	out := make(Metadata, len(md)+4)
	for k, v := range md {
		out[k] = v
	}
	return out
}
