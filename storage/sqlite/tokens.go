package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/token"
)

const tokenColumns = `id, owner_id, name, secret_hash, abilities, metadata, created_by, created_at, last_used_at, expires_at`

var _ token.Repo = (*TokenRepo)(nil)

// TokenRepo is the credential store. Expiry cleanup is a single set-based
// DELETE, so it stays correct under concurrent creation and revocation.
type TokenRepo struct {
	store *Store
	db    dbtx
}

// Tokens returns the credential store view.
func (s *Store) Tokens() *TokenRepo {
	return &TokenRepo{store: s, db: s.db}
}

func (r *TokenRepo) Create(t *token.Token) error {
	abilities, err := json.Marshal(t.Abilities)
	if err != nil {
		return errors.Wrap(err, "marshal abilities")
	}
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	_, err = r.db.Exec(`INSERT INTO api_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Name, t.SecretHash, string(abilities), string(metadata),
		t.CreatedBy, toMillis(t.CreatedAt), nullableMillis(t.LastUsedAt), nullableMillis(t.ExpiresAt))
	if err != nil {
		return errors.Wrap(err, "insert token")
	}
	return nil
}

func (r *TokenRepo) GetByID(id string) (*token.Token, error) {
	row := r.db.QueryRow(`SELECT `+tokenColumns+` FROM api_tokens WHERE id = ?`, id)
	return scanToken(row)
}

func (r *TokenRepo) GetByOwnerAndName(ownerID, name string) (*token.Token, error) {
	row := r.db.QueryRow(`SELECT `+tokenColumns+` FROM api_tokens WHERE owner_id = ? AND name = ? ORDER BY created_at DESC LIMIT 1`,
		ownerID, name)
	return scanToken(row)
}

func (r *TokenRepo) GetBySecretHash(hash string) (*token.Token, error) {
	row := r.db.QueryRow(`SELECT `+tokenColumns+` FROM api_tokens WHERE secret_hash = ?`, hash)
	return scanToken(row)
}

func (r *TokenRepo) ListByOwner(ownerID string, includeExpired bool, now time.Time) ([]*token.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE owner_id = ?`
	args := []any{ownerID}
	if !includeExpired {
		query += ` AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, toMillis(now))
	}
	query += ` ORDER BY created_at DESC`
	return r.queryTokens(query, args...)
}

func (r *TokenRepo) ListExpiring(now time.Time, within time.Duration) ([]*token.Token, error) {
	return r.queryTokens(
		`SELECT `+tokenColumns+` FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ? ORDER BY expires_at ASC`,
		toMillis(now), toMillis(now.Add(within)))
}

func (r *TokenRepo) ListExpired(now time.Time) ([]*token.Token, error) {
	return r.queryTokens(
		`SELECT `+tokenColumns+` FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at ASC`,
		toMillis(now))
}

func (r *TokenRepo) ListUnused(cutoff time.Time) ([]*token.Token, error) {
	millis := toMillis(cutoff)
	return r.queryTokens(
		`SELECT `+tokenColumns+` FROM api_tokens
		 WHERE (last_used_at IS NULL AND created_at <= ?) OR (last_used_at IS NOT NULL AND last_used_at <= ?)
		 ORDER BY created_at DESC`,
		millis, millis)
}

func (r *TokenRepo) DeleteByID(ownerID, id string) (int, error) {
	return r.execCount(`DELETE FROM api_tokens WHERE owner_id = ? AND id = ?`, ownerID, id)
}

func (r *TokenRepo) DeleteByName(ownerID, name string) (int, error) {
	return r.execCount(`DELETE FROM api_tokens WHERE owner_id = ? AND name = ?`, ownerID, name)
}

func (r *TokenRepo) DeleteExpired(now time.Time) (int, error) {
	return r.execCount(`DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?`, toMillis(now))
}

func (r *TokenRepo) UpdateLastUsed(id string, usedAt time.Time) error {
	count, err := r.execCount(`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, toMillis(usedAt), id)
	if err != nil {
		return err
	}
	if count == 0 {
		return token.ErrNotFound
	}
	return nil
}

// InTransaction runs fn against a transaction-scoped repo. Nested calls reuse
// the already-open transaction.
func (r *TokenRepo) InTransaction(fn func(token.Repo) error) error {
	if _, ok := r.db.(*sql.Tx); ok {
		return fn(r)
	}

	tx, err := r.store.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(&TokenRepo{store: r.store, db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (r *TokenRepo) execCount(query string, args ...any) (int, error) {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "exec")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return int(affected), nil
}

func (r *TokenRepo) queryTokens(query string, args ...any) ([]*token.Token, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query tokens")
	}
	defer rows.Close()

	tokens := make([]*token.Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*token.Token, error) {
	var t token.Token
	var abilities, metadata string
	var createdAt int64
	var lastUsedAt, expiresAt sql.NullInt64

	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.SecretHash, &abilities, &metadata,
		&t.CreatedBy, &createdAt, &lastUsedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, token.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan token")
	}

	if err := json.Unmarshal([]byte(abilities), &t.Abilities); err != nil {
		return nil, errors.Wrap(err, "unmarshal abilities")
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, errors.Wrap(err, "unmarshal metadata")
	}

	t.CreatedAt = fromMillis(createdAt)
	if lastUsedAt.Valid {
		v := fromMillis(lastUsedAt.Int64)
		t.LastUsedAt = &v
	}
	if expiresAt.Valid {
		v := fromMillis(expiresAt.Int64)
		t.ExpiresAt = &v
	}
	return &t, nil
}
