package sqlite

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/users"
)

var _ users.Repo = (*UserRepo)(nil)

// UserRepo is the principal directory backed by the users table.
type UserRepo struct {
	db dbtx
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

func (r *UserRepo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := r.db.Exec(`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, password_hash = excluded.password_hash`,
		user.ID, user.Email, user.Name, user.PasswordHash, toMillis(user.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "upsert user")
	}
	return nil
}

func (r *UserRepo) Delete(email string) error {
	_, err := r.db.Exec(`DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	return nil
}

func (r *UserRepo) GetByEmail(email string) (*users.User, error) {
	return scanUser(r.db.QueryRow(`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (r *UserRepo) GetByID(id string) (*users.User, error) {
	return scanUser(r.db.QueryRow(`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (r *UserRepo) List(offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.db.Query(`SELECT id, email, name, password_hash, created_at FROM users ORDER BY email LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	list := make([]*users.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	return list, rows.Err()
}

func scanUser(row rowScanner) (*users.User, error) {
	var user users.User
	var createdAt int64

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}

	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}
