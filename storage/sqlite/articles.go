package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/articles"
)

const articleColumns = `id, slug, title, content, content_rewrite, category, label, is_reviewed, published_at,
	created_by, updated_by, edited_by, published_by, deleted_by, created_at, updated_at, deleted_at`

var _ articles.Repo = (*ArticleRepo)(nil)

// ArticleRepo persists articles. Category and label lists are stored
// comma-joined, matching the original flat-string columns.
type ArticleRepo struct {
	db dbtx
}

func (s *Store) Articles() *ArticleRepo {
	return &ArticleRepo{db: s.db}
}

func (r *ArticleRepo) Create(a *articles.Article) error {
	_, err := r.db.Exec(`INSERT INTO articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, a.Title, a.Content, a.ContentRewrite,
		joinList(a.Categories), joinList(a.Labels), a.IsReviewed, nullableMillis(a.PublishedAt),
		a.CreatedBy, a.UpdatedBy, a.EditedBy, a.PublishedBy, a.DeletedBy,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt), nullableMillis(a.DeletedAt))
	if err != nil {
		return errors.Wrap(err, "insert article")
	}
	return nil
}

func (r *ArticleRepo) Update(a *articles.Article) error {
	result, err := r.db.Exec(`UPDATE articles SET slug = ?, title = ?, content = ?, content_rewrite = ?,
		category = ?, label = ?, is_reviewed = ?, published_at = ?,
		created_by = ?, updated_by = ?, edited_by = ?, published_by = ?, deleted_by = ?,
		updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		a.Slug, a.Title, a.Content, a.ContentRewrite,
		joinList(a.Categories), joinList(a.Labels), a.IsReviewed, nullableMillis(a.PublishedAt),
		a.CreatedBy, a.UpdatedBy, a.EditedBy, a.PublishedBy, a.DeletedBy,
		toMillis(a.UpdatedAt), nullableMillis(a.DeletedAt), a.ID)
	if err != nil {
		return errors.Wrap(err, "update article")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return articles.ErrNotFound
	}
	return nil
}

func (r *ArticleRepo) GetByID(id string, includeDeleted bool) (*articles.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return scanArticle(r.db.QueryRow(query, id))
}

func (r *ArticleRepo) GetBySlug(slug string) (*articles.Article, error) {
	return scanArticle(r.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE slug = ? AND deleted_at IS NULL`, slug))
}

func (r *ArticleRepo) SlugExists(slug string) (bool, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE slug = ?`, slug).Scan(&count); err != nil {
		return false, errors.Wrap(err, "count slug")
	}
	return count > 0, nil
}

func (r *ArticleRepo) Search(filters articles.SearchFilters, limit int, now time.Time) ([]*articles.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE deleted_at IS NULL`
	args := []any{}

	if filters.Category != "" {
		query += ` AND category LIKE ?`
		args = append(args, "%"+filters.Category+"%")
	}
	if filters.Label != "" {
		query += ` AND label LIKE ?`
		args = append(args, "%"+filters.Label+"%")
	}
	if filters.IsReviewed != nil {
		query += ` AND is_reviewed = ?`
		args = append(args, *filters.IsReviewed)
	}
	switch filters.Status {
	case articles.StatusPublished:
		query += ` AND published_at IS NOT NULL AND published_at <= ?`
		args = append(args, toMillis(now))
	case articles.StatusDraft:
		query += ` AND published_at IS NULL`
	}
	if filters.Search != "" {
		query += ` AND (title LIKE ? OR content LIKE ?)`
		needle := "%" + filters.Search + "%"
		args = append(args, needle, needle)
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search articles")
	}
	defer rows.Close()

	found := make([]*articles.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, a)
	}
	return found, rows.Err()
}

func scanArticle(row rowScanner) (*articles.Article, error) {
	var a articles.Article
	var category, label string
	var createdAt, updatedAt int64
	var publishedAt, deletedAt sql.NullInt64

	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Content, &a.ContentRewrite,
		&category, &label, &a.IsReviewed, &publishedAt,
		&a.CreatedBy, &a.UpdatedBy, &a.EditedBy, &a.PublishedBy, &a.DeletedBy,
		&createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, articles.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan article")
	}

	a.Categories = splitList(category)
	a.Labels = splitList(label)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	if publishedAt.Valid {
		v := fromMillis(publishedAt.Int64)
		a.PublishedAt = &v
	}
	if deletedAt.Valid {
		v := fromMillis(deletedAt.Int64)
		a.DeletedAt = &v
	}
	return &a, nil
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
