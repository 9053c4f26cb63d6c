package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/campaigns"
)

var _ campaigns.Repo = (*CampaignRepo)(nil)

// CampaignRepo persists campaigns; the metadata document is stored as JSON.
type CampaignRepo struct {
	db dbtx
}

func (s *Store) Campaigns() *CampaignRepo {
	return &CampaignRepo{db: s.db}
}

func (r *CampaignRepo) Create(c *campaigns.Campaign) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}
	_, err = r.db.Exec(`INSERT INTO campaigns (id, title, status, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Status, string(metadata), toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return errors.Wrap(err, "insert campaign")
	}
	return nil
}

func (r *CampaignRepo) Update(c *campaigns.Campaign) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}
	result, err := r.db.Exec(`UPDATE campaigns SET title = ?, status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.Status, string(metadata), toMillis(c.UpdatedAt), c.ID)
	if err != nil {
		return errors.Wrap(err, "update campaign")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return campaigns.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) GetByID(id string) (*campaigns.Campaign, error) {
	return scanCampaign(r.db.QueryRow(`SELECT id, title, status, metadata, created_at, updated_at FROM campaigns WHERE id = ?`, id))
}

func (r *CampaignRepo) List(limit int) ([]*campaigns.Campaign, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT id, title, status, metadata, created_at, updated_at FROM campaigns ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list campaigns")
	}
	defer rows.Close()

	list := make([]*campaigns.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanCampaign(row rowScanner) (*campaigns.Campaign, error) {
	var c campaigns.Campaign
	var metadata string
	var createdAt, updatedAt int64

	err := row.Scan(&c.ID, &c.Title, &c.Status, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaigns.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan campaign")
	}

	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, errors.Wrap(err, "unmarshal metadata")
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}
