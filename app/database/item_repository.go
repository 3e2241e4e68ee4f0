package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ ItemStore = (*ItemRepository)(nil)

type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// QueryRecent returns the dedup-relevant fields of every record of the given
// kind published at or after the given timestamp.
func (r *ItemRepository) QueryRecent(kind string, since time.Time) ([]RecentItem, error) {
	rows, err := r.db.Query(`
		SELECT title, link, published_at
		FROM items
		WHERE kind = ? AND published_at >= ?
		ORDER BY published_at DESC
	`, kind, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent items: %w", err)
	}
	defer rows.Close()

	var items []RecentItem
	for rows.Next() {
		var item RecentItem
		if err := rows.Scan(&item.Title, &item.Link, &item.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent items: %w", err)
	}

	return items, nil
}

// Insert writes a new published record, assigning its id and created_at.
func (r *ItemRepository) Insert(record *PublishedRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO items (id, kind, title, link, published_at, source_name, category, summary, image_url, slug, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Kind, record.Title, record.Link, record.PublishedAt.UTC(),
		record.SourceName, record.Category, record.Summary, record.ImageURL,
		record.Slug, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// AttachCrossPost sets the cross-post reference on an existing record.
func (r *ItemRepository) AttachCrossPost(itemID, crossPostID string) error {
	result, err := r.db.Exec(`
		UPDATE items SET cross_post_id = ? WHERE id = ?
	`, crossPostID, itemID)
	if err != nil {
		return fmt.Errorf("failed to attach cross-post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item not found: %s", itemID)
	}

	return nil
}

func (r *ItemRepository) CountByKind(kind string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items WHERE kind = ?", kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// GetByID returns one published record, or nil when it does not exist.
func (r *ItemRepository) GetByID(id string) (*PublishedRecord, error) {
	var record PublishedRecord
	var crossPostID sql.NullString

	err := r.db.QueryRow(`
		SELECT id, kind, title, link, published_at, source_name, category, summary, image_url, slug, cross_post_id, created_at
		FROM items WHERE id = ?
	`, id).Scan(&record.ID, &record.Kind, &record.Title, &record.Link,
		&record.PublishedAt, &record.SourceName, &record.Category,
		&record.Summary, &record.ImageURL, &record.Slug, &crossPostID,
		&record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if crossPostID.Valid {
		record.CrossPostID = &crossPostID.String
	}

	return &record, nil
}
