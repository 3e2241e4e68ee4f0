package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ PostStore = (*PostRepository)(nil)

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

// Insert writes a post row directly, assigning its id and created_at.
func (r *PostRepository) Insert(post *Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	var itemID any
	if post.ItemID != "" {
		itemID = post.ItemID
	}

	_, err := r.db.Exec(`
		INSERT INTO posts (id, author, body, link, image_url, visibility, item_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, post.ID, post.Author, post.Body, post.Link, post.ImageURL,
		post.Visibility, itemID, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}
