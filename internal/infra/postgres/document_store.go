package postgres

import (
	"context"
	"errors"
	"fmt"

	"dental-mentor-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DocumentStore persists uploaded study documents (metadata and bytes).
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) Save(ctx context.Context, doc domain.Document, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, owner_id, name, content_type, size_bytes, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.OwnerID, doc.Name, doc.ContentType, doc.Size, data, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, content_type, size_bytes, created_at
		 FROM documents WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.ContentType, &doc.Size, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Get(ctx context.Context, id string) (domain.Document, []byte, error) {
	var doc domain.Document
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, content_type, size_bytes, data, created_at
		 FROM documents WHERE id=$1`, id).
		Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.ContentType, &doc.Size, &data, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, nil, fmt.Errorf("get document: %w", err)
	}
	return doc, data, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id, ownerID string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM documents WHERE id=$1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if owner != ownerID {
		return domain.ErrNotOwner
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
