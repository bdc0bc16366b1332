package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentStore returns a Postgres-backed DocumentStore storing each document as a jsonb row.
func NewDocumentStore(pool *pgxpool.Pool) repository.DocumentStore {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	const query = `
	SELECT data
	FROM documents
	WHERE collection = $1 AND id = $2
	`
	var data []byte
	if err := r.pool.QueryRow(ctx, query, collection, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (r *documentRepository) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	if id == "" || len(patch) == 0 {
		return domain.ErrInvalidPayload
	}
	if !merge {
		if !json.Valid(patch) {
			return domain.ErrInvalidPayload
		}
		return upsertDocument(ctx, r.pool, collection, id, patch)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQuery = `
	SELECT data
	FROM documents
	WHERE collection = $1 AND id = $2
	FOR UPDATE
	`
	var base []byte
	if err := tx.QueryRow(ctx, lockQuery, collection, id).Scan(&base); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	merged, err := repository.MergeDocuments(base, patch)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid document", err)
	}
	if err := upsertDocument(ctx, tx, collection, id, merged); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *documentRepository) List(ctx context.Context, collection string) ([]repository.Document, error) {
	const query = `
	SELECT id, data
	FROM documents
	WHERE collection = $1
	ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []repository.Document
	for rows.Next() {
		var (
			doc  repository.Document
			data []byte
		)
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, err
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func upsertDocument(ctx context.Context, db rowQuerier, collection, id string, data []byte) error {
	const query = `
	INSERT INTO documents (collection, id, data, created_at, updated_at)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (collection, id) DO UPDATE
	SET data = EXCLUDED.data,
		updated_at = NOW()
	RETURNING updated_at
	`
	var updatedAt time.Time
	return db.QueryRow(ctx, query, collection, id, data).Scan(&updatedAt)
}
