package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the intake_documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS intake_documents (
    id           UUID PRIMARY KEY,
    collection   TEXT NOT NULL,
    session_id   TEXT NOT NULL DEFAULT '',
    submitted_by TEXT NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL,
    fields       JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_intake_documents_collection ON intake_documents(collection, created_at);
`

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresBackend stores documents in PostgreSQL with the form fields in a
// JSONB column.
type PostgresBackend struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Backend = (*PostgresBackend)(nil)

func NewPostgresBackend(db DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// OpenPostgres connects a pool to dsn and applies Schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}

	b := &PostgresBackend{db: pool, pool: pool}
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

// Close releases the pool opened by OpenPostgres.
func (b *PostgresBackend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b *PostgresBackend) Put(ctx context.Context, doc Document) error {
	fields, err := json.Marshal(emptyFields(doc.Fields))
	if err != nil {
		return fmt.Errorf("docstore: marshal fields: %w", err)
	}

	const query = `
		INSERT INTO intake_documents (id, collection, session_id, submitted_by, submitted_at, fields)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := b.db.Exec(ctx, query,
		doc.ID, doc.Collection, doc.SessionID, doc.SubmittedBy, doc.SubmittedAt, fields,
	); err != nil {
		return fmt.Errorf("docstore: insert %s: %w", doc.ID, err)
	}
	return nil
}

const selectColumns = `id::text, collection, session_id, submitted_by, submitted_at, fields, created_at`

func (b *PostgresBackend) Get(ctx context.Context, collection, id string) (Document, error) {
	row := b.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM intake_documents WHERE collection = $1 AND id::text = $2`,
		collection, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s: %w", id, err)
	}
	return doc, nil
}

func (b *PostgresBackend) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := b.db.Query(ctx,
		`SELECT `+selectColumns+` FROM intake_documents WHERE collection = $1 ORDER BY created_at, id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc    Document
		fields []byte
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &doc.SessionID, &doc.SubmittedBy, &doc.SubmittedAt, &fields, &doc.CreatedAt); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(fields, &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	return doc, nil
}

func emptyFields(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
