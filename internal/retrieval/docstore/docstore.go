// Package docstore is the Postgres-backed store for document blobs and
// per-key fields. indexer.Engine writes every added document here, and the
// searcher reads collapse-key fields from it. Retrieval backends do not
// read it: each serves Document from its own index (memory map, segment
// file, or remote RPC), which keeps the blob and key fields alongside the
// postings.
//
// Grounded on pkg/postgres/client.go: the same *sql.DB pool and InTx
// helper, generalized from the reference platform's string document ids
// to the core's uint64 doc-ids.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
	"github.com/vikram-desai/retrieva/pkg/postgres"
)

// Store is a Postgres-backed document blob and key/field store.
type Store struct {
	client *postgres.Client
}

// Wrap builds a Store over an already-open postgres.Client, as owned by
// whatever service constructed it (searcher, indexer) at startup.
func Wrap(client *postgres.Client) *Store {
	return &Store{client: client}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS docstore_documents (
	doc_id BIGINT PRIMARY KEY,
	length INTEGER NOT NULL,
	data   BYTEA
);

CREATE TABLE IF NOT EXISTS docstore_fields (
	doc_id BIGINT NOT NULL REFERENCES docstore_documents(doc_id) ON DELETE CASCADE,
	key    INTEGER NOT NULL,
	value  BYTEA NOT NULL,
	PRIMARY KEY (doc_id, key)
);
`

// EnsureSchema runs the docstore's DDL. Callers typically run this once
// at startup; CREATE TABLE IF NOT EXISTS makes repeat calls harmless.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.client.DB.ExecContext(ctx, schemaDDL)
	if err != nil {
		return rerr.Newf(rerr.ErrInternal, 500, "docstore: applying schema: %v", err)
	}
	return nil
}

// Put upserts a document's blob, length, and key fields in a single
// transaction, replacing any previous fields for that doc-id.
func (s *Store) Put(ctx context.Context, doc backend.Document) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO docstore_documents (doc_id, length, data)
			VALUES ($1, $2, $3)
			ON CONFLICT (doc_id) DO UPDATE SET length = EXCLUDED.length, data = EXCLUDED.data
		`, doc.ID, doc.Length, doc.Data)
		if err != nil {
			return fmt.Errorf("upserting document %d: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM docstore_fields WHERE doc_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("clearing fields for document %d: %w", doc.ID, err)
		}
		for key, value := range doc.Keys {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO docstore_fields (doc_id, key, value) VALUES ($1, $2, $3)
			`, doc.ID, key, value); err != nil {
				return fmt.Errorf("inserting field %d for document %d: %w", key, doc.ID, err)
			}
		}
		return nil
	})
}

// Get fetches a document's blob, length, and key fields. Returns
// ErrInvalidArgument (HTTP 404-mapped by callers) if the doc-id is
// unknown, matching the concrete backends' Document not-found shape.
func (s *Store) Get(ctx context.Context, docID uint64) (backend.Document, error) {
	var length uint32
	var data []byte
	err := s.client.DB.QueryRowContext(ctx, `
		SELECT length, data FROM docstore_documents WHERE doc_id = $1
	`, docID).Scan(&length, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Document{}, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	if err != nil {
		return backend.Document{}, rerr.Newf(rerr.ErrInternal, 500, "docstore: fetching document %d: %v", docID, err)
	}

	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT key, value FROM docstore_fields WHERE doc_id = $1
	`, docID)
	if err != nil {
		return backend.Document{}, rerr.Newf(rerr.ErrInternal, 500, "docstore: fetching fields for document %d: %v", docID, err)
	}
	defer rows.Close()

	keys := map[int][]byte{}
	for rows.Next() {
		var key int
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return backend.Document{}, rerr.Newf(rerr.ErrInternal, 500, "docstore: scanning field for document %d: %v", docID, err)
		}
		keys[key] = value
	}
	if err := rows.Err(); err != nil {
		return backend.Document{}, rerr.Newf(rerr.ErrInternal, 500, "docstore: iterating fields for document %d: %v", docID, err)
	}

	return backend.Document{ID: docID, Length: length, Data: data, Keys: keys}, nil
}

// Field fetches a single key's value without paying for the full
// document, for backends that only need one field (e.g. a sort key).
func (s *Store) Field(ctx context.Context, docID uint64, key int) ([]byte, bool, error) {
	var value []byte
	err := s.client.DB.QueryRowContext(ctx, `
		SELECT value FROM docstore_fields WHERE doc_id = $1 AND key = $2
	`, docID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerr.Newf(rerr.ErrInternal, 500, "docstore: fetching field %d for document %d: %v", key, docID, err)
	}
	return value, true, nil
}

// Delete removes a document and its fields. Not an error if the doc-id
// is already absent.
func (s *Store) Delete(ctx context.Context, docID uint64) error {
	_, err := s.client.DB.ExecContext(ctx, `DELETE FROM docstore_documents WHERE doc_id = $1`, docID)
	if err != nil {
		return rerr.Newf(rerr.ErrInternal, 500, "docstore: deleting document %d: %v", docID, err)
	}
	return nil
}

// Close releases the underlying Postgres connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
