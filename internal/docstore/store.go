// Package docstore implements provider.DocumentStore over a SQL database.
//
// Documents are JSON objects kept in a single documents table keyed by (collection, id).
// The same store runs on Postgres (pgx) and SQLite (modernc); only placeholders and row locking differ.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/identity/provider"
)

// ErrExists is returned by CreateDoc when the document is already present.
var ErrExists = errors.New("docstore: document already exists")

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	Postgres Dialect = db.DriverPostgres
	SQLite   Dialect = db.DriverSQLite
)

const (
	getQuery    = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	upsertQuery = `INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	createQuery = `INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (collection, id) DO NOTHING`
	updateQuery = `UPDATE documents SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`
	deleteQuery = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock sets the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// SQLStore is a document store over database/sql. Safe for concurrent use.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	logger  *zap.Logger

	get, upsert, create, update, del string
}

var _ provider.DocumentStore = (*SQLStore)(nil)

// New returns a store over an already migrated database.
func New(sqlDB *sql.DB, dialect Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:      sqlDB,
		dialect: dialect,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.get = s.rebind(getQuery)
	s.upsert = s.rebind(upsertQuery)
	s.create = s.rebind(createQuery)
	s.update = s.rebind(updateQuery)
	s.del = s.rebind(deleteQuery)
	return s
}

// rebind turns $n placeholders into ?n for SQLite.
func (s *SQLStore) rebind(q string) string {
	if s.dialect == SQLite {
		return placeholder.ReplaceAllString(q, "?$1")
	}
	return q
}

// GetDoc returns the document or nil when it does not exist.
func (s *SQLStore) GetDoc(ctx context.Context, collection, id string) (provider.Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.get, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return decode(raw)
}

// SetDoc creates or replaces the document.
func (s *SQLStore) SetDoc(ctx context.Context, collection, id string, data provider.Record) error {
	now := s.now().UTC()
	raw, err := encode(resolveTimestamps(data, now))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, collection, id, raw, now.UnixMilli()); err != nil {
		return translate(err)
	}
	return nil
}

// CreateDoc writes the document only if it does not exist yet; otherwise it returns ErrExists.
func (s *SQLStore) CreateDoc(ctx context.Context, collection, id string, data provider.Record) error {
	now := s.now().UTC()
	raw, err := encode(resolveTimestamps(data, now))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.create, collection, id, raw, now.UnixMilli())
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// UpdateDoc merges the top-level fields of data into the stored document in one transaction.
// It fails with provider.CodeNotFound when the document does not exist.
func (s *SQLStore) UpdateDoc(ctx context.Context, collection, id string, data provider.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.get
	if s.dialect == Postgres {
		q += " FOR UPDATE"
	}
	var raw string
	err = tx.QueryRowContext(ctx, q, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return provider.NewError(provider.CodeNotFound, fmt.Sprintf("no document %s/%s", collection, id))
	}
	if err != nil {
		return translate(err)
	}
	doc, err := decode(raw)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for k, v := range resolveTimestamps(data, now) {
		doc[k] = v
	}
	merged, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.update, collection, id, merged, now.UnixMilli()); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	s.logger.Debug("document updated", zap.String("collection", collection), zap.String("id", id), zap.Int("fields", len(data)))
	return nil
}

// DeleteDoc removes the document. Deleting a missing document is not an error.
func (s *SQLStore) DeleteDoc(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, s.del, collection, id); err != nil {
		return translate(err)
	}
	return nil
}

// resolveTimestamps replaces ServerTimestamp values, at any depth, with a seconds/nanoseconds object.
func resolveTimestamps(data provider.Record, now time.Time) provider.Record {
	out := make(provider.Record, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case map[string]any:
			out[k] = resolveTimestamps(tv, now)
		default:
			if provider.IsServerTimestamp(v) {
				out[k] = map[string]any{"seconds": now.Unix(), "nanoseconds": now.Nanosecond()}
				continue
			}
			out[k] = v
		}
	}
	return out
}

func encode(doc provider.Record) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func decode(raw string) (provider.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc provider.Record
	if err := dec.Decode(&doc); err != nil {
		return nil, provider.WrapError(provider.CodeInternal, fmt.Errorf("decode document: %w", err))
	}
	if doc == nil {
		doc = provider.Record{}
	}
	return doc, nil
}
