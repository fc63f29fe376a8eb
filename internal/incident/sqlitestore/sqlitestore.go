// Package sqlitestore persists incident collections in a single-file SQLite
// database using the pure-Go modernc driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/trackwatch/internal/incident/sqlitestore")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	collection TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store keeps one row per collection in the snapshots table.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlitestore: database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored document for c, or nil if none exists.
func (s *Store) Load(ctx context.Context, c incident.Collection) ([]byte, error) {
	ctx, span := startSpan(ctx, "sqlitestore.Load", "SELECT", c)
	defer span.End()

	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE collection = ?`, string(c)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return body, nil
}

// Save upserts the document for c.
func (s *Store) Save(ctx context.Context, c incident.Collection, doc []byte) error {
	ctx, span := startSpan(ctx, "sqlitestore.Save", "INSERT", c)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (collection, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(c), doc, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		fail(span, err)
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	return nil
}

func startSpan(ctx context.Context, name, op string, c incident.Collection) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation.name", op),
		attribute.String("trackwatch.collection", string(c)),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
