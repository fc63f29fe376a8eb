// Package pgstore provides a PostgreSQL implementation of
// incident.SnapshotStore.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/trackwatch/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists collection snapshots in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Load returns the stored document for c, or nil if none exists.
func (s *Store) Load(ctx context.Context, c incident.Collection) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Load", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
		attribute.String("trackwatch.collection", string(c)),
	))
	defer span.End()

	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body::text FROM incident_snapshots WHERE collection = $1`, string(c),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return body, nil
}

// Save upserts the document for c.
func (s *Store) Save(ctx context.Context, c incident.Collection, doc []byte) error {
	ctx, span := tracer.Start(ctx, "pgstore.Save", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
		attribute.String("trackwatch.collection", string(c)),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO incident_snapshots (collection, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (collection) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		string(c), string(doc))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	return nil
}
