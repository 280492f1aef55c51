package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TimurManjosov/flagstate/internal/scope"
)

// PostgresStore is a PostgreSQL implementation of Store and ScopedStore.
// Values are serialized as JSONB; each (feature, kind, context_id) key is a
// single row upserted atomically, which gives the last-write-wins semantics
// the transaction layer depends on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
// See internal/db/schema.sql for the expected tables.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get retrieves the value stored for (feature, kind, id).
func (p *PostgresStore) Get(ctx context.Context, feature, kind, id string) (Value, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM feature_state WHERE feature = $1 AND kind = $2 AND context_id = $3`,
		feature, kind, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	v, err := decodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set upserts the value for (feature, kind, id).
func (p *PostgresStore) Set(ctx context.Context, feature, kind, id string, value Value) error {
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO feature_state (feature, kind, context_id, value, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (feature, kind, context_id)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		feature, kind, id, raw)
	return err
}

// Forget removes the stored value. Idempotent.
func (p *PostgresStore) Forget(ctx context.Context, feature, kind, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM feature_state WHERE feature = $1 AND kind = $2 AND context_id = $3`,
		feature, kind, id)
	return err
}

// All returns the full feature->value map for a context.
func (p *PostgresStore) All(ctx context.Context, kind, id string) (map[string]Value, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT feature, value FROM feature_state WHERE kind = $1 AND context_id = $2`,
		kind, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Value)
	for rows.Next() {
		var feature string
		var raw []byte
		if err := rows.Scan(&feature, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode value for %s: %w", feature, err)
		}
		result[feature] = v
	}
	return result, rows.Err()
}

// SetScoped upserts a scoped activation keyed by its constraint set.
func (p *PostgresStore) SetScoped(ctx context.Context, feature, kind string, constraints scope.Constraints, value Value) error {
	rawConstraints, err := json.Marshal(constraints)
	if err != nil {
		return err
	}
	rawValue, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO feature_scope (feature, kind, constraints, value, written_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (feature, kind, constraints)
		 DO UPDATE SET value = EXCLUDED.value, written_at = now()`,
		feature, kind, rawConstraints, rawValue)
	return err
}

// GetScoped returns every scoped record stored for (feature, kind).
func (p *PostgresStore) GetScoped(ctx context.Context, feature, kind string) ([]scope.Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT constraints, value, written_at FROM feature_scope WHERE feature = $1 AND kind = $2`,
		feature, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []scope.Record
	for rows.Next() {
		var rec scope.Record
		var rawConstraints, rawValue []byte
		if err := rows.Scan(&rawConstraints, &rawValue, &rec.WrittenAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawConstraints, &rec.Constraints); err != nil {
			return nil, err
		}
		rec.Value, err = decodeValue(rawValue)
		if err != nil {
			return nil, err
		}
		rec.Kind = kind
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func encodeValue(v Value) ([]byte, error) {
	return json.Marshal(v)
}

func decodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
