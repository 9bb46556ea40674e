// Package pg persists webhook artifacts in a single Postgres table, for
// deployments where the receiver's filesystem is not durable.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"esign/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS webhook_events (
	id          text PRIMARY KEY,
	kind        text NOT NULL,
	envelope_id text,
	event_type  text,
	payload     jsonb,
	document    bytea,
	received_at timestamptz NOT NULL DEFAULT now()
)`

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// EnsureSchema creates the events table. A POC-level substitute for real
// migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

func (s *Store) Check(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *Store) SaveRaw(ctx context.Context, deliveryID string, payload []byte) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO webhook_events (id, kind, payload, received_at)
		VALUES ($1, $2, $3, $4)
	`, "raw_"+deliveryID, store.KindRaw, payload, time.Now().UTC())
	return err
}

func (s *Store) SaveProcessed(ctx context.Context, envelopeID, eventType string, result any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("pg store: encode processed result: %w", err)
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO webhook_events (id, kind, envelope_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, received_at = EXCLUDED.received_at
	`, "processed_"+store.DedupKey(envelopeID, eventType), store.KindProcessed, envelopeID, eventType, b, time.Now().UTC())
	return err
}

func (s *Store) SaveDocument(ctx context.Context, envelopeID, eventType string, pdf []byte) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO webhook_events (id, kind, envelope_id, event_type, document, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, received_at = EXCLUDED.received_at
	`, "signed_"+store.DedupKey(envelopeID, eventType), store.KindDocument, envelopeID, eventType, pdf, time.Now().UTC())
	return err
}

func (s *Store) List(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, kind, COALESCE(envelope_id,''), COALESCE(event_type,''), payload, received_at
		FROM webhook_events
		WHERE kind <> $1
		ORDER BY received_at DESC
		LIMIT $2
	`, store.KindDocument, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var rec store.Record
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.EnvelopeID, &rec.EventType, &rec.Data, &rec.ReceivedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (store.Record, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, kind, COALESCE(envelope_id,''), COALESCE(event_type,''), payload, received_at
		FROM webhook_events WHERE id = $1
	`, id)

	var rec store.Record
	err := row.Scan(&rec.ID, &rec.Kind, &rec.EnvelopeID, &rec.EventType, &rec.Data, &rec.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, err
	}
	return rec, true, nil
}
