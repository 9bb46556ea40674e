package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is one persisted webhook artifact: a raw delivery, a processed
// result, or a signed document marker.
type Record struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	EnvelopeID string          `json:"envelopeId,omitempty"`
	EventType  string          `json:"eventType,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

const (
	KindRaw       = "raw"
	KindProcessed = "processed"
	KindDocument  = "document"
)

// EventStore persists webhook deliveries. Raw payloads are append-only per
// delivery; processed results and documents are keyed by envelope and event
// type so a vendor redelivery overwrites rather than duplicates.
type EventStore interface {
	SaveRaw(ctx context.Context, deliveryID string, payload []byte) error
	SaveProcessed(ctx context.Context, envelopeID, eventType string, result any) error
	SaveDocument(ctx context.Context, envelopeID, eventType string, pdf []byte) error
	List(ctx context.Context, limit int) ([]Record, error)
	Get(ctx context.Context, id string) (Record, bool, error)
}

// NewDeliveryID mints a sortable id for one inbound delivery.
func NewDeliveryID() string {
	t := time.Now().UTC()
	return "evt_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// DedupKey is the idempotency key for processed results and documents.
func DedupKey(envelopeID, eventType string) string {
	return envelopeID + "_" + eventType
}
