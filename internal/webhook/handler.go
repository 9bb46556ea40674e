package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"esign/internal/observability"
	"esign/internal/store"
)

// DocumentFetcher retrieves the signed document for a completed envelope when
// the callback did not embed it.
type DocumentFetcher interface {
	DownloadSignedDocument(ctx context.Context, envelopeID string) ([]byte, error)
}

// Receiver handles inbound signature-event callbacks. Every delivery is
// persisted raw before any interpretation so the audit trail survives parse
// and processing failures.
type Receiver struct {
	Store         store.EventStore
	HMACKey       []byte
	Documents     DocumentFetcher
	NewDeliveryID func() string
	Now           func() time.Time
}

// Result is what processing one event produced. It is stored per dedup key
// and echoed in the HTTP response.
type Result struct {
	Success       bool   `json:"success"`
	EnvelopeID    string `json:"envelopeId,omitempty"`
	EventType     string `json:"event,omitempty"`
	Message       string `json:"message"`
	SignerName    string `json:"signerName,omitempty"`
	SignerEmail   string `json:"signerEmail,omitempty"`
	DeclineReason string `json:"declineReason,omitempty"`
	VoidedReason  string `json:"voidedReason,omitempty"`
	DocumentSaved bool   `json:"documentSaved,omitempty"`
	ProcessedAt   string `json:"processedAt"`
}

// Register wires the receiver's routes onto r.
func (rc *Receiver) Register(r *mux.Router) {
	r.HandleFunc("/", rc.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/webhook/docusign", rc.handleReceive).Methods(http.MethodPost)
	r.HandleFunc("/webhooks", rc.handleList).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/{id}", rc.handleGet).Methods(http.MethodGet)
}

func (rc *Receiver) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":          "esign-webhook",
		"status":           "ok",
		"webhook_endpoint": "/webhook/docusign",
	})
}

func (rc *Receiver) handleReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("unknown", "read_error").Inc()
		writeJSON(w, http.StatusBadRequest, Result{Message: "unreadable body", ProcessedAt: rc.now()})
		return
	}

	if len(rc.HMACKey) > 0 {
		if !VerifySignature(rc.HMACKey, body, r.Header.Get(SignatureHeader)) {
			slog.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
			observability.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
			writeJSON(w, http.StatusUnauthorized, Result{Message: "invalid signature", ProcessedAt: rc.now()})
			return
		}
	} else {
		slog.Warn("no hmac key configured, accepting unverified delivery")
	}

	deliveryID := rc.deliveryID()
	if err := rc.Store.SaveRaw(r.Context(), deliveryID, body); err != nil {
		slog.Error("persist raw delivery failed", "id", deliveryID, "error", err)
		observability.WebhookEvents.WithLabelValues("unknown", "store_error").Inc()
		writeJSON(w, http.StatusInternalServerError, Result{Message: "storage failure", ProcessedAt: rc.now()})
		return
	}

	event, parseErr := ParseEvent(body)
	if parseErr != nil {
		slog.Warn("unparseable delivery recorded", "id", deliveryID, "error", parseErr)
		observability.WebhookEvents.WithLabelValues("unknown", "parse_error").Inc()
		writeJSON(w, http.StatusOK, Result{Success: true, Message: "delivery recorded", ProcessedAt: rc.now()})
		return
	}

	result := rc.process(r.Context(), event)
	observability.WebhookEvents.WithLabelValues(event.Name, resultLabel(result)).Inc()

	if event.Type != EventUnrecognized && event.EnvelopeID != "" {
		if err := rc.Store.SaveProcessed(r.Context(), event.EnvelopeID, string(event.Type), result); err != nil {
			slog.Error("persist processed event failed",
				"envelope_id", event.EnvelopeID, "event", event.Type, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// process interprets one parsed event. Enrichment failures never fail the
// delivery; the raw record is already durable.
func (rc *Receiver) process(ctx context.Context, event Event) Result {
	result := Result{
		Success:     true,
		EnvelopeID:  event.EnvelopeID,
		EventType:   event.Name,
		ProcessedAt: rc.now(),
	}

	switch event.Type {
	case EventEnvelopeCompleted:
		result.Message = "envelope completed"
		if signer, ok := event.CompletedSigner(); ok {
			result.SignerName = signer.Name
			result.SignerEmail = signer.Email
		}
		pdf := event.DocumentPDF
		if len(pdf) == 0 && rc.Documents != nil && event.EnvelopeID != "" {
			fetched, err := rc.Documents.DownloadSignedDocument(ctx, event.EnvelopeID)
			if err != nil {
				slog.Error("signed document fetch failed", "envelope_id", event.EnvelopeID, "error", err)
			} else {
				pdf = fetched
			}
		}
		if len(pdf) > 0 {
			if err := rc.Store.SaveDocument(ctx, event.EnvelopeID, string(event.Type), pdf); err != nil {
				slog.Error("persist signed document failed", "envelope_id", event.EnvelopeID, "error", err)
			} else {
				result.DocumentSaved = true
			}
		}

	case EventEnvelopeDeclined:
		result.Message = "envelope declined"
		if decliner, ok := event.Decliner(); ok {
			result.SignerName = decliner.Name
			result.SignerEmail = decliner.Email
			result.DeclineReason = decliner.DeclinedReason
		}

	case EventEnvelopeVoided:
		result.Message = "envelope voided"
		result.VoidedReason = event.VoidedReason

	default:
		result.Message = "event acknowledged"
	}

	return result
}

func (rc *Receiver) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := rc.Store.List(r.Context(), 20)
	if err != nil {
		slog.Error("list deliveries failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(records),
		"events": records,
	})
}

func (rc *Receiver) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, ok, err := rc.Store.Get(r.Context(), id)
	if err != nil {
		slog.Error("fetch delivery failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rc *Receiver) deliveryID() string {
	if rc.NewDeliveryID != nil {
		return rc.NewDeliveryID()
	}
	return store.NewDeliveryID()
}

func (rc *Receiver) nowTime() time.Time {
	if rc.Now != nil {
		return rc.Now()
	}
	return time.Now().UTC()
}

func (rc *Receiver) now() string {
	return rc.nowTime().Format(time.RFC3339)
}

func resultLabel(r Result) string {
	if r.Success {
		return "ok"
	}
	return "error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
