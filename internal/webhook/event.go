package webhook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the closed set of event kinds this receiver dispatches on.
// Anything else is recorded but not processed.
type EventType string

const (
	EventEnvelopeCompleted EventType = "envelope-completed"
	EventEnvelopeDeclined  EventType = "envelope-declined"
	EventEnvelopeVoided    EventType = "envelope-voided"
	EventUnrecognized      EventType = "unrecognized"
)

// Recipient is one signer's state as reported in the callback.
type Recipient struct {
	RecipientID    string `json:"recipientId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	SignedDateTime string `json:"signedDateTime,omitempty"`
	DeclinedReason string `json:"declinedReason,omitempty"`
}

// Event is one parsed inbound delivery. Raw preserves the exact body for the
// audit trail; DocumentPDF is set only when the sender embedded the signed
// document.
type Event struct {
	Type            EventType
	Name            string
	EnvelopeID      string
	Status          string
	StatusChangedAt string
	SenderName      string
	SenderEmail     string
	Recipients      []Recipient
	VoidedReason    string
	DocumentPDF     []byte
	SignatureHeader string
	Raw             json.RawMessage
}

// Connect sends either the modern shape, where everything of interest sits
// under data.envelopeSummary, or a flat legacy shape. wirePayload embeds the
// summary to absorb the flat form and carries the nested one alongside.
type wireSummary struct {
	EnvelopeID            string `json:"envelopeId"`
	Status                string `json:"status"`
	StatusChangedDateTime string `json:"statusChangedDateTime"`
	VoidedReason          string `json:"voidedReason"`
	Sender                struct {
		UserName string `json:"userName"`
		Name     string `json:"name"`
		Email    string `json:"email"`
	} `json:"sender"`
	Recipients struct {
		Signers []Recipient `json:"signers"`
	} `json:"recipients"`
	EnvelopeDocuments []struct {
		DocumentID string `json:"documentId"`
		Name       string `json:"name"`
		PDFBytes   string `json:"PDFBytes"`
	} `json:"envelopeDocuments"`
}

type wirePayload struct {
	wireSummary
	Event string `json:"event"`
	Data  *struct {
		EnvelopeID      string       `json:"envelopeId"`
		EnvelopeSummary *wireSummary `json:"envelopeSummary"`
	} `json:"data"`
}

// ParseEvent decodes one delivery body. It fails only on malformed JSON;
// missing fields degrade to an unrecognized event.
func ParseEvent(body []byte) (Event, error) {
	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return Event{}, fmt.Errorf("webhook: parse event: %w", err)
	}

	summary := wire.wireSummary
	envelopeID := summary.EnvelopeID
	if wire.Data != nil {
		if wire.Data.EnvelopeSummary != nil {
			summary = *wire.Data.EnvelopeSummary
		}
		if summary.EnvelopeID != "" {
			envelopeID = summary.EnvelopeID
		} else if wire.Data.EnvelopeID != "" {
			envelopeID = wire.Data.EnvelopeID
		}
	}

	name := wire.Event
	if name == "" && summary.Status != "" {
		name = "envelope-" + strings.ToLower(summary.Status)
	}

	senderName := summary.Sender.UserName
	if senderName == "" {
		senderName = summary.Sender.Name
	}

	event := Event{
		Type:            classify(name),
		Name:            name,
		EnvelopeID:      envelopeID,
		Status:          strings.ToLower(summary.Status),
		StatusChangedAt: summary.StatusChangedDateTime,
		SenderName:      senderName,
		SenderEmail:     summary.Sender.Email,
		Recipients:      summary.Recipients.Signers,
		VoidedReason:    summary.VoidedReason,
		Raw:             json.RawMessage(body),
	}

	for _, doc := range summary.EnvelopeDocuments {
		if doc.PDFBytes == "" {
			continue
		}
		pdf, err := base64.StdEncoding.DecodeString(doc.PDFBytes)
		if err != nil {
			continue
		}
		event.DocumentPDF = pdf
		if doc.DocumentID == "combined" {
			break
		}
	}

	return event, nil
}

func classify(name string) EventType {
	switch EventType(name) {
	case EventEnvelopeCompleted, EventEnvelopeDeclined, EventEnvelopeVoided:
		return EventType(name)
	default:
		return EventUnrecognized
	}
}

// CompletedSigner returns the recipient who satisfied the envelope, if the
// payload identifies one.
func (e Event) CompletedSigner() (Recipient, bool) {
	for _, r := range e.Recipients {
		if strings.EqualFold(r.Status, "completed") && r.SignedDateTime != "" {
			return r, true
		}
	}
	return Recipient{}, false
}

// Decliner returns the recipient who declined, if the payload identifies one.
func (e Event) Decliner() (Recipient, bool) {
	for _, r := range e.Recipients {
		if strings.EqualFold(r.Status, "declined") {
			return r, true
		}
	}
	return Recipient{}, false
}
