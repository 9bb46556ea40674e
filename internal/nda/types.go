// Package nda holds the value types for NDA send requests and vendor
// responses. Requests are plain values; the fluent setters return modified
// copies so a half-built request can never alias another.
package nda

import (
	"strconv"
	"time"
)

// Status is the vendor-defined envelope lifecycle status.
type Status string

const (
	StatusCreated   Status = "created"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusVoided    Status = "voided"
)

// Signer is one potential recipient. Duplicates are forwarded to the vendor
// as-is; no uniqueness is enforced here.
type Signer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EventNotification configures envelope-level Connect callbacks.
type EventNotification struct {
	URL                   string   `json:"url"`
	EnvelopeEvents        []string `json:"envelopeEvents"`
	IncludeDocuments      bool     `json:"includeDocuments"`
	LoggingEnabled        bool     `json:"loggingEnabled"`
	RequireAcknowledgment bool     `json:"requireAcknowledgment"`
}

// DefaultEnvelopeEvents are the statuses worth a callback for this workflow.
func DefaultEnvelopeEvents() []string {
	return []string{"completed", "declined", "voided"}
}

// TabPosition places a tab either relative to an anchor string embedded in
// the document or at fixed page coordinates. Values are strings because the
// vendor wire format wants them that way. The offsets are explicit rather
// than baked in: the right offset depends entirely on how the anchor was
// embedded in the PDF.
type TabPosition struct {
	AnchorString  string `json:"anchorString,omitempty"`
	AnchorUnits   string `json:"anchorUnits,omitempty"`
	AnchorXOffset string `json:"anchorXOffset,omitempty"`
	AnchorYOffset string `json:"anchorYOffset,omitempty"`

	// Fixed-coordinate placement, used when no anchor string is set.
	PageNumber string `json:"pageNumber,omitempty"`
	XPosition  string `json:"xPosition,omitempty"`
	YPosition  string `json:"yPosition,omitempty"`
}

// UseAnchor reports whether the tab rides an anchor embedded in the document.
func (p TabPosition) UseAnchor() bool { return p.AnchorString != "" }

// UseFixed reports whether the tab is pinned to page coordinates.
func (p TabPosition) UseFixed() bool {
	return p.AnchorString == "" && p.PageNumber != "" && p.XPosition != "" && p.YPosition != ""
}

// FixedPosition pins a tab to absolute page coordinates, for documents that
// carry no embedded anchor.
func FixedPosition(page, x, y int) TabPosition {
	return TabPosition{
		PageNumber: strconv.Itoa(page),
		XPosition:  strconv.Itoa(x),
		YPosition:  strconv.Itoa(y),
	}
}

// DefaultSignaturePosition matches the /sn1/ anchor in the sample NDA.
func DefaultSignaturePosition() TabPosition {
	return TabPosition{AnchorString: "/sn1/", AnchorUnits: "pixels", AnchorXOffset: "20", AnchorYOffset: "10"}
}

// DefaultDateSignedPosition reuses the signature anchor shifted right, since
// the sample NDA has no dedicated date anchor.
func DefaultDateSignedPosition() TabPosition {
	return TabPosition{AnchorString: "/sn1/", AnchorUnits: "pixels", AnchorXOffset: "120", AnchorYOffset: "10"}
}

// Request describes one NDA send attempt. Built per attempt and discarded
// after submission.
type Request struct {
	DocumentBase64 string
	DocumentName   string

	EmailSubject string
	EmailBlurb   string

	// Signers are logically a set; order carries no meaning.
	Signers []Signer

	// GroupName prefixes the ephemeral signing group's unique name.
	GroupName string

	SignaturePosition  TabPosition
	DateSignedPosition TabPosition

	Webhook *EventNotification
}

// NewRequest fills in the workflow defaults for a document.
func NewRequest(documentBase64, documentName string) Request {
	return Request{
		DocumentBase64:     documentBase64,
		DocumentName:       documentName,
		EmailSubject:       "NDA signature request",
		EmailBlurb:         "Please review and sign the attached non-disclosure agreement.",
		GroupName:          "NDA Signers",
		SignaturePosition:  DefaultSignaturePosition(),
		DateSignedPosition: DefaultDateSignedPosition(),
	}
}

// WithSigner returns a copy of the request with one more signer.
func (r Request) WithSigner(name, email string) Request {
	signers := make([]Signer, 0, len(r.Signers)+1)
	signers = append(signers, r.Signers...)
	signers = append(signers, Signer{Name: name, Email: email})
	r.Signers = signers
	return r
}

// WithWebhook returns a copy of the request with the callback configured.
func (r Request) WithWebhook(n EventNotification) Request {
	if len(n.EnvelopeEvents) == 0 {
		n.EnvelopeEvents = DefaultEnvelopeEvents()
	}
	r.Webhook = &n
	return r
}

// Validate checks the request shape before anything is sent to the vendor.
func (r Request) Validate() error {
	if r.DocumentBase64 == "" {
		return errMissingDocument
	}
	if r.DocumentName == "" {
		return errMissingDocumentName
	}
	if len(r.Signers) == 0 {
		return errNoSigners
	}
	return nil
}

// EnvelopeResponse is the durable handle returned on envelope creation.
// EnvelopeID is the only value callers need to persist.
type EnvelopeResponse struct {
	EnvelopeID     string    `json:"envelopeId"`
	Status         Status    `json:"status"`
	StatusDateTime time.Time `json:"statusDateTime,omitempty"`
	URI            string    `json:"uri,omitempty"`
}

// TemplateInfo identifies a reusable document template. TemplateID outlives
// everything else in this system; it is referenced until explicit deletion.
type TemplateInfo struct {
	TemplateID  string `json:"templateId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri,omitempty"`
}
