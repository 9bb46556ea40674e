// Package envelope orchestrates envelope creation against the vendor API:
// single-signer sends, signing-group sends, status polling, and signed
// document download.
package envelope

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"esign/internal/docusign"
	"esign/internal/nda"
	"esign/internal/observability"
)

// API is the slice of the vendor client this orchestrator needs.
type API interface {
	CreateEnvelope(ctx context.Context, def docusign.EnvelopeDefinition) (docusign.EnvelopeSummary, error)
	GetEnvelope(ctx context.Context, envelopeID string) (docusign.Envelope, error)
	UpdateEnvelope(ctx context.Context, envelopeID string, update docusign.EnvelopeUpdate) (docusign.EnvelopeSummary, error)
	GetDocument(ctx context.Context, envelopeID, documentID string) ([]byte, error)
	CreateSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) (docusign.SigningGroupInformation, error)
	DeleteSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) error
}

type Service struct {
	API API
}

// SendSingle sends the document to exactly one signer with an anchored
// signature tab. Any other signer count is rejected rather than silently
// truncated.
func (s *Service) SendSingle(ctx context.Context, req nda.Request) (nda.EnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nda.EnvelopeResponse{}, err
	}
	if len(req.Signers) != 1 {
		return nda.EnvelopeResponse{}, &docusign.ValidationError{
			Message: fmt.Sprintf("single-signer send requires exactly 1 signer, got %d", len(req.Signers)),
		}
	}

	signer := docusign.Signer{
		Email:        req.Signers[0].Email,
		Name:         req.Signers[0].Name,
		RecipientID:  "1",
		RoutingOrder: "1",
		Tabs: &docusign.Tabs{
			SignHereTabs: []docusign.SignHere{nda.SignHereTab(req.SignaturePosition)},
		},
	}

	def := docusign.EnvelopeDefinition{
		EmailSubject:      req.EmailSubject,
		EmailBlurb:        req.EmailBlurb,
		Documents:         []docusign.Document{documentOf(req)},
		Recipients:        &docusign.Recipients{Signers: []docusign.Signer{signer}},
		Status:            string(nda.StatusSent),
		EventNotification: eventNotificationOf(req.Webhook),
	}

	summary, err := s.API.CreateEnvelope(ctx, def)
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}
	return nda.ResponseFromSummary(summary), nil
}

// SendWithSigningGroupAnchored sends to an ephemeral signing group with
// pre-placed signature and date tabs (anchor-relative or fixed-coordinate,
// per the request's positions). Any one member completing satisfies the
// envelope; the vendor notifies the rest that no action is needed.
func (s *Service) SendWithSigningGroupAnchored(ctx context.Context, req nda.Request) (nda.EnvelopeResponse, error) {
	return s.sendWithSigningGroup(ctx, req, true)
}

// SendWithSigningGroupFreeForm is the same protocol with no pre-placed tabs;
// the signer chooses positions interactively.
func (s *Service) SendWithSigningGroupFreeForm(ctx context.Context, req nda.Request) (nda.EnvelopeResponse, error) {
	return s.sendWithSigningGroup(ctx, req, false)
}

func (s *Service) sendWithSigningGroup(ctx context.Context, req nda.Request, placed bool) (nda.EnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nda.EnvelopeResponse{}, err
	}

	// Step 1: create the ephemeral signing group. A SigningGroup with every
	// signer as a member is the only construct that mails the invitation to
	// all of them; the SDK's group-recipient alternative silently notifies
	// only some members.
	groupID, err := s.createSigningGroup(ctx, req)
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}

	// Step 3: the group is deleted on every exit path, success or failure.
	// Accounts have a hard cap on concurrently defined groups, so leaking
	// one is worse than the envelope call failing. Cleanup failure is only
	// logged: a leaked group is a soft-limit risk, not a correctness break.
	defer s.deleteSigningGroup(groupID)

	signer := docusign.Signer{
		SigningGroupID: groupID,
		RecipientID:    "1",
		RoutingOrder:   "1",
	}
	if placed {
		signer.Tabs = &docusign.Tabs{
			SignHereTabs:   []docusign.SignHere{nda.SignHereTab(req.SignaturePosition)},
			DateSignedTabs: []docusign.DateSigned{nda.DateSignedTab(req.DateSignedPosition)},
		}
	}

	def := docusign.EnvelopeDefinition{
		EmailSubject:      req.EmailSubject,
		EmailBlurb:        req.EmailBlurb,
		Documents:         []docusign.Document{documentOf(req)},
		Recipients:        &docusign.Recipients{Signers: []docusign.Signer{signer}},
		Status:            string(nda.StatusSent),
		EventNotification: eventNotificationOf(req.Webhook),
	}

	// Step 2: the group id is the sole recipient slot.
	summary, err := s.API.CreateEnvelope(ctx, def)
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}
	return nda.ResponseFromSummary(summary), nil
}

func (s *Service) createSigningGroup(ctx context.Context, req nda.Request) (string, error) {
	users := make([]docusign.SigningGroupUser, 0, len(req.Signers))
	for _, signer := range req.Signers {
		users = append(users, docusign.SigningGroupUser{UserName: signer.Name, Email: signer.Email})
	}

	info := docusign.SigningGroupInformation{
		Groups: []docusign.SigningGroup{{
			GroupName: nda.UniqueGroupName(req.GroupName),
			GroupType: "sharedSigningGroup",
			Users:     users,
		}},
	}

	created, err := s.API.CreateSigningGroups(ctx, info)
	if err != nil {
		observability.SigningGroups.WithLabelValues("create", "error").Inc()
		return "", err
	}
	if len(created.Groups) == 0 || created.Groups[0].SigningGroupID == "" {
		observability.SigningGroups.WithLabelValues("create", "error").Inc()
		return "", fmt.Errorf("envelope: vendor returned no signing group id")
	}
	observability.SigningGroups.WithLabelValues("create", "ok").Inc()
	return created.Groups[0].SigningGroupID, nil
}

func (s *Service) deleteSigningGroup(groupID string) {
	// Fresh context: cleanup must run even when the request context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info := docusign.SigningGroupInformation{
		Groups: []docusign.SigningGroup{{SigningGroupID: groupID}},
	}
	if err := s.API.DeleteSigningGroups(ctx, info); err != nil {
		observability.SigningGroups.WithLabelValues("delete", "error").Inc()
		slog.Warn("signing group cleanup failed, group counts toward the account cap",
			"signing_group_id", groupID, "err", err)
		return
	}
	observability.SigningGroups.WithLabelValues("delete", "ok").Inc()
}

// GetStatus returns the envelope's current lifecycle status.
func (s *Service) GetStatus(ctx context.Context, envelopeID string) (nda.Status, error) {
	env, err := s.API.GetEnvelope(ctx, envelopeID)
	if err != nil {
		return "", err
	}
	return nda.Status(strings.ToLower(env.Status)), nil
}

// DownloadSignedDocument fetches the combined PDF of a completed envelope.
func (s *Service) DownloadSignedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	status, err := s.GetStatus(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if status != nda.StatusCompleted {
		return nil, &docusign.NotCompletedError{EnvelopeID: envelopeID, Status: string(status)}
	}

	pdf, err := s.API.GetDocument(ctx, envelopeID, "combined")
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("envelope: empty document for %s", envelopeID)
	}
	return pdf, nil
}

// Void cancels an envelope that has not been completed.
func (s *Service) Void(ctx context.Context, envelopeID, reason string) (nda.EnvelopeResponse, error) {
	if reason == "" {
		reason = "Voided"
	}
	summary, err := s.API.UpdateEnvelope(ctx, envelopeID, docusign.EnvelopeUpdate{
		Status:       string(nda.StatusVoided),
		VoidedReason: reason,
	})
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}
	resp := nda.ResponseFromSummary(summary)
	if resp.EnvelopeID == "" {
		resp.EnvelopeID = envelopeID
	}
	if resp.Status == "" {
		resp.Status = nda.StatusVoided
	}
	return resp, nil
}

func documentOf(req nda.Request) docusign.Document {
	return docusign.Document{
		DocumentBase64: req.DocumentBase64,
		Name:           req.DocumentName,
		FileExtension:  "pdf",
		DocumentID:     "1",
	}
}

func eventNotificationOf(n *nda.EventNotification) *docusign.EventNotification {
	if n == nil {
		return nil
	}
	events := make([]docusign.EnvelopeEvent, 0, len(n.EnvelopeEvents))
	for _, e := range n.EnvelopeEvents {
		events = append(events, docusign.EnvelopeEvent{EnvelopeEventStatusCode: e})
	}
	return &docusign.EventNotification{
		URL:                   n.URL,
		LoggingEnabled:        boolString(n.LoggingEnabled),
		RequireAcknowledgment: boolString(n.RequireAcknowledgment),
		IncludeDocuments:      boolString(n.IncludeDocuments),
		EnvelopeEvents:        events,
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
