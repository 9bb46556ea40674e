// Package template manages reusable document templates on the vendor
// platform. The document upload cost is paid once at creation; sends then
// reference the template id.
package template

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"esign/internal/docusign"
	"esign/internal/nda"
	"esign/internal/observability"
)

// RoleName is the placeholder role templates define for their one signer
// slot; sends must address the same role.
const RoleName = "signer"

// API is the slice of the vendor client this orchestrator needs.
type API interface {
	CreateTemplate(ctx context.Context, tmpl docusign.EnvelopeTemplate) (docusign.TemplateSummary, error)
	GetTemplate(ctx context.Context, templateID string) (docusign.EnvelopeTemplate, error)
	ListTemplates(ctx context.Context, searchText string) (docusign.TemplateList, error)
	UpdateTemplateDocuments(ctx context.Context, templateID string, def docusign.EnvelopeDefinition) error
	DeleteTemplate(ctx context.Context, templateID string) error
	CreateEnvelope(ctx context.Context, def docusign.EnvelopeDefinition) (docusign.EnvelopeSummary, error)
	CreateSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) (docusign.SigningGroupInformation, error)
	DeleteSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) error
}

type Service struct {
	API API

	// Tab placement for the template's signer role. Zero values fall back
	// to the sample-document defaults.
	SignaturePosition  nda.TabPosition
	DateSignedPosition nda.TabPosition
}

// Create registers a document as a reusable template with an anchored
// signature role.
func (s *Service) Create(ctx context.Context, documentBase64, documentName, name, description string) (nda.TemplateInfo, error) {
	if documentBase64 == "" || documentName == "" {
		return nda.TemplateInfo{}, &docusign.ValidationError{Message: "template document and name are required"}
	}
	if name == "" {
		return nda.TemplateInfo{}, &docusign.ValidationError{Message: "template name is required"}
	}

	signHere := nda.SignHereTab(s.signaturePosition())
	signHere.RecipientID = "1"
	dateSigned := nda.DateSignedTab(s.dateSignedPosition())
	dateSigned.RecipientID = "1"

	tmpl := docusign.EnvelopeTemplate{
		Name:         name,
		Description:  description,
		EmailSubject: "NDA signature request",
		EmailBlurb:   "Please review and sign the attached non-disclosure agreement.",
		Documents:    []docusign.Document{templateDocument(documentBase64, documentName)},
		Recipients: &docusign.Recipients{Signers: []docusign.Signer{{
			RoleName:     RoleName,
			RecipientID:  "1",
			RoutingOrder: "1",
			Tabs: &docusign.Tabs{
				SignHereTabs:   []docusign.SignHere{signHere},
				DateSignedTabs: []docusign.DateSigned{dateSigned},
			},
		}}},
		Status: string(nda.StatusCreated),
	}

	summary, err := s.API.CreateTemplate(ctx, tmpl)
	if err != nil {
		return nda.TemplateInfo{}, err
	}
	return nda.TemplateInfo{
		TemplateID:  summary.TemplateID,
		Name:        name,
		Description: description,
		URI:         summary.URI,
	}, nil
}

// Get returns the template's descriptive fields.
func (s *Service) Get(ctx context.Context, templateID string) (nda.TemplateInfo, error) {
	tmpl, err := s.API.GetTemplate(ctx, templateID)
	if err != nil {
		return nda.TemplateInfo{}, err
	}
	return templateInfoOf(tmpl), nil
}

// List returns every template in the account, optionally filtered by name.
func (s *Service) List(ctx context.Context, searchText string) ([]nda.TemplateInfo, error) {
	list, err := s.API.ListTemplates(ctx, searchText)
	if err != nil {
		return nil, err
	}
	infos := make([]nda.TemplateInfo, 0, len(list.EnvelopeTemplates))
	for _, tmpl := range list.EnvelopeTemplates {
		infos = append(infos, templateInfoOf(tmpl))
	}
	return infos, nil
}

// UpdateDocument replaces the template's document in place.
func (s *Service) UpdateDocument(ctx context.Context, templateID, documentBase64, documentName string) (nda.TemplateInfo, error) {
	if documentBase64 == "" || documentName == "" {
		return nda.TemplateInfo{}, &docusign.ValidationError{Message: "template document and name are required"}
	}
	def := docusign.EnvelopeDefinition{
		Documents: []docusign.Document{templateDocument(documentBase64, documentName)},
	}
	if err := s.API.UpdateTemplateDocuments(ctx, templateID, def); err != nil {
		return nda.TemplateInfo{}, err
	}
	return s.Get(ctx, templateID)
}

func (s *Service) Delete(ctx context.Context, templateID string) error {
	return s.API.DeleteTemplate(ctx, templateID)
}

// SendFromTemplate sends an envelope referencing the template to one signer.
// No document bytes travel with this call.
func (s *Service) SendFromTemplate(ctx context.Context, templateID string, signer nda.Signer) (nda.EnvelopeResponse, error) {
	if signer.Email == "" || signer.Name == "" {
		return nda.EnvelopeResponse{}, &docusign.ValidationError{Message: "signer name and email are required"}
	}

	def := docusign.EnvelopeDefinition{
		TemplateID: templateID,
		TemplateRoles: []docusign.TemplateRole{{
			Email:    signer.Email,
			Name:     signer.Name,
			RoleName: RoleName,
		}},
		Status: string(nda.StatusSent),
	}

	summary, err := s.API.CreateEnvelope(ctx, def)
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}
	return nda.ResponseFromSummary(summary), nil
}

// SendFromTemplateWithSigningGroup runs the same ephemeral-group protocol as
// the envelope orchestrator, but the template role replaces the inline
// document.
func (s *Service) SendFromTemplateWithSigningGroup(ctx context.Context, templateID string, signers []nda.Signer, groupName string) (nda.EnvelopeResponse, error) {
	if len(signers) == 0 {
		return nda.EnvelopeResponse{}, &docusign.ValidationError{Message: "at least one signer is required"}
	}
	if groupName == "" {
		groupName = "NDA Signers"
	}

	users := make([]docusign.SigningGroupUser, 0, len(signers))
	for _, signer := range signers {
		users = append(users, docusign.SigningGroupUser{UserName: signer.Name, Email: signer.Email})
	}

	created, err := s.API.CreateSigningGroups(ctx, docusign.SigningGroupInformation{
		Groups: []docusign.SigningGroup{{
			GroupName: nda.UniqueGroupName(groupName),
			GroupType: "sharedSigningGroup",
			Users:     users,
		}},
	})
	if err != nil {
		observability.SigningGroups.WithLabelValues("create", "error").Inc()
		return nda.EnvelopeResponse{}, err
	}
	if len(created.Groups) == 0 || created.Groups[0].SigningGroupID == "" {
		observability.SigningGroups.WithLabelValues("create", "error").Inc()
		return nda.EnvelopeResponse{}, fmt.Errorf("template: vendor returned no signing group id")
	}
	observability.SigningGroups.WithLabelValues("create", "ok").Inc()
	groupID := created.Groups[0].SigningGroupID

	defer func() {
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
	}()

	def := docusign.EnvelopeDefinition{
		TemplateID: templateID,
		TemplateRoles: []docusign.TemplateRole{{
			SigningGroupID: groupID,
			RoleName:       RoleName,
		}},
		Status: string(nda.StatusSent),
	}

	summary, err := s.API.CreateEnvelope(ctx, def)
	if err != nil {
		return nda.EnvelopeResponse{}, err
	}
	return nda.ResponseFromSummary(summary), nil
}

func (s *Service) signaturePosition() nda.TabPosition {
	if s.SignaturePosition.UseAnchor() || s.SignaturePosition.UseFixed() {
		return s.SignaturePosition
	}
	return nda.DefaultSignaturePosition()
}

func (s *Service) dateSignedPosition() nda.TabPosition {
	if s.DateSignedPosition.UseAnchor() || s.DateSignedPosition.UseFixed() {
		return s.DateSignedPosition
	}
	return nda.DefaultDateSignedPosition()
}

func templateDocument(documentBase64, documentName string) docusign.Document {
	return docusign.Document{
		DocumentBase64: documentBase64,
		Name:           documentName,
		FileExtension:  "pdf",
		DocumentID:     "1",
	}
}

func templateInfoOf(tmpl docusign.EnvelopeTemplate) nda.TemplateInfo {
	return nda.TemplateInfo{
		TemplateID:  tmpl.TemplateID,
		Name:        tmpl.Name,
		Description: tmpl.Description,
		URI:         tmpl.URI,
	}
}
