package template

import (
	"context"
	"errors"
	"testing"

	"esign/internal/docusign"
	"esign/internal/nda"
)

type fakeAPI struct {
	createdTemplates []docusign.EnvelopeTemplate
	updatedDefs      []docusign.EnvelopeDefinition
	deletedTemplates []string
	envelopeDefs     []docusign.EnvelopeDefinition
	createdGroups    []docusign.SigningGroupInformation
	deletedGroupIDs  []string

	createEnvelopeErr error
	getTemplateErr    error
}

func (f *fakeAPI) CreateTemplate(ctx context.Context, tmpl docusign.EnvelopeTemplate) (docusign.TemplateSummary, error) {
	f.createdTemplates = append(f.createdTemplates, tmpl)
	return docusign.TemplateSummary{TemplateID: "tmpl-1", Name: tmpl.Name, URI: "/templates/tmpl-1"}, nil
}

func (f *fakeAPI) GetTemplate(ctx context.Context, templateID string) (docusign.EnvelopeTemplate, error) {
	if f.getTemplateErr != nil {
		return docusign.EnvelopeTemplate{}, f.getTemplateErr
	}
	return docusign.EnvelopeTemplate{TemplateID: templateID, Name: "NDA", Description: "mutual NDA"}, nil
}

func (f *fakeAPI) ListTemplates(ctx context.Context, searchText string) (docusign.TemplateList, error) {
	return docusign.TemplateList{EnvelopeTemplates: []docusign.EnvelopeTemplate{
		{TemplateID: "tmpl-1", Name: "NDA"},
		{TemplateID: "tmpl-2", Name: "NDA v2"},
	}}, nil
}

func (f *fakeAPI) UpdateTemplateDocuments(ctx context.Context, templateID string, def docusign.EnvelopeDefinition) error {
	f.updatedDefs = append(f.updatedDefs, def)
	return nil
}

func (f *fakeAPI) DeleteTemplate(ctx context.Context, templateID string) error {
	f.deletedTemplates = append(f.deletedTemplates, templateID)
	return nil
}

func (f *fakeAPI) CreateEnvelope(ctx context.Context, def docusign.EnvelopeDefinition) (docusign.EnvelopeSummary, error) {
	f.envelopeDefs = append(f.envelopeDefs, def)
	if f.createEnvelopeErr != nil {
		return docusign.EnvelopeSummary{}, f.createEnvelopeErr
	}
	return docusign.EnvelopeSummary{EnvelopeID: "env-1", Status: "sent"}, nil
}

func (f *fakeAPI) CreateSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) (docusign.SigningGroupInformation, error) {
	f.createdGroups = append(f.createdGroups, info)
	return docusign.SigningGroupInformation{
		Groups: []docusign.SigningGroup{{SigningGroupID: "grp-1"}},
	}, nil
}

func (f *fakeAPI) DeleteSigningGroups(ctx context.Context, info docusign.SigningGroupInformation) error {
	for _, g := range info.Groups {
		f.deletedGroupIDs = append(f.deletedGroupIDs, g.SigningGroupID)
	}
	return nil
}

func TestCreate(t *testing.T) {
	api := &fakeAPI{}
	s := &Service{API: api}

	info, err := s.Create(context.Background(), "ZG9jdW1lbnQ=", "nda.pdf", "NDA", "mutual NDA")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.TemplateID == "" {
		t.Fatalf("expected a template id, got %+v", info)
	}

	tmpl := api.createdTemplates[0]
	if len(tmpl.Documents) != 1 || tmpl.Documents[0].DocumentBase64 != "ZG9jdW1lbnQ=" {
		t.Fatalf("document not uploaded at creation: %+v", tmpl.Documents)
	}
	role := tmpl.Recipients.Signers[0]
	if role.RoleName != RoleName {
		t.Fatalf("role name %q", role.RoleName)
	}
	if role.Tabs == nil || len(role.Tabs.SignHereTabs) != 1 || len(role.Tabs.DateSignedTabs) != 1 {
		t.Fatalf("anchored tabs missing on the template role: %+v", role.Tabs)
	}
}

func TestCreateRequiresDocumentAndName(t *testing.T) {
	s := &Service{API: &fakeAPI{}}

	var verr *docusign.ValidationError
	if _, err := s.Create(context.Background(), "", "nda.pdf", "NDA", ""); !errors.As(err, &verr) {
		t.Fatalf("missing document accepted: %v", err)
	}
	if _, err := s.Create(context.Background(), "ZG9j", "nda.pdf", "", ""); !errors.As(err, &verr) {
		t.Fatalf("missing template name accepted: %v", err)
	}
}

func TestSendFromTemplateCarriesNoDocument(t *testing.T) {
	api := &fakeAPI{}
	s := &Service{API: api}

	resp, err := s.SendFromTemplate(context.Background(), "tmpl-1", nda.Signer{Name: "Alice", Email: "alice@x.com"})
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if resp.EnvelopeID != "env-1" {
		t.Fatalf("response %+v", resp)
	}

	def := api.envelopeDefs[0]
	if def.TemplateID != "tmpl-1" {
		t.Fatalf("template id not referenced: %+v", def)
	}
	if len(def.Documents) != 0 {
		t.Fatalf("send must not re-upload the document, carried %d documents", len(def.Documents))
	}
	if len(def.TemplateRoles) != 1 || def.TemplateRoles[0].Email != "alice@x.com" || def.TemplateRoles[0].RoleName != RoleName {
		t.Fatalf("template role wrong: %+v", def.TemplateRoles)
	}
}

func TestSendFromTemplateRejectsEmptySigner(t *testing.T) {
	s := &Service{API: &fakeAPI{}}
	_, err := s.SendFromTemplate(context.Background(), "tmpl-1", nda.Signer{Name: "Alice"})
	var verr *docusign.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSendFromTemplateWithSigningGroup(t *testing.T) {
	api := &fakeAPI{}
	s := &Service{API: api}

	signers := []nda.Signer{{Name: "A", Email: "a@x.com"}, {Name: "B", Email: "b@x.com"}}
	if _, err := s.SendFromTemplateWithSigningGroup(context.Background(), "tmpl-1", signers, ""); err != nil {
		t.Fatalf("SendFromTemplateWithSigningGroup: %v", err)
	}

	if len(api.createdGroups) != 1 || len(api.deletedGroupIDs) != 1 {
		t.Fatalf("group create/delete parity broken: created=%d deleted=%d",
			len(api.createdGroups), len(api.deletedGroupIDs))
	}
	if len(api.createdGroups[0].Groups[0].Users) != 2 {
		t.Fatalf("group should hold every signer: %+v", api.createdGroups[0].Groups[0].Users)
	}

	def := api.envelopeDefs[0]
	if def.TemplateID != "tmpl-1" || len(def.Documents) != 0 {
		t.Fatalf("group send should reference the template only: %+v", def)
	}
	if len(def.TemplateRoles) != 1 || def.TemplateRoles[0].SigningGroupID != "grp-1" {
		t.Fatalf("template role missing group id: %+v", def.TemplateRoles)
	}
}

func TestSendFromTemplateWithSigningGroupCleansUpOnFailure(t *testing.T) {
	api := &fakeAPI{createEnvelopeErr: &docusign.TransientError{Op: "create envelope", Err: errors.New("503")}}
	s := &Service{API: api}

	signers := []nda.Signer{{Name: "A", Email: "a@x.com"}, {Name: "B", Email: "b@x.com"}}
	if _, err := s.SendFromTemplateWithSigningGroup(context.Background(), "tmpl-1", signers, "NDA"); err == nil {
		t.Fatalf("expected send failure to surface")
	}
	if len(api.deletedGroupIDs) != 1 {
		t.Fatalf("group leaked on failure: deleted=%v", api.deletedGroupIDs)
	}
}

func TestUpdateDocument(t *testing.T) {
	api := &fakeAPI{}
	s := &Service{API: api}

	info, err := s.UpdateDocument(context.Background(), "tmpl-1", "bmV3ZG9j", "nda_v2.pdf")
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	if len(api.updatedDefs) != 1 || api.updatedDefs[0].Documents[0].Name != "nda_v2.pdf" {
		t.Fatalf("document update not sent: %+v", api.updatedDefs)
	}
	if info.TemplateID != "tmpl-1" {
		t.Fatalf("info %+v", info)
	}
}

func TestListAndDelete(t *testing.T) {
	api := &fakeAPI{}
	s := &Service{API: api}

	infos, err := s.List(context.Background(), "NDA")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].TemplateID != "tmpl-1" {
		t.Fatalf("list mapping: %+v", infos)
	}

	if err := s.Delete(context.Background(), "tmpl-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(api.deletedTemplates) != 1 || api.deletedTemplates[0] != "tmpl-2" {
		t.Fatalf("delete not forwarded: %v", api.deletedTemplates)
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	api := &fakeAPI{getTemplateErr: &docusign.NotFoundError{Op: "get template", ID: "missing"}}
	s := &Service{API: api}

	_, err := s.Get(context.Background(), "missing")
	var nfe *docusign.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
