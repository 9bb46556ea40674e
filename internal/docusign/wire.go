package docusign

// Wire types for the eSignature REST API v2.1. Only the fields this harness
// sends or reads are modeled; the vendor tolerates omitted fields.

type Document struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type SignHere struct {
	AnchorString  string `json:"anchorString,omitempty"`
	AnchorUnits   string `json:"anchorUnits,omitempty"`
	AnchorXOffset string `json:"anchorXOffset,omitempty"`
	AnchorYOffset string `json:"anchorYOffset,omitempty"`
	DocumentID    string `json:"documentId,omitempty"`
	PageNumber    string `json:"pageNumber,omitempty"`
	XPosition     string `json:"xPosition,omitempty"`
	YPosition     string `json:"yPosition,omitempty"`
	RecipientID   string `json:"recipientId,omitempty"`
}

type DateSigned struct {
	AnchorString  string `json:"anchorString,omitempty"`
	AnchorUnits   string `json:"anchorUnits,omitempty"`
	AnchorXOffset string `json:"anchorXOffset,omitempty"`
	AnchorYOffset string `json:"anchorYOffset,omitempty"`
	DocumentID    string `json:"documentId,omitempty"`
	PageNumber    string `json:"pageNumber,omitempty"`
	XPosition     string `json:"xPosition,omitempty"`
	YPosition     string `json:"yPosition,omitempty"`
	RecipientID   string `json:"recipientId,omitempty"`
}

type Tabs struct {
	SignHereTabs   []SignHere   `json:"signHereTabs,omitempty"`
	DateSignedTabs []DateSigned `json:"dateSignedTabs,omitempty"`
}

type Signer struct {
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	SigningGroupID string `json:"signingGroupId,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	RoutingOrder   string `json:"routingOrder,omitempty"`
	RoleName       string `json:"roleName,omitempty"`
	Tabs           *Tabs  `json:"tabs,omitempty"`
}

type Recipients struct {
	Signers []Signer `json:"signers,omitempty"`
}

type EnvelopeEvent struct {
	EnvelopeEventStatusCode string `json:"envelopeEventStatusCode"`
}

// EventNotification is the envelope-level Connect configuration. The vendor
// expects stringified booleans here.
type EventNotification struct {
	URL                   string          `json:"url"`
	LoggingEnabled        string          `json:"loggingEnabled,omitempty"`
	RequireAcknowledgment string          `json:"requireAcknowledgment,omitempty"`
	IncludeDocuments      string          `json:"includeDocuments,omitempty"`
	EnvelopeEvents        []EnvelopeEvent `json:"envelopeEvents,omitempty"`
}

type TemplateRole struct {
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	RoleName       string `json:"roleName,omitempty"`
	SigningGroupID string `json:"signingGroupId,omitempty"`
}

type EnvelopeDefinition struct {
	EmailSubject      string             `json:"emailSubject,omitempty"`
	EmailBlurb        string             `json:"emailBlurb,omitempty"`
	Documents         []Document         `json:"documents,omitempty"`
	Recipients        *Recipients        `json:"recipients,omitempty"`
	Status            string             `json:"status,omitempty"`
	EventNotification *EventNotification `json:"eventNotification,omitempty"`
	TemplateID        string             `json:"templateId,omitempty"`
	TemplateRoles     []TemplateRole     `json:"templateRoles,omitempty"`
}

type EnvelopeSummary struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status"`
	StatusDateTime string `json:"statusDateTime,omitempty"`
	URI            string `json:"uri,omitempty"`
}

type Envelope struct {
	EnvelopeID            string `json:"envelopeId"`
	Status                string `json:"status"`
	StatusChangedDateTime string `json:"statusChangedDateTime,omitempty"`
	CreatedDateTime       string `json:"createdDateTime,omitempty"`
	VoidedReason          string `json:"voidedReason,omitempty"`
}

// EnvelopeUpdate drives the envelope PUT, used here only for voiding.
type EnvelopeUpdate struct {
	Status       string `json:"status"`
	VoidedReason string `json:"voidedReason,omitempty"`
}

type SigningGroupUser struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

type SigningGroup struct {
	SigningGroupID string             `json:"signingGroupId,omitempty"`
	GroupName      string             `json:"groupName,omitempty"`
	GroupType      string             `json:"groupType,omitempty"`
	Users          []SigningGroupUser `json:"users,omitempty"`
}

type SigningGroupInformation struct {
	Groups []SigningGroup `json:"groups"`
}

type EnvelopeTemplate struct {
	TemplateID   string      `json:"templateId,omitempty"`
	Name         string      `json:"name,omitempty"`
	Description  string      `json:"description,omitempty"`
	EmailSubject string      `json:"emailSubject,omitempty"`
	EmailBlurb   string      `json:"emailBlurb,omitempty"`
	Documents    []Document  `json:"documents,omitempty"`
	Recipients   *Recipients `json:"recipients,omitempty"`
	Status       string      `json:"status,omitempty"`
	URI          string      `json:"uri,omitempty"`
}

type TemplateSummary struct {
	TemplateID string `json:"templateId"`
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
}

type TemplateList struct {
	EnvelopeTemplates []EnvelopeTemplate `json:"envelopeTemplates,omitempty"`
}

type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
