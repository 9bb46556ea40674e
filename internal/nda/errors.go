package nda

import "esign/internal/docusign"

var (
	errMissingDocument     = &docusign.ValidationError{Message: "document is required"}
	errMissingDocumentName = &docusign.ValidationError{Message: "document name is required"}
	errNoSigners           = &docusign.ValidationError{Message: "at least one signer is required"}
)
