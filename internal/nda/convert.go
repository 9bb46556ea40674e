package nda

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"esign/internal/docusign"
)

// ResponseFromSummary maps the vendor's creation/update summary onto the
// domain response.
func ResponseFromSummary(summary docusign.EnvelopeSummary) EnvelopeResponse {
	resp := EnvelopeResponse{
		EnvelopeID: summary.EnvelopeID,
		Status:     Status(strings.ToLower(summary.Status)),
		URI:        summary.URI,
	}
	if summary.StatusDateTime != "" {
		if t, err := time.Parse(time.RFC3339, summary.StatusDateTime); err == nil {
			resp.StatusDateTime = t
		}
	}
	return resp
}

// UniqueGroupName suffixes the configured prefix so concurrent sends never
// collide on the vendor's per-account signing group namespace.
func UniqueGroupName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// SignHereTab maps a tab position onto the vendor's sign-here tab. Fixed
// coordinates need a document id on the wire; anchors do not.
func SignHereTab(pos TabPosition) docusign.SignHere {
	if pos.UseFixed() {
		return docusign.SignHere{
			DocumentID: "1",
			PageNumber: pos.PageNumber,
			XPosition:  pos.XPosition,
			YPosition:  pos.YPosition,
		}
	}
	return docusign.SignHere{
		AnchorString:  pos.AnchorString,
		AnchorUnits:   pos.AnchorUnits,
		AnchorXOffset: pos.AnchorXOffset,
		AnchorYOffset: pos.AnchorYOffset,
	}
}

// DateSignedTab maps a tab position onto the vendor's date-signed tab.
func DateSignedTab(pos TabPosition) docusign.DateSigned {
	if pos.UseFixed() {
		return docusign.DateSigned{
			DocumentID: "1",
			PageNumber: pos.PageNumber,
			XPosition:  pos.XPosition,
			YPosition:  pos.YPosition,
		}
	}
	return docusign.DateSigned{
		AnchorString:  pos.AnchorString,
		AnchorUnits:   pos.AnchorUnits,
		AnchorXOffset: pos.AnchorXOffset,
		AnchorYOffset: pos.AnchorYOffset,
	}
}
