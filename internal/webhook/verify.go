package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the HMAC Connect computes over the request body.
// Connect can be configured with several keys; this harness checks the first.
const SignatureHeader = "X-DocuSign-Signature-1"

// VerifySignature recomputes the HMAC-SHA256 of the raw body and compares it
// in constant time against the base64 value the vendor presented.
func VerifySignature(key, payload []byte, provided string) bool {
	if provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// Sign computes the signature the vendor would send for payload, used by
// tests and local tooling.
func Sign(key, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
