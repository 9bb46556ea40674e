package docusign

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthError means the credentials, key, or assertion were rejected. Fatal to
// the call; the operator has to fix configuration.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("docusign: %s: authentication failed: %s", e.Op, e.Message)
}

// ConsentRequiredError means the impersonated user has never granted the
// integration consent. Recoverable by opening URL in a browser once, not by
// retrying.
type ConsentRequiredError struct {
	URL string
}

func (e *ConsentRequiredError) Error() string {
	return "docusign: user consent required, grant it at " + e.URL
}

// ValidationError means the request shape was malformed, either detected
// locally or rejected by the vendor with a 400. Caller bug, fatal to the call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "docusign: invalid request: " + e.Message
}

// NotFoundError means the envelope or template id is unknown to the vendor.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("docusign: %s: %q not found", e.Op, e.ID)
}

// NotCompletedError means a signed-document download was attempted before the
// envelope reached completed. Callers should poll status and retry later.
type NotCompletedError struct {
	EnvelopeID string
	Status     string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("docusign: envelope %s is %s, not completed", e.EnvelopeID, e.Status)
}

// ErrSignatureInvalid rejects a webhook delivery whose HMAC does not match.
var ErrSignatureInvalid = errors.New("docusign: webhook signature invalid")

// TransientError wraps timeouts, 408/429/5xx responses and breaker-open
// states. Safe to retry with backoff; this harness itself never retries.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("docusign: %s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// isTransient classifies a transport error or HTTP status the way the vendor
// documents retryable conditions.
func isTransient(err error, httpStatus int) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return true
		}
		return false
	}
	if httpStatus == 408 || httpStatus == 429 {
		return true
	}
	return httpStatus >= 500 && httpStatus <= 599
}
