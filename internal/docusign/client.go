package docusign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"esign/internal/observability"
)

// Session is the authenticated context every API call runs under: a bearer
// token plus the account the token resolves to.
type Session struct {
	AccessToken string
	AccountID   string
	BaseURI     string
}

// SessionSource hands out valid sessions, refreshing tokens as needed.
type SessionSource interface {
	Session(ctx context.Context) (Session, error)
}

// Client is a thin authenticated wrapper over the eSignature REST API.
// Breaker and Limiter are optional; CallTimeout bounds each outbound call.
type Client struct {
	HTTP        *http.Client
	Sessions    SessionSource
	Breaker     *gobreaker.CircuitBreaker
	Limiter     *rate.Limiter
	CallTimeout time.Duration
}

func (c *Client) CreateEnvelope(ctx context.Context, def EnvelopeDefinition) (EnvelopeSummary, error) {
	var out EnvelopeSummary
	err := c.do(ctx, "create envelope", "", http.MethodPost, "/envelopes", def, &out)
	return out, err
}

func (c *Client) GetEnvelope(ctx context.Context, envelopeID string) (Envelope, error) {
	var out Envelope
	err := c.do(ctx, "get envelope", envelopeID, http.MethodGet, "/envelopes/"+url.PathEscape(envelopeID), nil, &out)
	return out, err
}

func (c *Client) UpdateEnvelope(ctx context.Context, envelopeID string, update EnvelopeUpdate) (EnvelopeSummary, error) {
	var out EnvelopeSummary
	err := c.do(ctx, "update envelope", envelopeID, http.MethodPut, "/envelopes/"+url.PathEscape(envelopeID), update, &out)
	return out, err
}

// GetDocument fetches document bytes. documentID "combined" returns every
// document of the envelope as a single PDF.
func (c *Client) GetDocument(ctx context.Context, envelopeID, documentID string) ([]byte, error) {
	path := "/envelopes/" + url.PathEscape(envelopeID) + "/documents/" + url.PathEscape(documentID)
	return c.doRaw(ctx, "get document", envelopeID, http.MethodGet, path, nil)
}

func (c *Client) CreateSigningGroups(ctx context.Context, info SigningGroupInformation) (SigningGroupInformation, error) {
	var out SigningGroupInformation
	err := c.do(ctx, "create signing groups", "", http.MethodPost, "/signing_groups", info, &out)
	return out, err
}

func (c *Client) DeleteSigningGroups(ctx context.Context, info SigningGroupInformation) error {
	return c.do(ctx, "delete signing groups", "", http.MethodDelete, "/signing_groups", info, nil)
}

func (c *Client) CreateTemplate(ctx context.Context, tmpl EnvelopeTemplate) (TemplateSummary, error) {
	var out TemplateSummary
	err := c.do(ctx, "create template", "", http.MethodPost, "/templates", tmpl, &out)
	return out, err
}

func (c *Client) GetTemplate(ctx context.Context, templateID string) (EnvelopeTemplate, error) {
	var out EnvelopeTemplate
	err := c.do(ctx, "get template", templateID, http.MethodGet, "/templates/"+url.PathEscape(templateID), nil, &out)
	return out, err
}

func (c *Client) ListTemplates(ctx context.Context, searchText string) (TemplateList, error) {
	path := "/templates"
	if searchText != "" {
		path += "?search_text=" + url.QueryEscape(searchText)
	}
	var out TemplateList
	err := c.do(ctx, "list templates", "", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) UpdateTemplateDocuments(ctx context.Context, templateID string, def EnvelopeDefinition) error {
	path := "/templates/" + url.PathEscape(templateID) + "/documents"
	return c.do(ctx, "update template documents", templateID, http.MethodPut, path, def, nil)
}

func (c *Client) DeleteTemplate(ctx context.Context, templateID string) error {
	return c.do(ctx, "delete template", templateID, http.MethodDelete, "/templates/"+url.PathEscape(templateID), nil, nil)
}

func (c *Client) do(ctx context.Context, op, targetID, method, path string, in, out any) error {
	raw, err := c.doRaw(ctx, op, targetID, method, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docusign: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, op, targetID, method, path string, in any) ([]byte, error) {
	sess, err := c.Sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	var body []byte
	if in != nil {
		body, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("docusign: %s: encode request: %w", op, err)
		}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &TransientError{Op: op, Err: err}
		}
	}

	endpoint := strings.TrimRight(sess.BaseURI, "/") + "/v2.1/accounts/" + url.PathEscape(sess.AccountID) + path

	start := time.Now()
	status, raw, err := c.roundTrip(ctx, op, method, endpoint, sess.AccessToken, body)
	observability.DocuSignLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.DocuSignCalls.WithLabelValues(op, "error", "0").Inc()
		return nil, err
	}

	if err := classifyStatus(op, targetID, status, raw); err != nil {
		observability.DocuSignCalls.WithLabelValues(op, "error", strconv.Itoa(status)).Inc()
		return nil, err
	}
	observability.DocuSignCalls.WithLabelValues(op, "ok", strconv.Itoa(status)).Inc()
	return raw, nil
}

type httpResult struct {
	status int
	body   []byte
}

func (c *Client) roundTrip(ctx context.Context, op, method, endpoint, token string, body []byte) (int, []byte, error) {
	call := func() (any, error) {
		reqCtx := ctx
		if c.CallTimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.CallTimeout)
			defer cancel()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpc := c.HTTP
		if httpc == nil {
			httpc = http.DefaultClient
		}
		resp, err := httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		// Transient vendor responses come back as errors so the breaker
		// counts them; otherwise a sustained outage of 5xx answers would
		// never trip it.
		if isTransient(nil, resp.StatusCode) {
			return nil, &TransientError{
				Op:  op,
				Err: fmt.Errorf("http %d: %s", resp.StatusCode, vendorMessage(b)),
			}
		}
		return httpResult{status: resp.StatusCode, body: b}, nil
	}

	var res any
	var err error
	if c.Breaker != nil {
		res, err = c.Breaker.Execute(call)
	} else {
		res, err = call()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, &TransientError{Op: op, Err: err}
		}
		var te *TransientError
		if errors.As(err, &te) {
			return 0, nil, err
		}
		if isTransient(err, 0) {
			return 0, nil, &TransientError{Op: op, Err: err}
		}
		return 0, nil, fmt.Errorf("docusign: %s: %w", op, err)
	}
	r := res.(httpResult)
	return r.status, r.body, nil
}

func classifyStatus(op, targetID string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := vendorMessage(body)
	switch {
	case status == 401 || status == 403:
		return &AuthError{Op: op, Message: msg}
	case status == 404:
		return &NotFoundError{Op: op, ID: targetID}
	case status == 400:
		return &ValidationError{Message: op + ": " + msg}
	default:
		return fmt.Errorf("docusign: %s: http %d: %s", op, status, msg)
	}
}

func vendorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		if e.ErrorCode != "" {
			return e.ErrorCode + ": " + e.Message
		}
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "no error body"
	}
	return s
}
