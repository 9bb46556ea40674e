// Package auth implements the OAuth JWT grant against the DocuSign
// authorization server and caches the resulting token process-wide.
package auth

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"esign/internal/docusign"
	"esign/internal/observability"
)

const (
	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// Where the vendor's developer console sends the user after granting
	// consent. Good enough for the one-time manual approval flow.
	consentRedirectURI = "https://developers.docusign.com/platform/auth/consent"

	assertionLifetime = time.Hour
)

// Token is a scoped access token bound to the default account it resolves to.
type Token struct {
	AccessToken string
	AccountID   string
	BaseURI     string
	ExpiresAt   time.Time
}

// Client performs the JWT grant and caches one token process-wide. The
// zero-value fields fall back to sensible defaults; BaseURL exists so tests
// can point at a fake authorization server.
type Client struct {
	ClientID   string
	UserID     string
	AuthServer string // host only, e.g. account-d.docusign.com
	BaseURL    string // default https://{AuthServer}
	PrivateKey *rsa.PrivateKey
	Scopes     []string

	// Tokens are refreshed this long before their declared expiry.
	ExpiryMargin time.Duration

	HTTP *http.Client
	Now  func() time.Time

	mu  sync.Mutex
	tok *Token
}

// LoadPrivateKey reads an RSA private key in PEM form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return key, nil
}

// AccessToken returns the cached token, refreshing it synchronously when it
// is absent or within ExpiryMargin of its declared expiry. The check and the
// refresh happen under one lock so concurrent callers cannot race a
// duplicate refresh.
func (c *Client) AccessToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok != nil && c.now().Before(c.tok.ExpiresAt.Add(-c.margin())) {
		return *c.tok, nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		return Token{}, err
	}
	return *c.tok, nil
}

// ForceRefresh discards any cached token and fetches a new one.
func (c *Client) ForceRefresh(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(ctx); err != nil {
		return Token{}, err
	}
	return *c.tok, nil
}

// Session adapts the token to the REST client's SessionSource.
func (c *Client) Session(ctx context.Context) (docusign.Session, error) {
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return docusign.Session{}, err
	}
	return docusign.Session{
		AccessToken: tok.AccessToken,
		AccountID:   tok.AccountID,
		BaseURI:     tok.BaseURI,
	}, nil
}

// ConsentURL is where the impersonated user grants the integration one-time
// consent for the configured scopes.
func (c *Client) ConsentURL() string {
	return fmt.Sprintf(
		"https://%s/oauth/auth?response_type=code&scope=%s&client_id=%s&redirect_uri=%s",
		c.AuthServer,
		strings.Join(c.Scopes, "+"),
		c.ClientID,
		consentRedirectURI,
	)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type userInfo struct {
	Sub      string `json:"sub"`
	Accounts []struct {
		AccountID string `json:"account_id"`
		IsDefault bool   `json:"is_default"`
		BaseURI   string `json:"base_uri"`
	} `json:"accounts"`
}

func (c *Client) refreshLocked(ctx context.Context) error {
	tok, err := c.fetchToken(ctx)
	if err != nil {
		observability.TokenRefreshes.WithLabelValues("error").Inc()
		return err
	}
	observability.TokenRefreshes.WithLabelValues("ok").Inc()
	c.tok = &tok
	return nil
}

func (c *Client) fetchToken(ctx context.Context) (Token, error) {
	assertion, err := c.signAssertion()
	if err != nil {
		return Token{}, &docusign.AuthError{Op: "sign assertion", Message: err.Error()}
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)

	status, body, err := c.postForm(ctx, c.baseURL()+"/oauth/token", form)
	if err != nil {
		return Token{}, &docusign.TransientError{Op: "token request", Err: err}
	}
	if status != http.StatusOK {
		if bytes.Contains(body, []byte("consent_required")) {
			return Token{}, &docusign.ConsentRequiredError{URL: c.ConsentURL()}
		}
		return Token{}, &docusign.AuthError{Op: "token request", Message: errBody(status, body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return Token{}, &docusign.AuthError{Op: "token request", Message: "malformed token response"}
	}

	accountID, baseURI, err := c.resolveAccount(ctx, tr.AccessToken)
	if err != nil {
		return Token{}, err
	}

	return Token{
		AccessToken: tr.AccessToken,
		AccountID:   accountID,
		BaseURI:     baseURI,
		ExpiresAt:   c.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) signAssertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss":   c.ClientID,
		"sub":   c.UserID,
		"aud":   c.AuthServer,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
		"scope": strings.Join(c.Scopes, " "),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.PrivateKey)
}

// resolveAccount looks up the default account of the impersonated user; the
// account id and base URI scope every later API call.
func (c *Client) resolveAccount(ctx context.Context, accessToken string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/oauth/userinfo", nil)
	if err != nil {
		return "", "", &docusign.AuthError{Op: "userinfo", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpc().Do(req)
	if err != nil {
		return "", "", &docusign.TransientError{Op: "userinfo", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &docusign.TransientError{Op: "userinfo", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", &docusign.AuthError{Op: "userinfo", Message: errBody(resp.StatusCode, body)}
	}

	var ui userInfo
	if err := json.Unmarshal(body, &ui); err != nil {
		return "", "", &docusign.AuthError{Op: "userinfo", Message: "malformed userinfo response"}
	}
	if len(ui.Accounts) == 0 {
		return "", "", &docusign.AuthError{Op: "userinfo", Message: "no accounts for impersonated user"}
	}

	account := ui.Accounts[0]
	for _, a := range ui.Accounts {
		if a.IsDefault {
			account = a
			break
		}
	}
	return account.AccountID, strings.TrimRight(account.BaseURI, "/") + "/restapi", nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + c.AuthServer
}

func (c *Client) httpc() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) margin() time.Duration {
	if c.ExpiryMargin > 0 {
		return c.ExpiryMargin
	}
	return time.Minute
}

func errBody(status int, body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return fmt.Sprintf("http %d", status)
	}
	return fmt.Sprintf("http %d: %s", status, s)
}
