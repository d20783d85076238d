package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

const (
	defaultVerifyURL            = "https://www.google.com/recaptcha/api/siteverify"
	responseBodyReadLimit int64 = 1024
)

var errSecretRequired = errors.New("recaptcha secret is required")

// Client verifies reCAPTCHA tokens against the siteverify endpoint.
type Client struct {
	httpClient *http.Client
	verifyURL  string
	secret     string
	minScore   float64
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithVerifyURL overrides the siteverify endpoint.
func WithVerifyURL(verifyURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(verifyURL)
		if trimmed != "" {
			c.verifyURL = trimmed
		}
	}
}

// WithMinScore sets the lowest v3 score accepted as human.
func WithMinScore(score float64) Option {
	return func(c *Client) {
		if score >= 0 && score <= 1 {
			c.minScore = score
		}
	}
}

// NewClient builds a verifier for the given server-side secret.
func NewClient(secret string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errSecretRequired
	}
	client := &Client{
		secret:     trimmed,
		verifyURL:  defaultVerifyURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verify reports whether the token belongs to a human. Transport and upstream
// failures are returned as dependency errors.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if c == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "recaptcha client not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recaptcha request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute recaptcha request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "recaptcha request failed")
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recaptcha response")
	}
	if !body.Success {
		return false, nil
	}
	// v2 responses carry no score
	if body.Score != nil && *body.Score < c.minScore {
		return false, nil
	}
	return true, nil
}

// AllowAll accepts every non-empty token. It backs the captcha bypass flag in development.
type AllowAll struct{}

func (AllowAll) Verify(_ context.Context, token, _ string) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}
