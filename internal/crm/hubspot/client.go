// ABOUTME: HubSpot REST adapter core: configuration, bearer transport, pacing, request/response handling
// ABOUTME: One Client per credential; every call is paced by a per-client rate limiter and never retried

package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
)

// DefaultBaseURL is the public HubSpot API endpoint.
const DefaultBaseURL = "https://api.hubapi.com"

// Defaults applied by Config.withDefaults.
const (
	DefaultPageSize          = 100
	DefaultMaxConcurrency    = 4
	DefaultRequestsPerSecond = 9.0
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Config controls every client built by NewFactory.
type Config struct {
	BaseURL string
	// PageSize is the per-request page limit for list and search calls.
	PageSize int
	// MaxPages caps how many pages a single list call follows. 0 follows every cursor.
	MaxPages int
	// MaxConcurrency bounds parallel engagement detail fetches.
	MaxConcurrency    int
	RequestsPerSecond float64
	UserAgent         string
	// Transport is the base round tripper under the bearer-token transport. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "hubspot-gateway"
	}
	return c
}

// NewFactory returns a crm.Factory producing HubSpot clients.
func NewFactory(cfg Config) crm.Factory {
	cfg = cfg.withDefaults()
	return func(cred credential.Credential) (crm.Client, error) {
		return New(cfg, cred)
	}
}

// Client talks to the HubSpot REST API with a single access token.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

var _ crm.Client = (*Client)(nil)

// New creates a client bound to cred.
func New(cfg Config, cred credential.Credential) (*Client, error) {
	if cred.IsZero() {
		return nil, credential.ErrMissingCredential
	}
	cfg = cfg.withDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing hubspot base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("hubspot base url %q must be absolute", cfg.BaseURL)
	}
	if base.Path == "" {
		base.Path = "/"
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token(), TokenType: "Bearer"})
	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: cfg.Transport},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxConcurrency),
	}, nil
}

// apiError is the error body HubSpot returns on non-2xx responses.
type apiError struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

// do sends one request. path segments are joined to the base URL and must already be
// escaped. A 404 yields crm.ErrNotFound; other failures yield *crm.ProviderError.
func (c *Client) do(ctx context.Context, method string, path []string, query url.Values, body, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	u := c.base.JoinPath(path...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &crm.ProviderError{Message: fmt.Sprintf("%s %s: %v", method, u.Path, errors.Unwrap(err)), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: %w", method, u.Path, crm.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &crm.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decoding %s %s response: %v", method, u.Path, err),
			Err:        err,
		}
	}
	return nil
}

// wait blocks for the rate limiter. A wait that cannot finish before ctx's deadline is
// reported as a deadline error.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("waiting for rate limiter: %w", context.DeadlineExceeded)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	pe := &crm.ProviderError{StatusCode: resp.StatusCode}
	var body apiError
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		pe.Message = body.Message
		pe.Category = body.Category
		pe.CorrelationID = body.CorrelationID
	} else {
		pe.Message = http.StatusText(resp.StatusCode)
	}
	if pe.CorrelationID == "" {
		pe.CorrelationID = resp.Header.Get("X-HubSpot-Correlation-Id")
	}
	return pe
}
