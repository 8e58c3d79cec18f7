// Package monzo implements a client for the Monzo HTTP API. It covers the
// browser OAuth login flow, including the local loopback server that
// receives the authorization callback, and the account, pot, transaction,
// feed, attachment and webhook operations of the API.
package monzo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/monzokit/monzokit/internal/logging"
	"github.com/monzokit/monzokit/internal/util"
)

const (
	defaultBaseURL  = "https://api.monzo.com/"
	defaultAuthURL  = "https://auth.monzo.com/"
	defaultTokenURL = "https://api.monzo.com/oauth2/token"

	// DefaultRedirectPort is the loopback port the login flow listens on
	// when none is configured.
	DefaultRedirectPort = 36453

	// redirectPath is the path segment of the registered redirect URI.
	redirectPath = "monzo_callback"

	// secretLength is the length of generated state and dedupe tokens.
	secretLength = 20

	defaultHTTPTimeout = 30 * time.Second
)

// Options tunes a Client beyond the required credentials. The zero value
// leaves every default in place.
type Options struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// AuthURL overrides the user authorization endpoint.
	AuthURL string
	// TokenURL overrides the token exchange endpoint.
	TokenURL string
	// RedirectPort overrides the loopback port the login flow listens on.
	RedirectPort int
	// PollTimeout bounds a single accept attempt while waiting for the
	// login callback. Zero keeps the default.
	PollTimeout time.Duration
	// NoBrowser suppresses the browser launch during login and prints the
	// authorization URL instead.
	NoBrowser bool
	// LoginPrompt, when set, receives the authorization URL instead of any
	// browser launch or printing. Embedding applications use this to show
	// the URL their own way.
	LoginPrompt func(authURL string)
	// ProxyURL routes all API traffic through an HTTP or SOCKS5 proxy.
	ProxyURL string
	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client
	// RequestLogger records full request/response exchanges when enabled.
	RequestLogger *logging.FileRequestLogger
}

// Client talks to the Monzo API on behalf of one OAuth client.
//
// A Client is safe for concurrent API calls once authenticated. Calling
// Authenticate or SetAccessToken concurrently with API calls is not.
type Client struct {
	clientID     string
	ownerID      string
	clientSecret string
	accessToken  string

	baseURL      string
	authURL      string
	tokenURL     string
	redirectPort int
	pollTimeout  time.Duration
	noBrowser    bool
	loginPrompt  func(authURL string)

	httpClient *http.Client
}

// New builds a Client from OAuth client credentials.
//
// Parameters:
//   - clientID: the OAuth client ID from the Monzo developer portal
//   - ownerID: the user ID that owns the OAuth client
//   - clientSecret: the OAuth client secret
//   - opts: optional tuning, may be nil
//
// Returns the configured client. No network traffic happens until the
// first call.
func New(clientID, ownerID, clientSecret string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		clientID:     clientID,
		ownerID:      ownerID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
		tokenURL:     defaultTokenURL,
		redirectPort: DefaultRedirectPort,
		pollTimeout:  opts.PollTimeout,
		noBrowser:    opts.NoBrowser,
		loginPrompt:  opts.LoginPrompt,
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	if opts.AuthURL != "" {
		c.authURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		c.tokenURL = opts.TokenURL
	}
	if opts.RedirectPort != 0 {
		c.redirectPort = opts.RedirectPort
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	httpClient = util.SetProxy(opts.ProxyURL, httpClient)
	if opts.RequestLogger != nil {
		httpClient.Transport = &logging.Transport{
			Base:   httpClient.Transport,
			Logger: opts.RequestLogger,
		}
	}
	c.httpClient = httpClient
	return c
}

// AccessToken returns the token currently used for API calls, empty before
// authentication.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// SetAccessToken installs a previously obtained token, skipping the login
// flow.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// OwnerID returns the user ID that owns the OAuth client.
func (c *Client) OwnerID() string {
	return c.ownerID
}

// get performs an authenticated GET. The path may carry a query string.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// postForm performs an authenticated POST with a form-encoded body.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, form)
}

// putForm performs an authenticated PUT with a form-encoded body.
func (c *Client) putForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, form)
}

// patchForm performs an authenticated PATCH with a form-encoded body.
func (c *Client) patchForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, path, form)
}

// del performs an authenticated DELETE.
func (c *Client) del(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs one API request and maps non-2xx responses onto the error
// taxonomy.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	ctx, requestID := logging.EnsureRequestID(ctx)

	endpoint := c.baseURL + strings.TrimPrefix(path, "/")
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	log.WithField("request_id", requestID).Debugf("Performing %s: %s", method, endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}
