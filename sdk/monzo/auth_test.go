package monzo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// tokenEndpoint is a fake token exchange server that records the requests
// it receives.
type tokenEndpoint struct {
	mu       sync.Mutex
	calls    int
	lastForm url.Values
	status   int
	body     string
}

func newTokenEndpoint(t *testing.T) (*tokenEndpoint, string) {
	t.Helper()
	te := &tokenEndpoint{
		status: http.StatusOK,
		body:   `{"access_token": "access_token_99", "token_type": "Bearer"}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		te.mu.Lock()
		te.calls++
		te.lastForm = r.PostForm
		status, body := te.status, te.body
		te.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return te, server.URL
}

func (te *tokenEndpoint) callCount() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.calls
}

func (te *tokenEndpoint) form() url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.lastForm
}

func (te *tokenEndpoint) fail(status int, body string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.status = status
	te.body = body
}

// freePort finds a loopback port that is currently unused.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to probe for a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// newLoginClient builds a client whose login flow hands the authorization
// URL to the urls channel instead of a browser.
func newLoginClient(t *testing.T, tokenURL string, urls chan string) (*Client, int) {
	t.Helper()
	port := freePort(t)
	c := New("oauth2client_1", "user_1", "secret_1", &Options{
		TokenURL:     tokenURL,
		RedirectPort: port,
		PollTimeout:  20 * time.Millisecond,
		LoginPrompt:  func(u string) { urls <- u },
	})
	return c, port
}

// awaitAuthURL waits for the flow under test to produce its authorization
// URL and returns the parsed query.
func awaitAuthURL(t *testing.T, urls <-chan string) url.Values {
	t.Helper()
	select {
	case raw := <-urls:
		parsed, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("authorization URL %q does not parse: %v", raw, err)
		}
		return parsed.Query()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the authorization URL")
		return nil
	}
}

// hitCallback simulates the browser redirect by fetching the callback URL.
func hitCallback(t *testing.T, port int, query string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/monzo_callback?%s", port, query))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d", resp.StatusCode)
	}
	if string(body) != "Done. Please go back to the app." {
		t.Errorf("callback body = %q", string(body))
	}
}

func awaitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Authenticate to return")
		return nil
	}
}

func TestAuthenticateEndToEnd(t *testing.T) {
	te, tokenURL := newTokenEndpoint(t)
	urls := make(chan string, 1)
	c, port := newLoginClient(t, tokenURL, urls)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Authenticate(context.Background()) }()

	query := awaitAuthURL(t, urls)
	if got := query.Get("client_id"); got != "oauth2client_1" {
		t.Errorf("client_id = %q", got)
	}
	if got := query.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q", got)
	}
	wantRedirect := fmt.Sprintf("http://localhost:%d/monzo_callback", port)
	if got := query.Get("redirect_uri"); got != wantRedirect {
		t.Errorf("redirect_uri = %q, want %q", got, wantRedirect)
	}
	state := query.Get("state")
	if len(state) != 20 {
		t.Errorf("state length = %d, want 20", len(state))
	}

	hitCallback(t, port, "code=authcode_1&state="+url.QueryEscape(state))

	if err := awaitResult(t, errCh); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got := c.AccessToken(); got != "access_token_99" {
		t.Errorf("AccessToken() = %q", got)
	}
	if te.callCount() != 1 {
		t.Errorf("token endpoint hit %d times, want 1", te.callCount())
	}
	form := te.form()
	if got := form.Get("grant_type"); got != "authorization_code" {
		t.Errorf("grant_type = %q", got)
	}
	if got := form.Get("code"); got != "authcode_1" {
		t.Errorf("code = %q", got)
	}
	if got := form.Get("client_id"); got != "oauth2client_1" {
		t.Errorf("client_id = %q", got)
	}
	if got := form.Get("client_secret"); got != "secret_1" {
		t.Errorf("client_secret = %q", got)
	}
	if got := form.Get("redirect_uri"); got != wantRedirect {
		t.Errorf("redirect_uri = %q", got)
	}
}

func TestAuthenticateRejectsBadCallbacks(t *testing.T) {
	tests := []struct {
		name  string
		query func(state string) string
		want  *AuthError
	}{
		{
			name:  "state missing",
			query: func(string) string { return "code=authcode_1" },
			want:  ErrStateMismatch,
		},
		{
			name:  "state foreign",
			query: func(string) string { return "code=authcode_1&state=forged" },
			want:  ErrStateMismatch,
		},
		{
			name: "state duplicated",
			query: func(state string) string {
				s := url.QueryEscape(state)
				return "code=authcode_1&state=" + s + "&state=" + s
			},
			want: ErrStateMismatch,
		},
		{
			name:  "code missing",
			query: func(state string) string { return "state=" + url.QueryEscape(state) },
			want:  ErrInvalidCallback,
		},
		{
			name:  "code empty",
			query: func(state string) string { return "code=&state=" + url.QueryEscape(state) },
			want:  ErrInvalidCallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te, tokenURL := newTokenEndpoint(t)
			urls := make(chan string, 1)
			c, port := newLoginClient(t, tokenURL, urls)

			errCh := make(chan error, 1)
			go func() { errCh <- c.Authenticate(context.Background()) }()

			state := awaitAuthURL(t, urls).Get("state")
			hitCallback(t, port, tt.query(state))

			err := awaitResult(t, errCh)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() = %v, want %v", err, tt.want)
			}
			if te.callCount() != 0 {
				t.Errorf("token endpoint hit %d times, want none", te.callCount())
			}
			if c.AccessToken() != "" {
				t.Error("no token should be installed after a rejected callback")
			}
		})
	}
}

func TestAuthenticateContextCancelAborts(t *testing.T) {
	_, tokenURL := newTokenEndpoint(t)
	urls := make(chan string, 1)
	c, _ := newLoginClient(t, tokenURL, urls)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Authenticate(ctx) }()

	awaitAuthURL(t, urls)
	cancel()

	err := awaitResult(t, errCh)
	if !errors.Is(err, ErrLoginAborted) {
		t.Errorf("Authenticate() = %v, want ErrLoginAborted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestAuthenticateTokenExchangeFailure(t *testing.T) {
	te, tokenURL := newTokenEndpoint(t)
	te.fail(http.StatusBadRequest, `{"error": "invalid_grant"}`)
	urls := make(chan string, 1)
	c, port := newLoginClient(t, tokenURL, urls)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Authenticate(context.Background()) }()

	state := awaitAuthURL(t, urls).Get("state")
	hitCallback(t, port, "code=authcode_1&state="+url.QueryEscape(state))

	err := awaitResult(t, errCh)
	if !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("Authenticate() = %v, want ErrTokenExchange", err)
	}
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected an APIError cause, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if c.AccessToken() != "" {
		t.Error("no token should be installed after a failed exchange")
	}
}

func TestAuthenticatePortInUse(t *testing.T) {
	_, tokenURL := newTokenEndpoint(t)
	port := freePort(t)
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("failed to occupy port: %v", err)
	}
	defer func() { _ = ln.Close() }()

	c := New("oauth2client_1", "user_1", "secret_1", &Options{
		TokenURL:     tokenURL,
		RedirectPort: port,
		LoginPrompt:  func(string) {},
	})

	authErr := c.Authenticate(context.Background())
	if !errors.Is(authErr, ErrCallbackServer) {
		t.Errorf("Authenticate() = %v, want ErrCallbackServer", authErr)
	}
}

func TestEachLoginUsesAFreshState(t *testing.T) {
	_, tokenURL := newTokenEndpoint(t)

	states := make([]string, 0, 2)
	for range 2 {
		urls := make(chan string, 1)
		c, port := newLoginClient(t, tokenURL, urls)

		errCh := make(chan error, 1)
		go func() { errCh <- c.Authenticate(context.Background()) }()

		state := awaitAuthURL(t, urls).Get("state")
		states = append(states, state)

		hitCallback(t, port, "code=authcode_1&state="+url.QueryEscape(state))
		if err := awaitResult(t, errCh); err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
	}
	if states[0] == states[1] {
		t.Errorf("two logins produced the same state %q", states[0])
	}
}
