package monzo

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/monzokit/monzokit/internal/browser"
	"github.com/monzokit/monzokit/internal/callback"
	"github.com/monzokit/monzokit/internal/misc"
)

// RedirectURI returns the redirect URI the login flow listens on. It must
// match the redirect URI registered for the OAuth client.
func (c *Client) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/%s", c.redirectPort, redirectPath)
}

// oauthConfig builds the OAuth2 configuration for this client. The API
// expects client credentials in the token request body rather than in a
// basic auth header.
func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.RedirectURI(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Authenticate runs the browser OAuth login flow and installs the obtained
// access token on the client.
//
// The flow starts a loopback listener for the authorization callback,
// points the user's browser at the authorization endpoint and blocks until
// the callback arrives, the context is cancelled, or the listener fails.
// Each call runs a fresh flow with a fresh state token.
//
// Parameters:
//   - ctx: cancels the wait for the callback and bounds the token exchange
//
// Returns an error when the flow fails:
//   - ErrCallbackServer when the listener cannot start or fails mid-wait
//   - ErrLoginAborted when ctx is cancelled before the callback arrives
//   - ErrInvalidCallback when the callback is malformed or carries no code
//   - ErrStateMismatch when the state parameter does not round-trip
//   - ErrTokenExchange when the code cannot be swapped for a token
func (c *Client) Authenticate(ctx context.Context) error {
	state, err := misc.RandomToken(secretLength)
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	coordinator, err := callback.NewCoordinator(c.redirectPort, c.pollTimeout)
	if err != nil {
		return NewAuthError(ErrCallbackServer, err)
	}
	defer func() { _ = coordinator.Close() }()

	// Cancelling the context unblocks the wait below.
	stop := context.AfterFunc(ctx, coordinator.Cancel)
	defer stop()

	authURL := c.oauthConfig().AuthCodeURL(state)
	c.promptLogin(authURL)

	log.Info("Waiting for authentication callback...")
	params, err := coordinator.Wait()
	if err != nil {
		switch {
		case errors.Is(err, callback.ErrCancelled):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return NewAuthError(ErrLoginAborted, ctxErr)
			}
			return ErrLoginAborted
		case errors.Is(err, callback.ErrBadCallback):
			return NewAuthError(ErrInvalidCallback, err)
		default:
			return NewAuthError(ErrCallbackServer, err)
		}
	}

	// The state must round-trip exactly once. Anything else means the
	// callback did not come from the flow this call started.
	states := params["state"]
	if len(states) != 1 || states[0] != state {
		return ErrStateMismatch
	}
	codes := params["code"]
	if len(codes) != 1 || codes[0] == "" {
		return NewAuthError(ErrInvalidCallback, fmt.Errorf("authorization code missing from callback"))
	}

	token, err := c.exchangeCode(ctx, codes[0])
	if err != nil {
		return err
	}
	c.accessToken = token
	log.Info("Authentication complete")
	return nil
}

// promptLogin opens the authorization URL in the user's browser, falling
// back to printing it when no browser can be launched.
func (c *Client) promptLogin(authURL string) {
	if c.loginPrompt != nil {
		c.loginPrompt(authURL)
		return
	}
	if c.noBrowser || !browser.IsAvailable() {
		fmt.Printf("Please open this URL in your browser:\n\n%s\n\n", authURL)
		if err := clipboard.WriteAll(authURL); err == nil {
			fmt.Println("The URL has been copied to your clipboard.")
		}
		return
	}
	fmt.Println("Opening browser for authentication...")
	if err := browser.OpenURL(authURL); err != nil {
		log.Warnf("Failed to open browser: %v", err)
		fmt.Printf("Please open this URL in your browser manually:\n\n%s\n\n", authURL)
	}
}

// exchangeCode swaps the authorization code for an access token.
func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	// The exchange must go through the same client as API calls so proxy
	// settings and request logging apply to it.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", NewAuthError(ErrTokenExchange,
				newAPIError(retrieveErr.Response.StatusCode, retrieveErr.Body))
		}
		return "", NewAuthError(ErrTokenExchange, err)
	}
	if token.AccessToken == "" {
		return "", NewAuthError(ErrTokenExchange, fmt.Errorf("token response carried no access token"))
	}
	return token.AccessToken, nil
}
