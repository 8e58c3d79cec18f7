package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/sdk/monzo"
)

// LoginOptions contains options for the login process.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local OAuth callback port when set (>0).
	CallbackPort int
}

// DoLogin runs the browser OAuth flow and prints the obtained access token.
// The token is not persisted; the user places it in the configuration file
// or the MONZO_ACCESS_TOKEN environment variable.
//
// Parameters:
//   - cfg: The application configuration
//   - options: Login options including browser behavior and callback port
func DoLogin(cfg *config.Config, options *LoginOptions) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		fmt.Println("Login requires client-id and client-secret in the configuration (or MONZO_CLIENT_ID / MONZO_CLIENT_SECRET).")
		os.Exit(1)
	}

	client := newClient(cfg, options)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Authenticate(ctx); err != nil {
		switch {
		case errors.Is(err, monzo.ErrLoginAborted):
			fmt.Println("Login cancelled.")
		case errors.Is(err, monzo.ErrStateMismatch):
			fmt.Println("Login failed: the callback did not match this login attempt. Please try again.")
		case errors.Is(err, monzo.ErrCallbackServer):
			fmt.Printf("Login failed: could not run the local callback server: %v\n", err)
			fmt.Println("Another process may be using the callback port. Retry with -callback-port.")
		default:
			fmt.Printf("Login failed: %v\n", err)
		}
		os.Exit(1)
	}

	log.Info("Login successful")
	fmt.Println("Login successful!")
	fmt.Println()
	fmt.Println("Access token (valid until it expires, keep it secret):")
	fmt.Println()
	fmt.Println(client.AccessToken())
	fmt.Println()
	fmt.Println("Store it as access-token in the config file or as MONZO_ACCESS_TOKEN.")
	fmt.Println("Approve the login in the Monzo app before calling the API.")
}
