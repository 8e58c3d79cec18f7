// Package cmd implements the subcommands behind the monzokit CLI flags.
package cmd

import (
	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/logging"
	"github.com/monzokit/monzokit/sdk/monzo"
)

// newClient builds an API client from the configuration. The access token,
// when present, is applied so API commands work without a fresh login.
//
// Parameters:
//   - cfg: The application configuration
//   - options: Login options overriding browser behavior and callback port
//
// Returns:
//   - *monzo.Client: A configured client instance
func newClient(cfg *config.Config, options *LoginOptions) *monzo.Client {
	if options == nil {
		options = &LoginOptions{}
	}

	opts := &monzo.Options{
		RedirectPort: cfg.CallbackPort,
		NoBrowser:    cfg.NoBrowser || options.NoBrowser,
		ProxyURL:     cfg.ProxyURL,
	}
	if options.CallbackPort > 0 {
		opts.RedirectPort = options.CallbackPort
	}
	if cfg.RequestLog {
		opts.RequestLogger = logging.NewFileRequestLogger(true, logging.ResolveLogDirectory(cfg), "")
	}

	client := monzo.New(cfg.ClientID, cfg.OwnerID, cfg.ClientSecret, opts)
	if cfg.AccessToken != "" {
		client.SetAccessToken(cfg.AccessToken)
	}
	return client
}
