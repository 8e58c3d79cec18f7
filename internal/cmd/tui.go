package cmd

import (
	"fmt"
	"os"

	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/tui"
)

// DoTUI starts the terminal dashboard over the configured account.
func DoTUI(cfg *config.Config) {
	client := newClient(cfg, nil)
	if client.AccessToken() == "" {
		fmt.Println("No access token configured. Run monzokit -login first, then store the token as access-token or MONZO_ACCESS_TOKEN.")
		os.Exit(1)
	}
	if err := tui.Run(client); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}
}
