package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/hookserver"
)

// DoListen runs the local webhook receiver until interrupted. Register the
// receiver's public URL with RegisterWebhook to see live transaction events.
//
// Parameters:
//   - cfg: The application configuration
//   - configPath: The config file location, watched for setting changes
func DoListen(cfg *config.Config, configPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := hookserver.New(cfg, configPath)
	if err := server.Run(ctx); err != nil {
		fmt.Printf("Webhook receiver failed: %v\n", err)
		os.Exit(1)
	}
}
