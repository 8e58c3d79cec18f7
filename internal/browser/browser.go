// Package browser opens URLs in the user's default web browser. It wraps the
// open-golang library with a platform-specific command fallback so the OAuth
// login flow can hand the authorization URL to the desktop environment.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxOpeners are tried in order when the open-golang launch fails on Linux.
var linuxOpeners = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens the URL in the default web browser. It tries the
// open-golang library first and falls back to launching a platform-specific
// command directly.
//
// Returns:
//   - error: An error if no browser could be started, nil otherwise
func OpenURL(url string) error {
	if err := open.Run(url); err == nil {
		log.Debug("Opened URL via open-golang")
		return nil
	} else {
		log.Debugf("open-golang failed: %v, falling back to platform command", err)
	}

	cmd, err := launchCommand(url)
	if err != nil {
		return err
	}
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	log.Debugf("Opened URL via %s", cmd.Path)
	return nil
}

// IsAvailable reports whether the current system has a command that can open
// a browser. It only probes the command table; nothing is launched.
func IsAvailable() bool {
	_, err := launchCommand("about:blank")
	return err == nil
}

// launchCommand builds the platform-specific command that opens url in the
// default browser. The command is not started.
func launchCommand(url string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "linux":
		for _, opener := range linuxOpeners {
			if _, err := exec.LookPath(opener); err == nil {
				return exec.Command(opener, url), nil
			}
		}
		return nil, fmt.Errorf("no suitable browser opener found")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}
