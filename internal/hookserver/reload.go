package hookserver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/monzokit/monzokit/internal/config"
)

// configReloadDebounce coalesces the burst of events editors produce when
// saving a file.
const configReloadDebounce = 150 * time.Millisecond

// watchConfig hot-reloads the forward and redaction settings when the
// config file changes on disk. The listen address and path are fixed for
// the lifetime of the server.
func (s *Server) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory rather than the file so atomic saves
	// (write-to-temp then rename) stay visible.
	dir := filepath.Dir(s.configPath)
	if err = watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Debugf("watching %s for config changes", s.configPath)

	var (
		reloadMu    sync.Mutex
		reloadTimer *time.Timer
	)
	scheduleReload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
		reloadTimer = time.AfterFunc(configReloadDebounce, s.reloadSettings)
	}
	defer func() {
		reloadMu.Lock()
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
		reloadMu.Unlock()
	}()

	target := filepath.Clean(s.configPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("config file event: %s %s", event.Op, event.Name)
			scheduleReload()
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(watchErr).Warn("config watcher error")
		}
	}
}

// reloadSettings re-reads the config file and swaps in the new relay
// settings. A broken file keeps the previous settings.
func (s *Server) reloadSettings() {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		log.WithError(err).Warn("config reload failed, keeping previous settings")
		return
	}
	next := &relaySettings{
		forwardURL: cfg.Webhook.ForwardURL,
		redact:     cfg.Webhook.Redact,
	}
	prev := s.settings.Swap(next)
	if prev == nil || *prev != *next {
		log.Infof("Webhook settings reloaded: redact=%t forward=%q", next.redact, next.forwardURL)
	}
}
