// Package config loads the YAML configuration shared by the monzokit CLI and
// the client library. Values can also arrive through MONZO_* environment
// variables, which take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultCallbackPort is the loopback port the OAuth redirect URI points at.
const DefaultCallbackPort = 36453

// Config mirrors the monzokit.yaml configuration file.
type Config struct {
	// ClientID is the OAuth client identifier registered with Monzo.
	ClientID string `yaml:"client-id"`

	// ClientSecret is the OAuth client secret paired with ClientID.
	ClientSecret string `yaml:"client-secret"`

	// OwnerID is the Monzo user ID that owns the OAuth client.
	OwnerID string `yaml:"owner-id"`

	// AccessToken optionally seeds the client with a token obtained by an
	// earlier login, skipping the browser flow.
	AccessToken string `yaml:"access-token,omitempty"`

	// CallbackPort is the loopback port the login redirect returns to.
	CallbackPort int `yaml:"callback-port,omitempty"`

	// NoBrowser disables launching the desktop browser during login; the
	// authorization URL is printed instead.
	NoBrowser bool `yaml:"no-browser,omitempty"`

	// ProxyURL routes API traffic through a socks5://, http:// or https://
	// proxy when set.
	ProxyURL string `yaml:"proxy-url,omitempty"`

	// RequestLog enables per-exchange request logs under the logs directory.
	RequestLog bool `yaml:"request-log,omitempty"`

	// LoggingToFile sends application logs to a rotating file instead of
	// stdout.
	LoggingToFile bool `yaml:"logging-to-file,omitempty"`

	// LogsMaxTotalSizeMB caps the combined size of the logs directory,
	// including request logs. Zero disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb,omitempty"`

	// Debug raises the log level to debug.
	Debug bool `yaml:"debug,omitempty"`

	// Webhook configures the local webhook receiver started by -listen.
	Webhook WebhookConfig `yaml:"webhook,omitempty"`

	// dir is the directory the config file was loaded from
	dir string
}

// WebhookConfig holds the settings of the local webhook receiver.
type WebhookConfig struct {
	// Address is the listen address of the receiver, e.g. 127.0.0.1:8380.
	Address string `yaml:"address,omitempty"`

	// Path is the URL path transaction events are posted to.
	Path string `yaml:"path,omitempty"`

	// ForwardURL relays each received event to another HTTP endpoint when set.
	ForwardURL string `yaml:"forward-url,omitempty"`

	// Redact strips account numbers and sort codes from events before they
	// are logged or relayed.
	Redact bool `yaml:"redact,omitempty"`
}

// Load reads and parses the configuration file at path, then applies
// environment overrides and defaults.
//
// Parameters:
//   - path: The config file location
//
// Returns:
//   - *Config: The parsed configuration
//   - error: An error if the file cannot be read or parsed
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to an environment-only
// configuration when the file does not exist. This keeps the CLI usable with
// nothing but a .env file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{dir: "."}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		return cfg, nil
	}
	return Load(path)
}

// Dir reports the directory the configuration file was loaded from. Relative
// paths such as the logs directory are resolved against it.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MONZO_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("MONZO_CLIENT_SECRET"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("MONZO_OWNER_ID"); v != "" {
		c.OwnerID = v
	}
	if v := os.Getenv("MONZO_ACCESS_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv("MONZO_PROXY_URL"); v != "" {
		c.ProxyURL = v
	}
	if v := os.Getenv("MONZO_CALLBACK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.CallbackPort = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.CallbackPort == 0 {
		c.CallbackPort = DefaultCallbackPort
	}
	if c.Webhook.Address == "" {
		c.Webhook.Address = "127.0.0.1:8380"
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = "/events"
	}
}
