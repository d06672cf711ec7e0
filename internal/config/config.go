package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the workspace root.
const FileName = "docketline.yml"

// Config models docketline.yml.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
		// AllowHeaderActor trusts X-Actor-Id without a token. Local use only.
		AllowHeaderActor bool `yaml:"allow_header_actor"`
		DevLogin         bool `yaml:"dev_login"`
	} `yaml:"server"`
	Store struct {
		Driver    string `yaml:"driver"`
		Workspace string `yaml:"workspace"`
	} `yaml:"store"`
	Appointments struct {
		DefaultDurationMinutes int `yaml:"default_duration_minutes"`
	} `yaml:"appointments"`
	Reminders struct {
		Interval    time.Duration `yaml:"interval"`
		Lead        time.Duration `yaml:"lead"`
		Concurrency int           `yaml:"concurrency"`
	} `yaml:"reminders"`
	Events struct {
		OutboxSize      int             `yaml:"outbox_size"`
		DeliveryTimeout time.Duration   `yaml:"delivery_timeout"`
		Log             bool            `yaml:"log"`
		Webhooks        []WebhookConfig `yaml:"webhooks"`
		Redis           RedisConfig     `yaml:"redis"`
	} `yaml:"events"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Events  []string      `yaml:"events"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"max_len"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config.store.driver must be 'sqlite' or 'memory', got %q", c.Store.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if d := c.Appointments.DefaultDurationMinutes; d < 15 || d > 480 {
		return fmt.Errorf("config.appointments.default_duration_minutes must be between 15 and 480")
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("config.reminders.interval must be positive")
	}
	if c.Reminders.Lead < 0 {
		return fmt.Errorf("config.reminders.lead must not be negative")
	}
	if c.Reminders.Concurrency <= 0 {
		return fmt.Errorf("config.reminders.concurrency must be positive")
	}
	if c.Events.OutboxSize <= 0 {
		return fmt.Errorf("config.events.outbox_size must be positive")
	}
	for i, wh := range c.Events.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.events.webhooks[%d].url is required", i)
		}
		for _, evt := range wh.Events {
			if evt == "" {
				return fmt.Errorf("config.events.webhooks[%d] has empty event type", i)
			}
		}
	}
	if c.Events.Redis.URL != "" && c.Events.Redis.Stream == "" {
		return fmt.Errorf("config.events.redis.stream is required when redis.url is set")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be 'text' or 'json'")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1
  # jwt_secret is usually supplied through DOCKETLINE_JWT_SECRET
  allow_header_actor: false
  dev_login: false

store:
  driver: sqlite
  workspace: .

appointments:
  default_duration_minutes: 60

reminders:
  interval: 1h
  lead: 24h
  concurrency: 4

events:
  outbox_size: 256
  delivery_timeout: 5s
  log: true
  # webhooks:
  #   - url: https://example.invalid/hooks/docketline
  #     secret: change-me
  #     events: ["appointment.*", "mediation.reminder"]
  # redis:
  #   url: redis://localhost:6379/0
  #   stream: docketline.events
  #   max_len: 10000

log:
  level: info
  format: text
`
