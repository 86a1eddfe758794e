package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models marketplace.yml.
type Config struct {
	Payments struct {
		MaxAmount        float64  `yaml:"max_amount" json:"max_amount"`
		RejectOversized  bool     `yaml:"reject_oversized" json:"reject_oversized"`
		Methods          []string `yaml:"methods" json:"methods"`
		CompletionMethod string   `yaml:"completion_method" json:"completion_method"`
	} `yaml:"payments" json:"payments"`
	Ratings struct {
		Precision int `yaml:"precision" json:"precision"`
	} `yaml:"ratings" json:"ratings"`
	Webhooks []Webhook `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// Webhook receives ledger events as JSON POSTs. An empty Events list means
// every event type.
type Webhook struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"-"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Active reports whether the hook should receive deliveries.
func (w Webhook) Active() bool {
	return w.Enabled == nil || *w.Enabled
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Payments.MaxAmount <= 0 {
		return fmt.Errorf("config.payments.max_amount must be positive")
	}
	if len(c.Payments.Methods) == 0 {
		return fmt.Errorf("config.payments.methods is required")
	}
	seen := map[string]bool{}
	for _, m := range c.Payments.Methods {
		if m == "" {
			return fmt.Errorf("config.payments.methods contains empty method")
		}
		if seen[m] {
			return fmt.Errorf("payment method %s listed twice", m)
		}
		seen[m] = true
	}
	if !c.AllowsMethod(c.Payments.CompletionMethod) {
		return fmt.Errorf("config.payments.completion_method %q is not a listed method", c.Payments.CompletionMethod)
	}
	if c.Ratings.Precision < 0 || c.Ratings.Precision > 6 {
		return fmt.Errorf("config.ratings.precision must be between 0 and 6")
	}
	for i, w := range c.Webhooks {
		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL", i)
		}
		if w.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// AllowsMethod reports whether method is a configured payment method.
func (c *Config) AllowsMethod(method string) bool {
	for _, m := range c.Payments.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "marketplace.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with jl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the default config when the workspace has no file.
func LoadOrDefault(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
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

const defaultTemplate = `payments:
  # amounts above the ceiling are clamped unless reject_oversized is set
  max_amount: 100000
  reject_oversized: false
  methods:
    - Credit Card
    - Debit Card
    - PayPal
    - Cash
    - Check
  # method recorded when a one-step completion names none
  completion_method: Cash

ratings:
  precision: 2

# webhooks:
#   - url: https://example.com/hooks/jobs
#     events: [job.claimed, payment.recorded]
#     secret: change-me
#     timeout_seconds: 5
`
