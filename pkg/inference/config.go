package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds oracle configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key (optional for local providers)

	// Model
	Model string

	// Request defaults, used when the request leaves them zero
	MaxTokens   int
	Temperature float64
	TopP        float64

	// Timeouts
	Timeout time.Duration

	// Retry configuration (OpenAI-compatible client only)
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the shared client from internal/httpc.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring oracles.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "https://api.openai.com/v1", "http://localhost:11434/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTopP sets the default nucleus sampling value.
func WithTopP(p float64) Option {
	return func(c *Config) { c.TopP = p }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Config) { c.HTTPClient = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for OpenAI.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   1024,
		Temperature: 0.1,
		TopP:        0.95,
		Timeout:     15 * time.Second,
		MaxRetries:  0,
		RetryDelay:  100 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// resolve fills unset request values from the config defaults.
func (c *Config) resolve(gc GenerationConfig) GenerationConfig {
	if gc.Temperature == nil {
		gc.Temperature = Float64(c.Temperature)
	}
	if gc.TopP == 0 {
		gc.TopP = c.TopP
	}
	if gc.MaxTokens == 0 {
		gc.MaxTokens = c.MaxTokens
	}
	return gc
}
