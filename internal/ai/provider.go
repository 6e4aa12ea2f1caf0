package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider is one text-generation backend. Implementations must honor ctx
// cancellation; the remediation service wraps every call in a timeout.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Config selects and configures the remediation backend.
type Config struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerMin  int           `mapstructure:"rate_per_minute"`
	MaxFileSize int           `mapstructure:"max_file_size"`
}

// NewProvider builds the configured backend. An empty provider name means
// remediation is disabled; callers get ErrDisabled from the service instead.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "", "none", "disabled":
		return nil, nil
	case "gemini":
		return NewGeminiProvider(ctx, config.APIKey, config.Model)
	case "openai":
		return NewOpenAIProvider(config.APIKey, config.Model, config.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", config.Provider)
	}
}
