package kv

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
)

// EnvConfig is the environment-variable surface understood by NewFromEnv.
type EnvConfig struct {
	AccountID string `env:"CF_ACCOUNT_ID,required,notEmpty"`
	Email     string `env:"CF_EMAIL,required,notEmpty"`
	APIKey    string `env:"CF_API_KEY,required,notEmpty"`
	BaseURL   string `env:"CF_API_BASE_URL" envDefault:"https://api.cloudflare.com/client/v4"`
}

// NewFromEnv builds a Client from CF_* environment variables. Explicit
// options take precedence over the environment.
func NewFromEnv(opts ...Option) (*Client, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("kv: parse environment: %w", err)
	}

	opts = append([]Option{WithBaseURL(cfg.BaseURL)}, opts...)
	return New(cfapi.Auth{
		AccountID: cfg.AccountID,
		Email:     cfg.Email,
		APIKey:    cfg.APIKey,
	}, opts...)
}
