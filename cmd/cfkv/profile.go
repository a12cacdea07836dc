package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/kv"
)

// profile is the YAML file format accepted by --config.
type profile struct {
	AccountID string `yaml:"account_id"`
	Email     string `yaml:"email"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
}

// buildClient prefers the profile file when one was given, otherwise the
// CF_* environment variables.
func buildClient(configPath string) (*kv.Client, error) {
	if strings.TrimSpace(configPath) == "" {
		return kv.NewFromEnv()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	var opts []kv.Option
	if p.BaseURL != "" {
		opts = append(opts, kv.WithBaseURL(p.BaseURL))
	}
	return kv.New(cfapi.Auth{
		AccountID: p.AccountID,
		Email:     p.Email,
		APIKey:    p.APIKey,
	}, opts...)
}
