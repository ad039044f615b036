package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are settings read from the process environment. Unset
// variables leave the file configuration untouched.
type EnvOverrides struct {
	APIKey    string `env:"OPENAI_API_KEY"`
	BaseURL   string `env:"OPENAI_BASE_URL"`
	Model     string `env:"TABLETALK_MODEL"`
	MaxTurns  int    `env:"TABLETALK_MAX_TURNS"`
	StoreDSN  string `env:"TABLETALK_STORE_DSN"`
	JWTSecret string `env:"TABLETALK_AUTH_JWT_SECRET"`
}

// ParseEnv reads overrides from environ, or from the process environment
// when environ is nil.
func ParseEnv(environ map[string]string) (EnvOverrides, error) {
	var o EnvOverrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return o, fmt.Errorf("parse environment: %w", err)
	}
	return o, nil
}

// Apply copies every set override into c.
func (o EnvOverrides) Apply(c *Config) {
	if o.APIKey != "" {
		c.LLM.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		c.LLM.BaseURL = o.BaseURL
	}
	if o.Model != "" {
		c.LLM.Model = o.Model
	}
	if o.MaxTurns > 0 {
		c.LLM.MaxTurns = o.MaxTurns
	}
	if o.StoreDSN != "" {
		c.Store.DSN = o.StoreDSN
	}
	if o.JWTSecret != "" {
		c.Auth.JWTSecret = o.JWTSecret
	}
}
