package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "quickpay.config")

const envPrefix = "QUICKPAY_"

// Config carries the client identity and redirect URI. Values come from
// ~/.config/quickpay.json, with QUICKPAY_-prefixed environment variables
// taking precedence field by field.
type Config struct {
	ClientID         string `json:"client_id"`
	ClientSecret     string `json:"client_secret"`
	ClientKID        string `json:"client_kid"`
	// ClientPrivateKey is either inline PEM or a path to a PEM file.
	ClientPrivateKey string `json:"client_private_key"`
	RedirectURI      string `json:"redirect_uri"`
	Environment      string `json:"environment"`
	SigningAlgorithm string `json:"signing_algorithm"`
}

// Path returns the per-user config file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".config", "quickpay.json"), nil
}

// Load reads the config file if present and overlays environment values.
func Load() (*Config, error) {
	cfg := &Config{}

	path, err := Path()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		logger.Debugf("loaded config from %s", path)
	case os.IsNotExist(err):
		logger.Debugf("no config file at %s, relying on environment", path)
	default:
		return nil, errors.Wrapf(err, "read %s", path)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overlay(&c.ClientID, "CLIENT_ID")
	overlay(&c.ClientSecret, "CLIENT_SECRET")
	overlay(&c.ClientKID, "CLIENT_KID")
	overlay(&c.ClientPrivateKey, "CLIENT_PRIVATE_KEY")
	overlay(&c.RedirectURI, "REDIRECT_URI")
	overlay(&c.Environment, "ENVIRONMENT")
	overlay(&c.SigningAlgorithm, "SIGNING_ALGORITHM")
}

func overlay(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

// Validate checks that the identity is complete enough to authenticate.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.RedirectURI == "" {
		return errors.New("redirect_uri is required")
	}
	if c.ClientPrivateKey == "" && c.ClientSecret == "" {
		return errors.New("either client_private_key or client_secret is required")
	}
	if c.ClientPrivateKey != "" && c.ClientKID == "" {
		return errors.New("client_kid is required when a private key is configured")
	}
	return nil
}

// Algorithm returns the configured signing algorithm, defaulting to ES256.
func (c *Config) Algorithm() string {
	if c.SigningAlgorithm == "" {
		return "ES256"
	}
	return c.SigningAlgorithm
}
