// Package config loads rovo configuration from an optional TOML file and
// overlays it with environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/papercomputeco/rovo/pkg/credential"
	"github.com/papercomputeco/rovo/pkg/upstream"
	"github.com/papercomputeco/rovo/relay"
)

const (
	DefaultConfigPath = "rovo.toml"
	DefaultListenAddr = ":3001"
	DefaultRelayURL   = "http://localhost:3001"
	DefaultModel      = "gpt-4.1"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Relay   RelayConfig   `toml:"relay"`
	Gateway GatewayConfig `toml:"gateway"`
	ASAP    ASAPConfig    `toml:"asap"`
}

type LogConfig struct {
	Debug bool `toml:"debug"`
}

// RelayConfig covers both ends of the relay: where serve listens and where
// chat clients connect.
type RelayConfig struct {
	Listen string `toml:"listen"`
	URL    string `toml:"url"`
}

type GatewayConfig struct {
	URL         string   `toml:"url"`
	UseCaseID   string   `toml:"use_case_id"`
	CloudID     string   `toml:"cloud_id"`
	UserID      string   `toml:"user_id"`
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float32 `toml:"temperature"`
}

type ASAPConfig struct {
	PrivateKey     string `toml:"private_key"`
	PrivateKeyFile string `toml:"private_key_file"`
	Issuer         string `toml:"issuer"`
	KeyID          string `toml:"kid"`
	Audience       string `toml:"audience"`
	Lifetime       string `toml:"lifetime"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"log.debug":           "ROVO_DEBUG",
	"relay.listen":        "RELAY_LISTEN",
	"relay.url":           "ROVO_RELAY_URL",
	"gateway.url":         "AI_GATEWAY_URL",
	"gateway.use_case_id": "AI_GATEWAY_USE_CASE_ID",
	"gateway.cloud_id":    "AI_GATEWAY_CLOUD_ID",
	"gateway.user_id":     "AI_GATEWAY_USER_ID",
	"gateway.model":       "AI_GATEWAY_MODEL",
	"asap.private_key":    "ASAP_PRIVATE_KEY",
	"asap.issuer":         "ASAP_ISSUER",
	"asap.kid":            "ASAP_KID",
}

// Load reads path (DefaultConfigPath when empty) and applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{
		Relay: RelayConfig{
			Listen: DefaultListenAddr,
			URL:    DefaultRelayURL,
		},
		Gateway: GatewayConfig{
			Model: DefaultModel,
		},
		ASAP: ASAPConfig{
			Audience: credential.DefaultAudience,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("log.debug") {
		cfg.Log.Debug = v.GetBool("log.debug")
	}
	setString("relay.listen", &cfg.Relay.Listen)
	setString("relay.url", &cfg.Relay.URL)
	setString("gateway.url", &cfg.Gateway.URL)
	setString("gateway.use_case_id", &cfg.Gateway.UseCaseID)
	setString("gateway.cloud_id", &cfg.Gateway.CloudID)
	setString("gateway.user_id", &cfg.Gateway.UserID)
	setString("gateway.model", &cfg.Gateway.Model)
	setString("asap.private_key", &cfg.ASAP.PrivateKey)
	setString("asap.issuer", &cfg.ASAP.Issuer)
	setString("asap.kid", &cfg.ASAP.KeyID)
	return nil
}

// Credential returns the signer configuration. An inline key takes
// precedence over PrivateKeyFile.
func (c Config) Credential() (credential.Config, error) {
	out := credential.Config{
		PrivateKey: c.ASAP.PrivateKey,
		Issuer:     c.ASAP.Issuer,
		KeyID:      c.ASAP.KeyID,
		Audience:   c.ASAP.Audience,
	}
	if out.PrivateKey == "" && c.ASAP.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.ASAP.PrivateKeyFile)
		if err != nil {
			return credential.Config{}, fmt.Errorf("read private key file: %w", err)
		}
		out.PrivateKey = string(data)
	}
	if c.ASAP.Lifetime != "" {
		d, err := time.ParseDuration(c.ASAP.Lifetime)
		if err != nil {
			return credential.Config{}, fmt.Errorf("parse asap lifetime: %w", err)
		}
		out.Lifetime = d
	}
	return out, nil
}

// RelayConfig returns the relay server configuration.
func (c Config) RelayConfig() (relay.Config, error) {
	cred, err := c.Credential()
	if err != nil {
		return relay.Config{}, err
	}
	return relay.Config{
		ListenAddr:  c.Relay.Listen,
		UpstreamURL: c.Gateway.URL,
		Model:       c.Gateway.Model,
		MaxTokens:   c.Gateway.MaxTokens,
		Temperature: c.Gateway.Temperature,
		Identity: upstream.Identity{
			UseCaseID: c.Gateway.UseCaseID,
			CloudID:   c.Gateway.CloudID,
			UserID:    c.Gateway.UserID,
		},
		Credential: cred,
	}, nil
}
