// Package config loads the watcher configuration file and keeps it current.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"github.com/EthStaker/validator-watcher/labelset"
)

const (
	pubkeyLength = 48

	defaultBeaconTimeoutSec = 90
	defaultNetwork          = "mainnet"
)

type Config struct {
	BeaconURL        string       `yaml:"beacon_url"`
	BeaconTimeoutSec int          `yaml:"beacon_timeout_sec"`
	Network          string       `yaml:"network"`
	SlackWebhook     string       `yaml:"slack_webhook"`
	WatchedKeys      []WatchedKey `yaml:"watched_keys"`
}

type WatchedKey struct {
	PublicKey string   `yaml:"public_key"`
	Labels    []string `yaml:"labels"`
}

func (c *Config) BeaconTimeout() time.Duration {
	return time.Duration(c.BeaconTimeoutSec) * time.Second
}

// Pubkeys returns the set of watched public keys.
func (c *Config) Pubkeys() labelset.Keys {
	out := make(labelset.Keys, len(c.WatchedKeys))
	for _, k := range c.WatchedKeys {
		out[k.PublicKey] = struct{}{}
	}
	return out
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.BeaconTimeoutSec <= 0 {
		cfg.BeaconTimeoutSec = defaultBeaconTimeoutSec
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}

	seen := make(map[string]bool, len(cfg.WatchedKeys))
	keys := cfg.WatchedKeys[:0]
	for _, k := range cfg.WatchedKeys {
		pubkey, err := NormalizePubkey(k.PublicKey)
		if err != nil {
			return nil, err
		}
		if seen[pubkey] {
			continue
		}
		seen[pubkey] = true
		k.PublicKey = pubkey
		keys = append(keys, k)
	}
	cfg.WatchedKeys = keys

	return cfg, nil
}

// NormalizePubkey checks that s is a 0x-prefixed hex encoded BLS public key
// and returns it in lowercase.
func NormalizePubkey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("public key must be 0x-prefixed: %q", s)
	}
	s = "0x" + strings.ToLower(s[2:])
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", fmt.Errorf("invalid public key %q: %w", s, err)
	}
	if len(b) != pubkeyLength {
		return "", fmt.Errorf("invalid public key length %d for %q", len(b), s)
	}
	return s, nil
}
