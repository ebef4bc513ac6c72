package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the client configuration: the relay set, the per-call
// timeout, the signing key location and the optional gateway settings.
type Config struct {
	Relays    []string      `toml:"relays"`
	TimeoutMS int           `toml:"timeout_ms"`
	KeyFile   string        `toml:"key_file"`
	Gateway   GatewayConfig `toml:"gateway"`
}

type GatewayConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	EnablePprof bool   `toml:"enable_pprof"`
}

const (
	defaultTimeoutMS  = 5000
	defaultListenAddr = ":8080"
)

// Timeout returns the per-call fan-out deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Load reads a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if len(cfg.Relays) == 0 {
		return nil, fmt.Errorf("config %s lists no relays", path)
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from DIRNET_* environment variables.
// DIRNET_RELAYS is a comma-separated relay list.
func LoadFromEnv() *Config {
	cfg := &Config{
		KeyFile:   getEnv("DIRNET_KEY_FILE", ""),
		TimeoutMS: getEnvInt("DIRNET_TIMEOUT_MS", defaultTimeoutMS),
		Gateway: GatewayConfig{
			ListenAddr: getEnv("DIRNET_GATEWAY_ADDR", defaultListenAddr),
		},
	}
	if relays := os.Getenv("DIRNET_RELAYS"); relays != "" {
		for _, r := range strings.Split(relays, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.Relays = append(cfg.Relays, r)
			}
		}
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = defaultTimeoutMS
	}
	if c.Gateway.ListenAddr == "" {
		c.Gateway.ListenAddr = defaultListenAddr
	}
	if c.KeyFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.KeyFile = home + "/.dirnet/key"
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
