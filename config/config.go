package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

/* Config is read from an optional .env file (toml) and the environment
 * Every key has a default so environment-only deployments work
 */
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`

	RulesFile       string `mapstructure:"RULES_FILE"`
	EventMaxRetries int    `mapstructure:"EVENT_MAX_RETRIES"`

	SandboxMode       string `mapstructure:"SANDBOX_MODE"`
	SandboxTimeoutMS  int    `mapstructure:"SANDBOX_TIMEOUT_MS"`
	SandboxMemoryMB   int    `mapstructure:"SANDBOX_MEMORY_MB"`
	DispatchTimeout   int    `mapstructure:"DISPATCH_TIMEOUT_SECONDS"`
	ForwardingTimeout int    `mapstructure:"FORWARDING_TIMEOUT_SECONDS"`

	RelayEndpointID     string `mapstructure:"RELAY_ENDPOINT_ID"`
	RelayPort           int    `mapstructure:"RELAY_PORT"`
	RelayHost           string `mapstructure:"RELAY_HOST"`
	RelayClientID       string `mapstructure:"RELAY_CLIENT_ID"`
	RelayRequestTimeout int    `mapstructure:"RELAY_REQUEST_TIMEOUT_SECONDS"`
	RelayReconnectDelay int    `mapstructure:"RELAY_RECONNECT_DELAY_SECONDS"`
	HeartbeatInterval   int    `mapstructure:"HEARTBEAT_INTERVAL_SECONDS"`
}

var defaults = map[string]any{
	"PORT":                          "8080",
	"LOG_LEVEL":                     "info",
	"STORE_DRIVER":                  "redis",
	"REDIS_ADDR":                    "localhost:6379",
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"POSTGRES_URL":                  "",
	"RULES_FILE":                    "rules.yaml",
	"EVENT_MAX_RETRIES":             3,
	"SANDBOX_MODE":                  "process",
	"SANDBOX_TIMEOUT_MS":            5000,
	"SANDBOX_MEMORY_MB":             128,
	"DISPATCH_TIMEOUT_SECONDS":      10,
	"FORWARDING_TIMEOUT_SECONDS":    60,
	"RELAY_ENDPOINT_ID":             "",
	"RELAY_PORT":                    3000,
	"RELAY_HOST":                    "localhost",
	"RELAY_CLIENT_ID":               "",
	"RELAY_REQUEST_TIMEOUT_SECONDS": 30,
	"RELAY_RECONNECT_DELAY_SECONDS": 5,
	"HEARTBEAT_INTERVAL_SECONDS":    30,
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func GetConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration through v; a missing .env file is not an error
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

func (c *Config) GetSandboxTimeout() time.Duration {
	return millisOr(c.SandboxTimeoutMS, 5000)
}

func (c *Config) GetSandboxMemoryBytes() uint64 {
	if c.SandboxMemoryMB <= 0 {
		return 128 << 20
	}
	return uint64(c.SandboxMemoryMB) << 20
}

func (c *Config) GetDispatchTimeout() time.Duration {
	return secondsOr(c.DispatchTimeout, 10)
}

func (c *Config) GetForwardingTimeout() time.Duration {
	return secondsOr(c.ForwardingTimeout, 60)
}

func (c *Config) GetRelayRequestTimeout() time.Duration {
	return secondsOr(c.RelayRequestTimeout, 30)
}

func (c *Config) GetRelayReconnectDelay() time.Duration {
	return secondsOr(c.RelayReconnectDelay, 5)
}

func (c *Config) GetHeartbeatInterval() time.Duration {
	return secondsOr(c.HeartbeatInterval, 30)
}

func (c *Config) GetRelayPort() int {
	if c.RelayPort <= 0 || c.RelayPort > 65535 {
		return 3000
	}
	return c.RelayPort
}

// GetRelayClientID falls back to the hostname
func (c *Config) GetRelayClientID() string {
	if c.RelayClientID != "" {
		return c.RelayClientID
	}
	host, err := os.Hostname()
	if err != nil {
		return "relay"
	}
	return host
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func millisOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Millisecond
}
