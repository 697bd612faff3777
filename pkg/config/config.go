package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/shortontech/attributionrc/internal/command"
)

type Config struct {
	ServerAddr   string   `mapstructure:"server_addr"`
	TrustProxy   bool     `mapstructure:"trust_proxy"`    // honor X-Forwarded-For for client IPs
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"` // bytes for /command payload
	Outputs      []string `mapstructure:"outputs"`        // enabled sinks: log, kafka, postgres, amqp

	HMACSecret  string `mapstructure:"hmac_secret"`
	RequireHMAC bool   `mapstructure:"require_hmac"`

	Schema    string `mapstructure:"schema"`     // current or legacy
	CommandID string `mapstructure:"command_id"` // remote command id reported in traces
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or text

	RedisAddr string `mapstructure:"redis_addr"` // empty keeps SDK state in memory
	RedisKey  string `mapstructure:"redis_key"`

	DemoMode bool `mapstructure:"demo_mode"`
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	return splitList(v)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return trimList(strings.Split(v, ","))
}

func trimList(parts []string) []string {
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Defaults is the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		ServerAddr:   ":19890",
		MaxBodyBytes: 1 << 20, // 1 MiB
		Outputs:      []string{"log"},
		Schema:       command.SchemaCurrent.String(),
		CommandID:    "adjust",
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load reads the configuration from environment variables.
func Load() Config {
	d := Defaults()
	return Config{
		ServerAddr:   getOr("SERVER_ADDR", d.ServerAddr),
		TrustProxy:   getBool("TRUST_PROXY", false),
		MaxBodyBytes: getInt64("MAX_BODY_BYTES", d.MaxBodyBytes),
		Outputs:      getStringSlice("OUTPUTS", strings.Join(d.Outputs, ",")),
		HMACSecret:   getOr("HMAC_SECRET", ""),
		RequireHMAC:  getBool("REQUIRE_HMAC", false),
		Schema:       strings.ToLower(getOr("SCHEMA", d.Schema)),
		CommandID:    getOr("COMMAND_ID", d.CommandID),
		LogLevel:     getOr("LOG_LEVEL", d.LogLevel),
		LogFormat:    strings.ToLower(getOr("LOG_FORMAT", d.LogFormat)),
		RedisAddr:    getOr("REDIS_ADDR", ""),
		RedisKey:     getOr("REDIS_KEY", ""),
		DemoMode:     getBool("DEMO_MODE", false),
	}
}

// LoadFile reads a YAML (or any viper-supported) file with the same keys as
// the environment, in snake case. Environment variables override the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("server_addr", d.ServerAddr)
	v.SetDefault("trust_proxy", d.TrustProxy)
	v.SetDefault("max_body_bytes", d.MaxBodyBytes)
	v.SetDefault("outputs", d.Outputs)
	v.SetDefault("hmac_secret", d.HMACSecret)
	v.SetDefault("require_hmac", d.RequireHMAC)
	v.SetDefault("schema", d.Schema)
	v.SetDefault("command_id", d.CommandID)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_key", d.RedisKey)
	v.SetDefault("demo_mode", d.DemoMode)
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.Outputs = trimList(c.Outputs)
	c.Schema = strings.ToLower(c.Schema)
	c.LogFormat = strings.ToLower(c.LogFormat)
	return c, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("at least one output is required")
	}
	if c.RequireHMAC && c.HMACSecret == "" {
		return fmt.Errorf("require_hmac is set but hmac_secret is empty")
	}
	if _, err := command.ParseSchema(c.Schema); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}
