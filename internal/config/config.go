// Package config provides pairdb server configuration. Values come from
// defaults, an optional config file, PAIRDB_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PAIRDB"

// Config holds pairdb server configuration.
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`      // TCP address for the text protocol
	AdminAddr      string        `mapstructure:"admin_addr"`       // HTTP admin address; empty disables it
	LogLevel       string        `mapstructure:"log_level"`        // error, warn, info, debug
	LogFile        string        `mapstructure:"log_file"`         // Optional file that also receives logs
	ReadBufferSize int           `mapstructure:"read_buffer_size"` // Bytes per connection read
	MaxLineLength  int           `mapstructure:"max_line_length"`  // Longest partial line buffered; 0 = unlimited
	MaxClients     int           `mapstructure:"max_clients"`      // Concurrent connections; 0 = unlimited
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`     // Read deadline per batch; 0 = none
	RequestQueue   int           `mapstructure:"request_queue"`    // Reactor queue length
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		ListenAddr:     ":7070",
		AdminAddr:      "",
		LogLevel:       "info",
		LogFile:        "",
		ReadBufferSize: 1024,
		MaxLineLength:  64 * 1024,
		MaxClients:     10000,
		IdleTimeout:    0,
		RequestQueue:   128,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"admin-addr":       "admin_addr",
	"log-level":        "log_level",
	"log-file":         "log_file",
	"read-buffer-size": "read_buffer_size",
	"max-line-length":  "max_line_length",
	"max-clients":      "max_clients",
	"idle-timeout":     "idle_timeout",
}

// Load builds a Config from defaults, the file at path (if non-empty), the
// environment and any flags in fs that map to config keys.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("admin_addr", def.AdminAddr)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("read_buffer_size", def.ReadBufferSize)
	v.SetDefault("max_line_length", def.MaxLineLength)
	v.SetDefault("max_clients", def.MaxClients)
	v.SetDefault("idle_timeout", def.IdleTimeout)
	v.SetDefault("request_queue", def.RequestQueue)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return errors.New("listen_addr must not be empty")
	case c.ReadBufferSize <= 0:
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	case c.MaxLineLength < 0:
		return fmt.Errorf("max_line_length must not be negative, got %d", c.MaxLineLength)
	case c.MaxClients < 0:
		return fmt.Errorf("max_clients must not be negative, got %d", c.MaxClients)
	case c.IdleTimeout < 0:
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	case c.RequestQueue < 0:
		return fmt.Errorf("request_queue must not be negative, got %d", c.RequestQueue)
	}
	return nil
}

// PortAddr turns a port argument into a listen address on all interfaces.
func PortAddr(port string) (string, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	return ":" + strconv.Itoa(n), nil
}
