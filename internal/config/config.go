package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Store     StoreConfig
	Provider  ProviderConfig
	Lifecycle LifecycleConfig
	UI        UIConfig
	Log       LogConfig
	Server    ServerConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// StoreConfig selects the short-code backend: sqlite, http or memory.
type StoreConfig struct {
	Backend     string
	URL         string
	InitialCode int64 `mapstructure:"initial_code"`
	MaxCode     int64 `mapstructure:"max_code"`
	Timeout     time.Duration
}

// ProviderConfig tunes the simulated anchor service.
type ProviderConfig struct {
	APIKeyEnv      string        `mapstructure:"api_key_env"`
	APIKey         string        `mapstructure:"api_key"`
	HostLatency    time.Duration `mapstructure:"host_latency"`
	ResolveLatency time.Duration `mapstructure:"resolve_latency"`
	FailureRate    float64       `mapstructure:"failure_rate"`
}

// LifecycleConfig holds the short-code retry budget.
type LifecycleConfig struct {
	MaxAllocationAttempts int `mapstructure:"max_allocation_attempts"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	Model         string
}

// LogConfig points the structured log somewhere other than the terminal.
type LogConfig struct {
	Path  string
	Level string
}

// ServerConfig is used by the short-code server.
type ServerConfig struct {
	Addr string
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "cloudanchors")
}

func defaultConfigPath() string {
	if p := os.Getenv("CLOUDANCHORS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "cloudanchors", "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(dataDir(), "cloudanchors.db"))
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.url", "http://localhost:8080")
	v.SetDefault("store.initial_code", 142)
	v.SetDefault("store.max_code", 99999)
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("provider.api_key_env", "CLOUD_ANCHOR_API_KEY")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.host_latency", "2s")
	v.SetDefault("provider.resolve_latency", "1s")
	v.SetDefault("provider.failure_rate", 0.0)
	v.SetDefault("lifecycle.max_allocation_attempts", 3)
	v.SetDefault("ui.frame_interval", "33ms")
	v.SetDefault("ui.model", "Fox.sfb")
	v.SetDefault("log.path", filepath.Join(dataDir(), "cloudanchors.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")
}

// RegisterFlags adds flags that override config keys. Flag names match the
// keys with dots replaced by dashes (store.backend -> --store-backend).
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default $HOME/.config/cloudanchors/config.toml)")
	flags.String("database-path", "", "sqlite database path")
	flags.String("store-backend", "", "short-code store: sqlite, http or memory")
	flags.String("store-url", "", "short-code server URL for the http backend")
	flags.Duration("provider-host-latency", 0, "simulated hosting latency")
	flags.Float64("provider-failure-rate", 0, "probability that a simulated anchor request fails")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("server-addr", "", "listen address for the short-code server")
}

// Load reads configuration from defaults, file, env and flags, in increasing
// precedence. Env var overrides use prefix CLOUDANCHORS_. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CLOUDANCHORS_CONFIG")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			cfgPath = f.Value.String()
		}
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "cloudanchors"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CLOUDANCHORS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key, ok := flagKey(f.Name)
		if !ok {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

// flagKey maps provider-host-latency to provider.host_latency. Flags
// without a section prefix (config, seed, ...) are not config keys.
func flagKey(name string) (string, bool) {
	section, rest, ok := strings.Cut(name, "-")
	if !ok {
		return "", false
	}
	switch section {
	case "database", "store", "provider", "lifecycle", "ui", "log", "server":
	default:
		return "", false
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_"), true
}

// Validate rejects settings the rest of the program cannot work with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "memory":
	case "http":
		if strings.TrimSpace(c.Store.URL) == "" {
			return fmt.Errorf("config: store.url required for http backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.InitialCode <= 0 {
		return fmt.Errorf("config: store.initial_code must be positive")
	}
	if c.Store.MaxCode != 0 && c.Store.MaxCode < c.Store.InitialCode {
		return fmt.Errorf("config: store.max_code below store.initial_code")
	}
	if c.Provider.FailureRate < 0 || c.Provider.FailureRate > 1 {
		return fmt.Errorf("config: provider.failure_rate must be within [0,1]")
	}
	if c.UI.FrameInterval <= 0 {
		return fmt.Errorf("config: ui.frame_interval must be positive")
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The API key is written in plain text; prefer the env var or the secrets file.
func Save(cfg Config) (string, error) {
	path := defaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.url", cfg.Store.URL)
	v.Set("store.initial_code", cfg.Store.InitialCode)
	v.Set("store.max_code", cfg.Store.MaxCode)
	v.Set("store.timeout", cfg.Store.Timeout.String())
	v.Set("provider.api_key_env", cfg.Provider.APIKeyEnv)
	v.Set("provider.api_key", cfg.Provider.APIKey)
	v.Set("provider.host_latency", cfg.Provider.HostLatency.String())
	v.Set("provider.resolve_latency", cfg.Provider.ResolveLatency.String())
	v.Set("provider.failure_rate", cfg.Provider.FailureRate)
	v.Set("lifecycle.max_allocation_attempts", cfg.Lifecycle.MaxAllocationAttempts)
	v.Set("ui.frame_interval", cfg.UI.FrameInterval.String())
	v.Set("ui.model", cfg.UI.Model)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("server.addr", cfg.Server.Addr)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
