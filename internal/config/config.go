package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type DocsRsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type ValidateConfig struct {
	Strict              bool `mapstructure:"strict"`
	RequireDescriptions bool `mapstructure:"require_descriptions"`
}

type SearchConfig struct {
	Kinds []sidebar.Kind `mapstructure:"kinds"`
	Limit int            `mapstructure:"limit"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type Config struct {
	DocsRs   DocsRsConfig   `mapstructure:"docs_rs"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Validate ValidateConfig `mapstructure:"validate"`
	Search   SearchConfig   `mapstructure:"search"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
}

// Options returns the validation options for fetched pages.
func (c *Config) Options() sidebar.Options {
	return sidebar.Options{
		Strict:              c.Validate.Strict,
		RequireDescriptions: c.Validate.RequireDescriptions,
	}
}

// cacheBase returns the base cache directory for sidebarfetch.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/sidebarfetch as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "sidebarfetch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "sidebarfetch")
	}
	return filepath.Join(os.TempDir(), "sidebarfetch")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "index.db")
}

// CASDir returns the path to the content-addressable page store.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "sidebarfetch", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "sidebarfetch", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "sidebarfetch"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "sidebarfetch"))
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("SIDEBARFETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("docs_rs.base_url", "https://docs.rs")
	v.SetDefault("docs_rs.user_agent", "sidebarfetch/0.1.0")
	v.SetDefault("docs_rs.timeout", "60s")
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("validate.strict", false)
	v.SetDefault("validate.require_descriptions", false)
	v.SetDefault("search.kinds", "")
	v.SetDefault("search.limit", 20)
	v.SetDefault("daemon.expiration_seconds", 600)
}

// stringToKindSliceHookFunc accepts "struct,fn" for a []sidebar.Kind field,
// as environment variables deliver lists.
func stringToKindSliceHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf([]sidebar.Kind{}) || f.Kind() != reflect.String {
			return data, nil
		}
		var kinds []sidebar.Kind
		for _, k := range strings.Split(data.(string), ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, sidebar.Kind(k))
			}
		}
		return kinds, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.AllSettings())
}

func decode(settings map[string]interface{}) (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToKindSliceHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.check(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) check() error {
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 1
	}
	if c.DocsRs.BaseURL == "" {
		return fmt.Errorf("docs_rs.base_url must not be empty")
	}
	c.DocsRs.BaseURL = strings.TrimSuffix(c.DocsRs.BaseURL, "/")
	for _, k := range c.Search.Kinds {
		if c.Validate.Strict && !k.Known() {
			return fmt.Errorf("search.kinds: %w: %q", sidebar.ErrUnknownKind, k)
		}
	}
	return nil
}
