package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store is the read-only key/value view handed to collaborators that look
// settings up at call time (the AI credential, the release repository).
// *viper.Viper satisfies it.
type Store interface {
	GetString(key string) string
	GetDuration(key string) time.Duration
}

const (
	KeyAIAPIKey  = "ai.api_key"
	KeyAIBaseURL = "ai.base_url"
	KeyAIModel   = "ai.model"
	KeyAITimeout = "ai.timeout"
	KeySiteURL   = "site.base_url"
	KeySiteTitle = "site.title"

	KeyUpdatesAPIBase   = "updates.api_base"
	KeyUpdatesOwner     = "updates.owner"
	KeyUpdatesRepo      = "updates.repo"
	KeyUpdatesSlug      = "updates.slug"
	KeyUpdatesCacheTTL  = "updates.cache_ttl"
	KeyUpdatesInstalled = "updates.installed_version"
)

type Config struct {
	AI      AI      `mapstructure:"ai"`
	Site    Site    `mapstructure:"site"`
	Store   DB      `mapstructure:"store"`
	Server  Server  `mapstructure:"server"`
	Auth    Auth    `mapstructure:"auth"`
	Updates Updates `mapstructure:"updates"`
	Logging Logging `mapstructure:"logging"`
}

type AI struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Site struct {
	BaseURL string `mapstructure:"base_url"`
	Title   string `mapstructure:"title"`
}

type DB struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Auth struct {
	Secret        string `mapstructure:"secret"`
	LocalOperator uint   `mapstructure:"local_operator"`
}

type Updates struct {
	APIBase          string        `mapstructure:"api_base"`
	Owner            string        `mapstructure:"owner"`
	Repo             string        `mapstructure:"repo"`
	Slug             string        `mapstructure:"slug"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	InstalledVersion string        `mapstructure:"installed_version"`
}

type Logging struct {
	Mode string `mapstructure:"mode"`
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// in the working directory and AUTOPOST_* environment variables, in
// increasing order of precedence. The returned viper instance is the Store.
func Load(configFile string) (*Config, *viper.Viper, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config")
		v.SetConfigName("autopost")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("autopost")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyAIAPIKey, "AUTOPOST_AI_API_KEY", "OPENROUTER_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAIBaseURL, "https://openrouter.ai/api/v1")
	v.SetDefault(KeyAIModel, "mistralai/mistral-7b-instruct")
	v.SetDefault(KeyAITimeout, "60s")

	v.SetDefault(KeySiteURL, "http://localhost:8080")
	v.SetDefault(KeySiteTitle, "GPT Auto Poster")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "autopost.db")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("auth.local_operator", 1)

	v.SetDefault(KeyUpdatesAPIBase, "https://api.github.com")
	v.SetDefault(KeyUpdatesOwner, "jpmishra096")
	v.SetDefault(KeyUpdatesRepo, "WP-GPT-Auto-Poster")
	v.SetDefault(KeyUpdatesSlug, "gpt-auto-poster")
	v.SetDefault(KeyUpdatesCacheTTL, "12h")
	v.SetDefault(KeyUpdatesInstalled, "1.0.1")

	v.SetDefault("logging.mode", "development")
}

func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", cfg.Store.Driver)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if !strings.HasPrefix(cfg.Site.BaseURL, "http://") && !strings.HasPrefix(cfg.Site.BaseURL, "https://") {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL, got %q", cfg.Site.BaseURL)
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	return nil
}
