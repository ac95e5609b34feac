// Package config loads service settings from a YAML file, OTRUYEN_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: store.root_node is read from
// OTRUYEN_STORE_ROOT_NODE.
const EnvPrefix = "OTRUYEN"

// ErrNoStore is returned when neither a database URL nor a fixtures file
// is configured.
var ErrNoStore = errors.New("config: store.database_url or store.fixtures is required")

// Config is the full service configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Media   MediaConfig   `mapstructure:"media" yaml:"media"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Reader  ReaderConfig  `mapstructure:"reader" yaml:"reader"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// StoreConfig selects and configures the item database. Fixtures, when
// set, serves items from a local JSON export instead of the database.
type StoreConfig struct {
	DatabaseURL string        `mapstructure:"database_url" yaml:"database_url" validate:"omitempty,url"`
	RootNode    string        `mapstructure:"root_node" yaml:"root_node" validate:"required"`
	AuthToken   string        `mapstructure:"auth_token" yaml:"auth_token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries     int           `mapstructure:"retries" yaml:"retries" validate:"gte=0,lte=10"`
	Fixtures    string        `mapstructure:"fixtures" yaml:"fixtures"`
}

// MediaConfig locates ebook files and cover images.
type MediaConfig struct {
	Root           string `mapstructure:"root" yaml:"root" validate:"required"`
	EbooksSubpath  string `mapstructure:"ebooks_subpath" yaml:"ebooks_subpath" validate:"required"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	CDNImageDomain string `mapstructure:"cdn_image_domain" yaml:"cdn_image_domain" validate:"required,url"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	FrontendDomain  string        `mapstructure:"frontend_domain" yaml:"frontend_domain"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins" validate:"min=1"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// CatalogConfig tunes listings.
type CatalogConfig struct {
	ItemsPerPage int `mapstructure:"items_per_page" yaml:"items_per_page" validate:"gt=0,lte=500"`
	HomeWindow   int `mapstructure:"home_window" yaml:"home_window" validate:"gt=0"`
}

// ReaderConfig tunes EPUB reading.
type ReaderConfig struct {
	CacheEntries int               `mapstructure:"cache_entries" yaml:"cache_entries" validate:"gte=0"`
	CoverWidth   int               `mapstructure:"cover_width" yaml:"cover_width" validate:"gte=0,lte=1200"`
	Boilerplate  BoilerplateConfig `mapstructure:"boilerplate" yaml:"boilerplate"`
}

// BoilerplateConfig lists what marks a navigation entry as front matter.
// Changes are picked up while the server runs.
type BoilerplateConfig struct {
	TitleKeywords []string `mapstructure:"title_keywords" yaml:"title_keywords"`
	HrefPatterns  []string `mapstructure:"href_patterns" yaml:"href_patterns"`
}

// RedisConfig enables the item cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			RootNode: "library_items",
			Timeout:  10 * time.Second,
			Retries:  3,
		},
		Media: MediaConfig{
			Root:           "./media",
			EbooksSubpath:  "ebooks",
			CDNImageDomain: "https://img.otruyenapi.com",
		},
		Server: ServerConfig{
			Addr:            ":5000",
			FrontendDomain:  "http://localhost:3000",
			CORSOrigins:     []string{"*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			ItemsPerPage: 24,
			HomeWindow:   100,
		},
		Reader: ReaderConfig{
			CacheEntries: 32,
			CoverWidth:   300,
			Boilerplate: BoilerplateConfig{
				TitleKeywords: []string{"mục lục", "toc", "chào mừng", "welcome", "giới thiệu", "introduction", "table of contents"},
				HrefPatterns:  []string{"toc.html", "welcome.html", "intro.html"},
			},
		},
		Redis: RedisConfig{TTL: 5 * time.Minute},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Loader reads the configuration and can watch its file for changes.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate

	mu      sync.Mutex
	current *Config
}

// NewLoader creates a loader for the YAML file at path. An empty path
// searches for otruyen.yaml in the working directory and
// $HOME/.config/otruyen; a missing search result is not an error.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("otruyen")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/otruyen")
		}
	}
	return &Loader{v: v, validate: validator.New()}
}

// Load reads, decodes and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// File returns the configuration file in use, or "" when none was found.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Set overrides key, taking precedence over the file and the environment.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Watch calls apply with the new configuration each time the file
// changes. Changes that fail validation are logged and ignored.
func (l *Loader) Watch(logger *slog.Logger, apply func(*Config)) {
	if l.File() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		apply(cfg)
	})
	l.v.WatchConfig()
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Reader.Boilerplate.TitleKeywords = splitList(cfg.Reader.Boilerplate.TitleKeywords)
	cfg.Reader.Boilerplate.HrefPatterns = splitList(cfg.Reader.Boilerplate.HrefPatterns)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store.DatabaseURL == "" && cfg.Store.Fixtures == "" {
		return nil, ErrNoStore
	}
	return &cfg, nil
}

// splitList accepts both YAML lists and comma-separated environment
// values, dropping blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.database_url", d.Store.DatabaseURL)
	v.SetDefault("store.root_node", d.Store.RootNode)
	v.SetDefault("store.auth_token", d.Store.AuthToken)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("store.retries", d.Store.Retries)
	v.SetDefault("store.fixtures", d.Store.Fixtures)

	v.SetDefault("media.root", d.Media.Root)
	v.SetDefault("media.ebooks_subpath", d.Media.EbooksSubpath)
	v.SetDefault("media.base_url", d.Media.BaseURL)
	v.SetDefault("media.cdn_image_domain", d.Media.CDNImageDomain)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.frontend_domain", d.Server.FrontendDomain)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("catalog.items_per_page", d.Catalog.ItemsPerPage)
	v.SetDefault("catalog.home_window", d.Catalog.HomeWindow)

	v.SetDefault("reader.cache_entries", d.Reader.CacheEntries)
	v.SetDefault("reader.cover_width", d.Reader.CoverWidth)
	v.SetDefault("reader.boilerplate.title_keywords", d.Reader.Boilerplate.TitleKeywords)
	v.SetDefault("reader.boilerplate.href_patterns", d.Reader.Boilerplate.HrefPatterns)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

const fileHeader = `# otruyen-api configuration.
# Every key can be overridden by an environment variable, e.g.
# OTRUYEN_SERVER_ADDR=:8080 or OTRUYEN_REDIS_ADDR=localhost:6379.
`

// WriteDefault writes the default configuration as YAML to path. An
// existing file is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.WriteString(fileHeader + string(data)); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
