package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	CityDirectory CityDirectoryConfig `yaml:"cityDirectory"`
	Weather       WeatherConfig       `yaml:"weather"`
	Clock         ClockConfig         `yaml:"clock"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Journal       JournalConfig       `yaml:"journal"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// CityDirectoryConfig points at the city search service.
type CityDirectoryConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// WeatherConfig points at the weather service. APIKey is a secret and
// should come from WEATHER_API_KEY rather than the YAML file.
type WeatherConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// ClockConfig selects the time zone used for day/night decisions.
type ClockConfig struct {
	Timezone string `yaml:"timezone"`
}

// SessionsConfig controls generation counters used to discard stale results.
type SessionsConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for shared counters.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// JournalConfig controls the failure journal.
type JournalConfig struct {
	Capacity int            `yaml:"capacity"`
	MaxList  int            `yaml:"maxList"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file, an optional .env file and
// environment variables, in that order of precedence (lowest first).
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CITY_DIRECTORY_BASE_URL"); v != "" {
		cfg.CityDirectory.BaseURL = v
	}
	if v := os.Getenv("CITY_DIRECTORY_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.CityDirectory.Timeout = parsed
		}
	}
	if v := os.Getenv("WEATHER_BASE_URL"); v != "" {
		cfg.Weather.BaseURL = v
	}
	if v := os.Getenv("WEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("WEATHER_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Weather.Timeout = parsed
		}
	}
	if v := os.Getenv("CLOCK_TIMEZONE"); v != "" {
		cfg.Clock.Timezone = v
	}
	if v := os.Getenv("SESSIONS_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.TTL = parsed
		}
	}
	if v := os.Getenv("SESSIONS_VALKEY_ENABLED"); v != "" {
		cfg.Sessions.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SESSIONS_VALKEY_ADDR"); v != "" {
		cfg.Sessions.Valkey.Addr = v
	}
	if v := os.Getenv("JOURNAL_CAPACITY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Journal.Capacity = parsed
		}
	}
	if v := os.Getenv("JOURNAL_POSTGRES_DSN"); v != "" {
		cfg.Journal.Postgres.DSN = v
	}
	if v := os.Getenv("JOURNAL_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Journal.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("JOURNAL_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Journal.Postgres.MinConns = int32(parsed)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		CityDirectory: CityDirectoryConfig{
			BaseURL: "https://api.teleport.org/api/cities/",
			Timeout: 10 * time.Second,
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.openweathermap.org/data/2.5/weather",
			Timeout: 10 * time.Second,
		},
		Clock: ClockConfig{
			Timezone: "Local",
		},
		Sessions: SessionsConfig{
			TTL: 30 * time.Minute,
			Valkey: ValkeyConfig{
				Prefix: "cityweather",
			},
		},
		Journal: JournalConfig{
			Capacity: 200,
			MaxList:  50,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if err := validateBaseURL("cityDirectory.baseUrl", c.CityDirectory.BaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("weather.baseUrl", c.Weather.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Weather.APIKey) == "" {
		return errors.New("weather.apiKey cannot be empty (set WEATHER_API_KEY)")
	}
	if c.CityDirectory.Timeout <= 0 {
		return errors.New("cityDirectory.timeout must be positive")
	}
	if c.Weather.Timeout <= 0 {
		return errors.New("weather.timeout must be positive")
	}
	if _, err := c.Clock.Location(); err != nil {
		return fmt.Errorf("clock.timezone: %w", err)
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("sessions.ttl must be positive")
	}
	if c.Sessions.Valkey.Enabled && strings.TrimSpace(c.Sessions.Valkey.Addr) == "" {
		return errors.New("sessions.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Journal.Capacity <= 0 {
		return errors.New("journal.capacity must be positive")
	}
	if c.Journal.MaxList <= 0 {
		return errors.New("journal.maxList must be positive")
	}
	return nil
}

// Location resolves the configured time zone.
func (c ClockConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func validateBaseURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute url", field)
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
