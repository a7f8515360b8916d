// Package config resolves server settings from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string

	AssetsDir     string
	PublicBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	LogLevel  string
	LogFormat string

	TickInterval time.Duration
}

// fileConfig mirrors the YAML layout. Zero values mean "not set".
type fileConfig struct {
	Port          string   `yaml:"port"`
	DBPath        string   `yaml:"db_path"`
	JWTSecret     string   `yaml:"jwt_secret"`
	TokenTTLHours int      `yaml:"token_ttl_hours"`
	CORSOrigins   []string `yaml:"cors_origins"`
	MigrationsDir string   `yaml:"migrations_dir"`
	Assets        struct {
		Dir           string `yaml:"dir"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"assets"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	TickIntervalMS int `yaml:"tick_interval_ms"`
}

func Default() Config {
	return Config{
		Port:          "8080",
		DBPath:        "./data/zenfocus.db",
		JWTSecret:     "change-this-secret",
		TokenTTL:      72 * time.Hour,
		CORSOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		MigrationsDir: "./migrations",
		AssetsDir:     "./data/assets",
		GeminiModel:   "gemini-2.5-flash",
		LogLevel:      "info",
		LogFormat:     "json",
		TickInterval:  time.Second,
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("token ttl must be positive, got %s", cfg.TokenTTL)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.JWTSecret, fc.JWTSecret)
	if fc.TokenTTLHours != 0 {
		c.TokenTTL = time.Duration(fc.TokenTTLHours) * time.Hour
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	setString(&c.MigrationsDir, fc.MigrationsDir)
	setString(&c.AssetsDir, fc.Assets.Dir)
	setString(&c.PublicBaseURL, fc.Assets.PublicBaseURL)
	setString(&c.GeminiAPIKey, fc.Gemini.APIKey)
	setString(&c.GeminiModel, fc.Gemini.Model)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	if fc.TickIntervalMS != 0 {
		c.TickInterval = time.Duration(fc.TickIntervalMS) * time.Millisecond
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenTTL = time.Duration(getEnvInt("TOKEN_TTL_HOURS", int(c.TokenTTL/time.Hour))) * time.Hour
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.MigrationsDir = getEnv("MIGRATIONS_DIR", c.MigrationsDir)
	c.AssetsDir = getEnv("ASSETS_DIR", c.AssetsDir)
	c.PublicBaseURL = getEnv("PUBLIC_BASE_URL", c.PublicBaseURL)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.TickInterval = time.Duration(getEnvInt("TICK_INTERVAL_MS", int(c.TickInterval/time.Millisecond))) * time.Millisecond
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
