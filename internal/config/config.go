// Package config loads the server configuration from the environment.
//
// A .env file in the working directory is read first if it exists; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Upload  UploadConfig
	MinIO   MinIOConfig
	Session SessionConfig
	Redis   RedisConfig
	OIDC    OIDCConfig
	Login   LoginConfig

	SweepGrace time.Duration
	LogLevel   string
}

type ServerConfig struct {
	Port    int
	BaseURL string
}

type DBConfig struct {
	Path string
}

type UploadConfig struct {
	Backend  string // fs | minio
	Dir      string
	MaxBytes int64
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Store  string // sqlite | redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type LoginConfig struct {
	RateRPS   float64
	RateBurst int
}

const (
	BackendFS    = "fs"
	BackendMinIO = "minio"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "data/recipes.db")
	v.SetDefault("UPLOAD_DIR", "data/uploads")
	v.SetDefault("UPLOAD_BACKEND", BackendFS)
	v.SetDefault("MAX_UPLOAD_BYTES", 16<<20)
	v.SetDefault("MINIO_BUCKET", "recipe-box")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_STORE", StoreSQLite)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OIDC_ISSUER_URL", "https://accounts.google.com")
	v.SetDefault("LOGIN_RATE_RPS", 1.0)
	v.SetDefault("LOGIN_RATE_BURST", 5)
	v.SetDefault("SWEEP_GRACE", "1h")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads envFile (skipped when it does not exist) and the process
// environment, applies defaults and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:    v.GetInt("PORT"),
			BaseURL: strings.TrimSuffix(v.GetString("BASE_URL"), "/"),
		},
		DB: DBConfig{Path: v.GetString("DB_PATH")},
		Upload: UploadConfig{
			Backend:  strings.ToLower(v.GetString("UPLOAD_BACKEND")),
			Dir:      v.GetString("UPLOAD_DIR"),
			MaxBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Session: SessionConfig{
			Secret: v.GetString("SESSION_SECRET"),
			TTL:    v.GetDuration("SESSION_TTL"),
			Store:  strings.ToLower(v.GetString("SESSION_STORE")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		OIDC: OIDCConfig{
			IssuerURL:    v.GetString("OIDC_ISSUER_URL"),
			ClientID:     v.GetString("OIDC_CLIENT_ID"),
			ClientSecret: v.GetString("OIDC_CLIENT_SECRET"),
			RedirectURL:  v.GetString("OIDC_REDIRECT_URL"),
		},
		Login: LoginConfig{
			RateRPS:   v.GetFloat64("LOGIN_RATE_RPS"),
			RateBurst: v.GetInt("LOGIN_RATE_BURST"),
		},
		SweepGrace: v.GetDuration("SWEEP_GRACE"),
		LogLevel:   strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.OIDC.RedirectURL == "" {
		cfg.OIDC.RedirectURL = cfg.Server.BaseURL + "/auth"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		add("DB_PATH is required")
	}
	if c.Upload.MaxBytes <= 0 {
		add("MAX_UPLOAD_BYTES must be positive")
	}

	switch c.Upload.Backend {
	case BackendFS:
		if c.Upload.Dir == "" {
			add("UPLOAD_DIR is required when UPLOAD_BACKEND=fs")
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" {
			add("MINIO_ENDPOINT is required when UPLOAD_BACKEND=minio")
		}
		if c.MinIO.Bucket == "" {
			add("MINIO_BUCKET is required when UPLOAD_BACKEND=minio")
		}
	default:
		add("UPLOAD_BACKEND must be %q or %q, got %q", BackendFS, BackendMinIO, c.Upload.Backend)
	}

	if len(c.Session.Secret) < 16 {
		add("SESSION_SECRET must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		add("SESSION_TTL must be positive")
	}
	switch c.Session.Store {
	case StoreSQLite:
	case StoreRedis:
		if c.Redis.Addr == "" {
			add("REDIS_ADDR is required when SESSION_STORE=redis")
		}
	default:
		add("SESSION_STORE must be %q or %q, got %q", StoreSQLite, StoreRedis, c.Session.Store)
	}

	if c.OIDC.IssuerURL == "" {
		add("OIDC_ISSUER_URL is required")
	}
	if c.OIDC.ClientID == "" {
		add("OIDC_CLIENT_ID is required")
	}
	if c.OIDC.ClientSecret == "" {
		add("OIDC_CLIENT_SECRET is required")
	}

	if c.Login.RateRPS <= 0 || c.Login.RateBurst <= 0 {
		add("LOGIN_RATE_RPS and LOGIN_RATE_BURST must be positive")
	}
	if c.SweepGrace < 0 {
		add("SWEEP_GRACE must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", s)
	}
	return level, nil
}

// MaskSecret keeps the first two characters of a secret for log lines.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 6)
}

// LogValue hides secrets when the config is logged with slog.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("port", c.Server.Port),
		slog.String("baseURL", c.Server.BaseURL),
		slog.String("dbPath", c.DB.Path),
		slog.String("uploadBackend", c.Upload.Backend),
		slog.String("uploadDir", c.Upload.Dir),
		slog.Int64("maxUploadBytes", c.Upload.MaxBytes),
		slog.String("minioEndpoint", c.MinIO.Endpoint),
		slog.String("minioSecretKey", MaskSecret(c.MinIO.SecretKey)),
		slog.String("sessionStore", c.Session.Store),
		slog.String("sessionSecret", MaskSecret(c.Session.Secret)),
		slog.Duration("sessionTTL", c.Session.TTL),
		slog.String("redisAddr", c.Redis.Addr),
		slog.String("oidcIssuer", c.OIDC.IssuerURL),
		slog.String("oidcClientID", c.OIDC.ClientID),
		slog.String("oidcClientSecret", MaskSecret(c.OIDC.ClientSecret)),
		slog.String("oidcRedirectURL", c.OIDC.RedirectURL),
		slog.Duration("sweepGrace", c.SweepGrace),
		slog.String("logLevel", c.LogLevel),
	)
}
