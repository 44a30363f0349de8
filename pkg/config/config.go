package config

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Cleanup  CleanupConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig holds the token lifetime policy and filter routing.
type SessionConfig struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RotationWindow time.Duration
	StoreTimeout   time.Duration
	TokenSecret    string
	Issuer         string
	LoginPath      string
	RefreshPath    string
}

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

// CleanupConfig drives the scheduled sweep of expired tokens and retired accounts.
type CleanupConfig struct {
	Enabled   bool
	Schedule  string
	Retention time.Duration
	LockTTL   time.Duration
	Workers   int
	Retries   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		RunMigrations: v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		AccessTTL:      parseDuration(v.GetString("SESSION_ACCESS_TTL"), 30*time.Minute),
		RefreshTTL:     parseDuration(v.GetString("SESSION_REFRESH_TTL"), 2*time.Hour),
		RotationWindow: parseDuration(v.GetString("SESSION_ROTATION_WINDOW"), 30*time.Minute),
		StoreTimeout:   parseDuration(v.GetString("SESSION_STORE_TIMEOUT"), 3*time.Second),
		TokenSecret:    v.GetString("SESSION_TOKEN_SECRET"),
		Issuer:         v.GetString("SESSION_ISSUER"),
		LoginPath:      v.GetString("SESSION_LOGIN_PATH"),
		RefreshPath:    v.GetString("SESSION_REFRESH_PATH"),
	}

	cfg.Cookie = CookieConfig{
		AccessName:  v.GetString("COOKIE_ACCESS_NAME"),
		RefreshName: v.GetString("COOKIE_REFRESH_NAME"),
		Path:        v.GetString("COOKIE_PATH"),
		Domain:      v.GetString("COOKIE_DOMAIN"),
		Secure:      v.GetBool("COOKIE_SECURE"),
		SameSite:    parseSameSite(v.GetString("COOKIE_SAMESITE")),
	}

	cfg.Cleanup = CleanupConfig{
		Enabled:   v.GetBool("CLEANUP_ENABLED"),
		Schedule:  v.GetString("CLEANUP_SCHEDULE"),
		Retention: parseDuration(v.GetString("CLEANUP_RETENTION"), 90*24*time.Hour),
		LockTTL:   parseDuration(v.GetString("CLEANUP_LOCK_TTL"), 10*time.Minute),
		Workers:   v.GetInt("CLEANUP_WORKERS"),
		Retries:   v.GetInt("CLEANUP_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docspace")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RUN_MIGRATIONS", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_ACCESS_TTL", "30m")
	v.SetDefault("SESSION_REFRESH_TTL", "2h")
	v.SetDefault("SESSION_ROTATION_WINDOW", "30m")
	v.SetDefault("SESSION_STORE_TIMEOUT", "3s")
	v.SetDefault("SESSION_TOKEN_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_ISSUER", "docspace")
	v.SetDefault("SESSION_LOGIN_PATH", "/auth/login")
	v.SetDefault("SESSION_REFRESH_PATH", "/auth/refresh")

	v.SetDefault("COOKIE_ACCESS_NAME", "access_token")
	v.SetDefault("COOKIE_REFRESH_NAME", "refresh_token")
	v.SetDefault("COOKIE_PATH", "/")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAMESITE", "lax")

	v.SetDefault("CLEANUP_ENABLED", true)
	v.SetDefault("CLEANUP_SCHEDULE", "0 3 * * *")
	v.SetDefault("CLEANUP_RETENTION", "2160h")
	v.SetDefault("CLEANUP_LOCK_TTL", "10m")
	v.SetDefault("CLEANUP_WORKERS", 1)
	v.SetDefault("CLEANUP_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// LoginPath returns the login filter path joined with the API prefix.
func (c *Config) LoginPath() string {
	return joinPath(c.APIPrefix, c.Session.LoginPath)
}

// RefreshPath returns the reissue filter path joined with the API prefix.
func (c *Config) RefreshPath() string {
	return joinPath(c.APIPrefix, c.Session.RefreshPath)
}

func joinPath(prefix, path string) string {
	prefix = strings.TrimRight(prefix, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + path
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
