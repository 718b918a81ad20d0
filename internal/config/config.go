package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Model      ModelConfig
	Google     GoogleConfig
	Cache      CacheConfig
	Slack      SlackConfig
	Orchestra  OrchestraConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds bearer-token validation settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RatePerMin   int
	RateBurst    int
}

// ModelConfig holds the inference backend settings.
type ModelConfig struct {
	APIKey   string //nolint:gosec // G117: inference API key config
	Model    string
	Endpoint string
}

// GoogleConfig holds provider API base URLs, overridable for testing and
// proxy deployments. Empty values use the public Google endpoints.
type GoogleConfig struct {
	MailBaseURL     string
	CalendarBaseURL string
}

// CacheConfig holds provider-cache freshness settings.
type CacheConfig struct {
	MailTTL       time.Duration
	CalendarTTL   time.Duration
	RefreshMargin time.Duration
	MailMax       int
	CalendarMax   int
	WindowBack    time.Duration
	WindowForward time.Duration
}

// SlackConfig holds the confirmation-ping channel settings.
type SlackConfig struct {
	BotToken  string
	ChannelID string
}

// OrchestraConfig bounds the agentic tool loop.
type OrchestraConfig struct {
	MaxToolSteps int
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("VOICEGATE_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("VOICEGATE_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("VOICEGATE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("VOICEGATE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("VOICEGATE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ratePerMin, err := getEnvInt("VOICEGATE_RATE_PER_MIN", 120)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("VOICEGATE_RATE_BURST", 30)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	mailTTL, err := getEnvDuration("VOICEGATE_CACHE_MAIL_TTL", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	calendarTTL, err := getEnvDuration("VOICEGATE_CACHE_CALENDAR_TTL", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshMargin, err := getEnvDuration("VOICEGATE_CACHE_REFRESH_MARGIN", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	mailMax, err := getEnvInt("VOICEGATE_CACHE_MAIL_MAX", 60)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	calendarMax, err := getEnvInt("VOICEGATE_CACHE_CALENDAR_MAX", 250)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	windowBack, err := getEnvDuration("VOICEGATE_CACHE_WINDOW_BACK", 14*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	windowForward, err := getEnvDuration("VOICEGATE_CACHE_WINDOW_FORWARD", 60*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxToolSteps, err := getEnvInt("VOICEGATE_MAX_TOOL_STEPS", 6)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("VOICEGATE_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("VOICEGATE_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("VOICEGATE_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("VOICEGATE_DB_USER", "voicegate"),
			Password: getEnv("VOICEGATE_DB_PASSWORD", ""),
			DBName:   getEnv("VOICEGATE_DB_NAME", "voicegate_dev"),
			SSLMode:  getEnv("VOICEGATE_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("VOICEGATE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VOICEGATE_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("VOICEGATE_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("VOICEGATE_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			RatePerMin:   ratePerMin,
			RateBurst:    rateBurst,
		},
		Model: ModelConfig{
			APIKey:   getEnv("VOICEGATE_MODEL_API_KEY", ""),
			Model:    getEnv("VOICEGATE_MODEL_NAME", "gpt-4o-mini"),
			Endpoint: getEnv("VOICEGATE_MODEL_ENDPOINT", ""),
		},
		Google: GoogleConfig{
			MailBaseURL:     getEnv("VOICEGATE_GMAIL_BASE_URL", ""),
			CalendarBaseURL: getEnv("VOICEGATE_CALENDAR_BASE_URL", ""),
		},
		Cache: CacheConfig{
			MailTTL:       mailTTL,
			CalendarTTL:   calendarTTL,
			RefreshMargin: refreshMargin,
			MailMax:       mailMax,
			CalendarMax:   calendarMax,
			WindowBack:    windowBack,
			WindowForward: windowForward,
		},
		Slack: SlackConfig{
			BotToken:  getEnv("VOICEGATE_SLACK_BOT_TOKEN", ""),
			ChannelID: getEnv("VOICEGATE_SLACK_CHANNEL_ID", ""),
		},
		Orchestra: OrchestraConfig{
			MaxToolSteps: maxToolSteps,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("VOICEGATE_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("VOICEGATE_JWT_SECRET must be at least 32 characters")
	}

	if c.Model.APIKey == "" {
		return errors.New("VOICEGATE_MODEL_API_KEY is required")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("VOICEGATE_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("VOICEGATE_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("VOICEGATE_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("VOICEGATE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("VOICEGATE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RatePerMin < 1 {
		return fmt.Errorf("VOICEGATE_RATE_PER_MIN must be >= 1, got %d", c.Server.RatePerMin)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("VOICEGATE_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Cache.MailTTL <= 0 {
		return fmt.Errorf("VOICEGATE_CACHE_MAIL_TTL must be positive, got %s", c.Cache.MailTTL)
	}
	if c.Cache.CalendarTTL <= 0 {
		return fmt.Errorf("VOICEGATE_CACHE_CALENDAR_TTL must be positive, got %s", c.Cache.CalendarTTL)
	}
	if c.Cache.RefreshMargin < 0 {
		return fmt.Errorf("VOICEGATE_CACHE_REFRESH_MARGIN must be >= 0, got %s", c.Cache.RefreshMargin)
	}
	if c.Cache.MailMax < 1 {
		return fmt.Errorf("VOICEGATE_CACHE_MAIL_MAX must be >= 1, got %d", c.Cache.MailMax)
	}
	if c.Cache.CalendarMax < 1 {
		return fmt.Errorf("VOICEGATE_CACHE_CALENDAR_MAX must be >= 1, got %d", c.Cache.CalendarMax)
	}
	if c.Orchestra.MaxToolSteps < 1 {
		return fmt.Errorf("VOICEGATE_MAX_TOOL_STEPS must be >= 1, got %d", c.Orchestra.MaxToolSteps)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
