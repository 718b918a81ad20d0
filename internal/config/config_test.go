package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "VOICEGATE_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "VOICEGATE_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "VOICEGATE_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
		{name: "preserves whitespace", key: "VOICEGATE_TEST_GETENV_WS", setVal: strPtr("  spaced  "), fallback: "x", want: "  spaced  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VOICEGATE_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "VOICEGATE_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "VOICEGATE_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "parses zero", key: "VOICEGATE_TEST_INT_ZERO", setVal: strPtr("0"), fallback: 99, want: 0},
		{name: "returns fallback for empty string", key: "VOICEGATE_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "VOICEGATE_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "VOICEGATE_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
		{name: "errors on hex", key: "VOICEGATE_TEST_INT_HEX", setVal: strPtr("0xFF"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback bool
		want     bool
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VOICEGATE_TEST_BOOL_UNSET", setVal: nil, fallback: false, want: false},
		{name: "fallback true when unset", key: "VOICEGATE_TEST_BOOL_UNSETTRUE", setVal: nil, fallback: true, want: true},
		{name: "parses true", key: "VOICEGATE_TEST_BOOL_TRUE", setVal: strPtr("true"), fallback: false, want: true},
		{name: "parses false", key: "VOICEGATE_TEST_BOOL_FALSE", setVal: strPtr("false"), fallback: true, want: false},
		{name: "parses 1", key: "VOICEGATE_TEST_BOOL_ONE", setVal: strPtr("1"), fallback: false, want: true},
		{name: "parses 0", key: "VOICEGATE_TEST_BOOL_ZERO", setVal: strPtr("0"), fallback: true, want: false},
		{name: "parses TRUE uppercase", key: "VOICEGATE_TEST_BOOL_UPPER", setVal: strPtr("TRUE"), fallback: false, want: true},
		{name: "parses t", key: "VOICEGATE_TEST_BOOL_T", setVal: strPtr("t"), fallback: false, want: true},
		{name: "errors on invalid", key: "VOICEGATE_TEST_BOOL_INV", setVal: strPtr("yes"), fallback: false, wantErr: true},
		{name: "errors on numeric non-bool", key: "VOICEGATE_TEST_BOOL_NUM", setVal: strPtr("2"), fallback: false, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvBool(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VOICEGATE_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "VOICEGATE_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses minutes", key: "VOICEGATE_TEST_DUR_MIN", setVal: strPtr("15m"), fallback: 0, want: 15 * time.Minute},
		{name: "parses hours", key: "VOICEGATE_TEST_DUR_HR", setVal: strPtr("2h"), fallback: 0, want: 2 * time.Hour},
		{name: "parses composite", key: "VOICEGATE_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "parses zero", key: "VOICEGATE_TEST_DUR_ZERO", setVal: strPtr("0s"), fallback: 5 * time.Second, want: 0},
		{name: "errors on invalid", key: "VOICEGATE_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "VOICEGATE_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_MissingJWTSecret(t *testing.T) {
	// All defaults apply; JWT secret is empty => must fail.
	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VOICEGATE_JWT_SECRET")
}

func TestLoad_MissingModelAPIKey(t *testing.T) {
	t.Setenv("VOICEGATE_JWT_SECRET", "test-secret-that-is-at-least-32ch")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VOICEGATE_MODEL_API_KEY")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		// DB_PORT parse errors
		{name: "DB_PORT not a number", envKey: "VOICEGATE_DB_PORT", envVal: "abc", errMsg: "VOICEGATE_DB_PORT"},
		{name: "DB_PORT float", envKey: "VOICEGATE_DB_PORT", envVal: "3.14", errMsg: "VOICEGATE_DB_PORT"},

		// DB_PORT validation errors (parses fine, fails bounds)
		{name: "DB_PORT zero", envKey: "VOICEGATE_DB_PORT", envVal: "0", errMsg: "VOICEGATE_DB_PORT"},
		{name: "DB_PORT negative", envKey: "VOICEGATE_DB_PORT", envVal: "-1", errMsg: "VOICEGATE_DB_PORT"},
		{name: "DB_PORT too high", envKey: "VOICEGATE_DB_PORT", envVal: "65536", errMsg: "VOICEGATE_DB_PORT"},

		// DB_MAX_CONNS
		{name: "DB_MAX_CONNS zero", envKey: "VOICEGATE_DB_MAX_CONNS", envVal: "0", errMsg: "VOICEGATE_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS negative", envKey: "VOICEGATE_DB_MAX_CONNS", envVal: "-5", errMsg: "VOICEGATE_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS not a number", envKey: "VOICEGATE_DB_MAX_CONNS", envVal: "many", errMsg: "VOICEGATE_DB_MAX_CONNS"},

		// Server timeouts
		{name: "SERVER_READ_TIMEOUT invalid", envKey: "VOICEGATE_SERVER_READ_TIMEOUT", envVal: "notduration", errMsg: "VOICEGATE_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT invalid", envKey: "VOICEGATE_SERVER_WRITE_TIMEOUT", envVal: "notduration", errMsg: "VOICEGATE_SERVER_WRITE_TIMEOUT"},
		{name: "SERVER_READ_TIMEOUT zero", envKey: "VOICEGATE_SERVER_READ_TIMEOUT", envVal: "0s", errMsg: "VOICEGATE_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envKey: "VOICEGATE_SERVER_WRITE_TIMEOUT", envVal: "0s", errMsg: "VOICEGATE_SERVER_WRITE_TIMEOUT"},

		// Rate limits
		{name: "RATE_PER_MIN zero", envKey: "VOICEGATE_RATE_PER_MIN", envVal: "0", errMsg: "VOICEGATE_RATE_PER_MIN"},
		{name: "RATE_BURST zero", envKey: "VOICEGATE_RATE_BURST", envVal: "0", errMsg: "VOICEGATE_RATE_BURST"},

		// Cache settings
		{name: "CACHE_MAIL_TTL zero", envKey: "VOICEGATE_CACHE_MAIL_TTL", envVal: "0s", errMsg: "VOICEGATE_CACHE_MAIL_TTL"},
		{name: "CACHE_CALENDAR_TTL zero", envKey: "VOICEGATE_CACHE_CALENDAR_TTL", envVal: "0s", errMsg: "VOICEGATE_CACHE_CALENDAR_TTL"},
		{name: "CACHE_MAIL_MAX zero", envKey: "VOICEGATE_CACHE_MAIL_MAX", envVal: "0", errMsg: "VOICEGATE_CACHE_MAIL_MAX"},
		{name: "CACHE_CALENDAR_MAX zero", envKey: "VOICEGATE_CACHE_CALENDAR_MAX", envVal: "0", errMsg: "VOICEGATE_CACHE_CALENDAR_MAX"},
		{name: "CACHE_MAIL_TTL invalid", envKey: "VOICEGATE_CACHE_MAIL_TTL", envVal: "badval", errMsg: "VOICEGATE_CACHE_MAIL_TTL"},

		// Tool loop bound
		{name: "MAX_TOOL_STEPS zero", envKey: "VOICEGATE_MAX_TOOL_STEPS", envVal: "0", errMsg: "VOICEGATE_MAX_TOOL_STEPS"},
		{name: "MAX_TOOL_STEPS not a number", envKey: "VOICEGATE_MAX_TOOL_STEPS", envVal: "six", errMsg: "VOICEGATE_MAX_TOOL_STEPS"},

		// Redis DB
		{name: "REDIS_DB not a number", envKey: "VOICEGATE_REDIS_DB", envVal: "abc", errMsg: "VOICEGATE_REDIS_DB"},

		// Self-hosted
		{name: "SELF_HOSTED not a bool", envKey: "VOICEGATE_SELF_HOSTED", envVal: "yes", errMsg: "VOICEGATE_SELF_HOSTED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Always set required secrets so failures are from the var under test.
			t.Setenv("VOICEGATE_JWT_SECRET", "test-secret-for-error-cases-32ch!")
			t.Setenv("VOICEGATE_MODEL_API_KEY", "sk-test")
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() edge cases -- boundary values
// ---------------------------------------------------------------------------

func TestLoad_BoundaryValues(t *testing.T) {
	tests := []struct {
		name     string
		envs     map[string]string
		assertFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "port min boundary 1",
			envs: map[string]string{"VOICEGATE_DB_PORT": "1"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 1, cfg.Database.Port)
			},
		},
		{
			name: "port max boundary 65535",
			envs: map[string]string{"VOICEGATE_DB_PORT": "65535"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 65535, cfg.Database.Port)
			},
		},
		{
			name: "MaxConns min boundary 1",
			envs: map[string]string{"VOICEGATE_DB_MAX_CONNS": "1"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 1, cfg.Database.MaxConns)
			},
		},
		{
			name: "refresh margin zero is valid",
			envs: map[string]string{"VOICEGATE_CACHE_REFRESH_MARGIN": "0s"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, time.Duration(0), cfg.Cache.RefreshMargin)
			},
		},
		{
			name: "MAX_TOOL_STEPS min boundary 1",
			envs: map[string]string{"VOICEGATE_MAX_TOOL_STEPS": "1"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 1, cfg.Orchestra.MaxToolSteps)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VOICEGATE_JWT_SECRET", "test-secret-that-is-at-least-32ch")
			t.Setenv("VOICEGATE_MODEL_API_KEY", "sk-test")
			for k, v := range tc.envs {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tc.assertFn(t, cfg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// Only the required secrets are set; everything else uses defaults.
	t.Setenv("VOICEGATE_JWT_SECRET", "my-dev-secret-at-least-32-chars!!")
	t.Setenv("VOICEGATE_MODEL_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "voicegate", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Equal(t, "voicegate_dev", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	// Redis defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	// Server defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120, cfg.Server.RatePerMin)
	assert.Equal(t, 30, cfg.Server.RateBurst)

	// Model defaults.
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Empty(t, cfg.Model.Endpoint)

	// Provider defaults: empty means public Google endpoints.
	assert.Empty(t, cfg.Google.MailBaseURL)
	assert.Empty(t, cfg.Google.CalendarBaseURL)

	// Cache defaults.
	assert.Equal(t, 120*time.Second, cfg.Cache.MailTTL)
	assert.Equal(t, 120*time.Second, cfg.Cache.CalendarTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.RefreshMargin)
	assert.Equal(t, 60, cfg.Cache.MailMax)
	assert.Equal(t, 250, cfg.Cache.CalendarMax)
	assert.Equal(t, 14*24*time.Hour, cfg.Cache.WindowBack)
	assert.Equal(t, 60*24*time.Hour, cfg.Cache.WindowForward)

	// Slack defaults.
	assert.Empty(t, cfg.Slack.BotToken)
	assert.Empty(t, cfg.Slack.ChannelID)

	// Tool loop default.
	assert.Equal(t, 6, cfg.Orchestra.MaxToolSteps)

	// Self-hosted default.
	assert.False(t, cfg.SelfHosted)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		// Database
		"VOICEGATE_DB_HOST":      "db.prod.internal",
		"VOICEGATE_DB_PORT":      "5433",
		"VOICEGATE_DB_USER":      "prod_user",
		"VOICEGATE_DB_PASSWORD":  "s3cret!",
		"VOICEGATE_DB_NAME":      "voicegate_prod",
		"VOICEGATE_DB_SSLMODE":   "require",
		"VOICEGATE_DB_MAX_CONNS": "50",
		// Redis
		"VOICEGATE_REDIS_ADDR":     "redis.prod:6380",
		"VOICEGATE_REDIS_PASSWORD": "redis-pass",
		"VOICEGATE_REDIS_DB":       "3",
		// JWT
		"VOICEGATE_JWT_SECRET": "prod-jwt-secret-256-bits-long!!!",
		// Server
		"VOICEGATE_SERVER_ADDR":          ":9090",
		"VOICEGATE_SERVER_READ_TIMEOUT":  "5s",
		"VOICEGATE_SERVER_WRITE_TIMEOUT": "15s",
		"VOICEGATE_RATE_PER_MIN":         "240",
		"VOICEGATE_RATE_BURST":           "60",
		"VOICEGATE_CORS_ORIGINS":         "https://app.example.com,https://admin.example.com",
		// Model
		"VOICEGATE_MODEL_API_KEY":  "sk-prod",
		"VOICEGATE_MODEL_NAME":     "gpt-4o",
		"VOICEGATE_MODEL_ENDPOINT": "https://inference.internal/v1/chat/completions",
		// Google
		"VOICEGATE_GMAIL_BASE_URL":    "https://gmail-proxy.internal",
		"VOICEGATE_CALENDAR_BASE_URL": "https://calendar-proxy.internal",
		// Cache
		"VOICEGATE_CACHE_MAIL_TTL":       "90s",
		"VOICEGATE_CACHE_CALENDAR_TTL":   "3m",
		"VOICEGATE_CACHE_REFRESH_MARGIN": "20s",
		"VOICEGATE_CACHE_MAIL_MAX":       "40",
		"VOICEGATE_CACHE_CALENDAR_MAX":   "100",
		"VOICEGATE_CACHE_WINDOW_BACK":    "168h",
		"VOICEGATE_CACHE_WINDOW_FORWARD": "720h",
		// Slack
		"VOICEGATE_SLACK_BOT_TOKEN":  "xoxb-test",
		"VOICEGATE_SLACK_CHANNEL_ID": "C012AB3CD",
		// Tool loop
		"VOICEGATE_MAX_TOOL_STEPS": "8",
		// Self-hosted
		"VOICEGATE_SELF_HOSTED": "true",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database
	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "prod_user", cfg.Database.User)
	assert.Equal(t, "s3cret!", cfg.Database.Password)
	assert.Equal(t, "voicegate_prod", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxConns)

	// Redis
	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)

	// Server
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 240, cfg.Server.RatePerMin)
	assert.Equal(t, 60, cfg.Server.RateBurst)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)

	// Model
	assert.Equal(t, "sk-prod", cfg.Model.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Model.Model)
	assert.Equal(t, "https://inference.internal/v1/chat/completions", cfg.Model.Endpoint)

	// Google
	assert.Equal(t, "https://gmail-proxy.internal", cfg.Google.MailBaseURL)
	assert.Equal(t, "https://calendar-proxy.internal", cfg.Google.CalendarBaseURL)

	// Cache
	assert.Equal(t, 90*time.Second, cfg.Cache.MailTTL)
	assert.Equal(t, 3*time.Minute, cfg.Cache.CalendarTTL)
	assert.Equal(t, 20*time.Second, cfg.Cache.RefreshMargin)
	assert.Equal(t, 40, cfg.Cache.MailMax)
	assert.Equal(t, 100, cfg.Cache.CalendarMax)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.WindowBack)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.WindowForward)

	// Slack
	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "C012AB3CD", cfg.Slack.ChannelID)

	// Tool loop
	assert.Equal(t, 8, cfg.Orchestra.MaxToolSteps)

	// Self-hosted
	assert.True(t, cfg.SelfHosted)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "voicegate",
		Password: "pw",
		DBName:   "voicegate_dev",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=voicegate password=pw dbname=voicegate_dev sslmode=disable",
		db.DSN(),
	)
}

func strPtr(s string) *string { return &s }
