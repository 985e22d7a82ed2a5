package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"legaldoc-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string   `toml:"port"`
	Env             string   `toml:"env"`
	CORSAllowOrigin []string `toml:"cors_allow_origins"`
	DatabaseURL     string   `toml:"database_url"`

	ObjectStoreType    string `toml:"object_store"`
	LocalStoreDir      string `toml:"local_store_dir"`
	AWSRegion          string `toml:"aws_region"`
	S3Bucket           string `toml:"s3_bucket"`
	S3Prefix           string `toml:"s3_prefix"`
	SSEKMSKeyID        string `toml:"sse_kms_key_id"`
	AWSAccessKeyID     string `toml:"-"`
	AWSSecretAccessKey string `toml:"-"`

	LLMProvider      string `toml:"llm_provider"`
	LLMModel         string `toml:"llm_model"`
	OpenAIAPIKey     string `toml:"-"`
	GeminiAPIKey     string `toml:"-"`
	AITimeoutSeconds int    `toml:"ai_timeout_seconds"`

	MaxFileSizeMB         int `toml:"max_file_size_mb"`
	MaxDocumentPages      int `toml:"max_document_pages"`
	DocumentRetentionDays int `toml:"document_retention_days"`

	JWTSecret                string `toml:"-"`
	AccessTokenExpireMinutes int    `toml:"access_token_expire_minutes"`
	RateLimitPerMinute       int    `toml:"rate_limit_per_minute"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"-"`
	RedisDB       int    `toml:"redis_db"`

	GoogleClientID     string `toml:"google_client_id"`
	GoogleClientSecret string `toml:"-"`
	GoogleRedirectURL  string `toml:"google_redirect_url"`
	UIRedirectURL      string `toml:"ui_redirect_url"`

	SweepInterval string `toml:"sweep_interval"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                     "8080",
		Env:                      "dev",
		CORSAllowOrigin:          []string{"http://localhost:5173"},
		ObjectStoreType:          "local",
		LocalStoreDir:            "./data",
		LLMProvider:              "gemini",
		LLMModel:                 "gemini-1.5-pro",
		AITimeoutSeconds:         120,
		MaxFileSizeMB:            10,
		MaxDocumentPages:         50,
		DocumentRetentionDays:    30,
		AccessTokenExpireMinutes: 30,
		RateLimitPerMinute:       60,
		SweepInterval:            "1h",
	}
}

// Load reads configuration from .env files, an optional TOML file, then environment variables.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	path := getEnv("CONFIG_FILE", "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			telemetry.Error("config.decode_failed", map[string]any{"path": path, "error": err})
		}
	}

	applyEnv(&cfg)
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.LLMProvider = normalizeProvider(cfg.LLMProvider)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": cfg.Env})
	}
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.ObjectStoreType = getEnv("OBJECT_STORE", cfg.ObjectStoreType)
	cfg.LocalStoreDir = getEnv("LOCAL_STORE_DIR", cfg.LocalStoreDir)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.SSEKMSKeyID = getEnv("SSE_KMS_KEY_ID", cfg.SSEKMSKeyID)
	cfg.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", cfg.AWSAccessKeyID)
	cfg.AWSSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.AWSSecretAccessKey)

	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.AITimeoutSeconds = getEnvInt("AI_TIMEOUT_SECONDS", cfg.AITimeoutSeconds)

	cfg.MaxFileSizeMB = getEnvInt("MAX_FILE_SIZE_MB", cfg.MaxFileSizeMB)
	cfg.MaxDocumentPages = getEnvInt("MAX_DOCUMENT_PAGES", cfg.MaxDocumentPages)
	cfg.DocumentRetentionDays = getEnvInt("DOCUMENT_RETENTION_DAYS", cfg.DocumentRetentionDays)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AccessTokenExpireMinutes = getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", cfg.AccessTokenExpireMinutes)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	cfg.GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", cfg.GoogleRedirectURL)
	cfg.UIRedirectURL = getEnv("UI_REDIRECT_URL", cfg.UIRedirectURL)

	cfg.SweepInterval = getEnv("SWEEP_INTERVAL", cfg.SweepInterval)
}

// AITimeout returns the model call deadline.
func (c Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// MaxFileSizeBytes returns the upload size limit.
func (c Config) MaxFileSizeBytes() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.MaxFileSizeMB) << 20
}

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (c Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenExpireMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// SweepEvery returns the retention sweep interval.
func (c Config) SweepEvery() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.SweepInterval))
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// IsDevLike reports whether in-memory fallbacks are allowed.
func (c Config) IsDevLike() bool {
	switch normalizeEnv(c.Env) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "gemini", "google", "vertex":
		return "gemini"
	default:
		return "none"
	}
}
