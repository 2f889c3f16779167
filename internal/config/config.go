package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"anoa.com/forumboard/pkg/database"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"

	StorageCloudinary = "cloudinary"
	StorageMinio      = "minio"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	LogLevel       string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	// ForumBotID is uuid.Nil when the bot is not configured.
	ForumBotID             uuid.UUID
	AutoReplyThreadDelay   time.Duration
	AutoReplyCommentDelay  time.Duration
	AITaskTimeout          time.Duration
	GroqAPIKey             string
	GroqBaseURL            string
	GeminiAPIKey           string
	ModerationProvider     string
	ModerationModel        string
	CompletionProvider     string
	CompletionModel        string
	SearchReindexSchedule  string
	MeiliSearchHost        string
	MeiliMasterKey         string
	StorageDriver          string
	MaxUploadBytes         int64
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioBucket            string
	MinioUseSSL            bool
	MinioPublicURL         string

	RateLimitGlobal  time.Duration
	RateLimitThread  time.Duration
	RateLimitComment time.Duration
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GroqAPIKey:            os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:           getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		ModerationProvider:    strings.ToLower(getEnv("MODERATION_PROVIDER", ProviderGroq)),
		ModerationModel:       os.Getenv("MODERATION_MODEL"),
		CompletionProvider:    strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderGroq)),
		CompletionModel:       os.Getenv("COMPLETION_MODEL"),
		SearchReindexSchedule: getEnv("SEARCH_REINDEX_SCHEDULE", "0 3 * * *"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		StorageDriver:          strings.ToLower(getEnv("STORAGE_DRIVER", StorageCloudinary)),
		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "forumboard/attachments"),
		MinioEndpoint:          getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:            getEnv("MINIO_BUCKET", "attachments"),
		MinioPublicURL:         os.Getenv("MINIO_PUBLIC_URL"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.PostgresDSN(
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			os.Getenv("DB_PASS"),
			getEnv("DB_NAME", "forumboard"),
			getEnv("DB_PORT", "5432"),
		)
	}

	if raw := strings.TrimSpace(os.Getenv("FORUMBOT_ID")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid FORUMBOT_ID: %w", err)
		}
		cfg.ForumBotID = id
	}

	var err error
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"JWT_TTL", "24h", &cfg.JWTTTL},
		{"AUTO_REPLY_THREAD_DELAY", "3s", &cfg.AutoReplyThreadDelay},
		{"AUTO_REPLY_COMMENT_DELAY", "2s", &cfg.AutoReplyCommentDelay},
		{"AI_TASK_TIMEOUT", "30s", &cfg.AITaskTimeout},
		{"RATE_LIMIT_GLOBAL", "5s", &cfg.RateLimitGlobal},
		{"RATE_LIMIT_THREAD", "5m", &cfg.RateLimitThread},
		{"RATE_LIMIT_COMMENT", "10s", &cfg.RateLimitComment},
	}
	for _, d := range durations {
		*d.dst, err = parseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	cfg.MaxUploadBytes, err = strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}
	cfg.MinioUseSSL, err = strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}

	switch cfg.ModerationProvider {
	case ProviderGroq, ProviderGemini:
	default:
		return nil, fmt.Errorf("invalid MODERATION_PROVIDER %q", cfg.ModerationProvider)
	}
	switch cfg.CompletionProvider {
	case ProviderGroq, ProviderGemini:
	default:
		return nil, fmt.Errorf("invalid COMPLETION_PROVIDER %q", cfg.CompletionProvider)
	}
	switch cfg.StorageDriver {
	case StorageCloudinary, StorageMinio:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
