package server

import (
	"context"
	"fmt"
	"log/slog"

	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/internal/config"
	searchService "anoa.com/forumboard/internal/modules/search/service"
	"anoa.com/forumboard/pkg/storage"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
)

// AI holds the model clients picked by configuration. Either field may be
// nil when its provider has no credentials.
type AI struct {
	Completer  providers.Completer
	Classifier providers.Classifier
	closers    []func() error
}

func (a *AI) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// NewAI builds the completion and moderation clients. A missing API key
// disables that capability instead of failing startup: moderation then
// approves everything and ForumBot stays quiet.
func NewAI(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AI, error) {
	ai := &AI{}

	var groq *providers.OpenAICompatProvider
	if cfg.GroqAPIKey != "" {
		groq = providers.NewOpenAICompatProvider(cfg.GroqBaseURL, cfg.GroqAPIKey, completionModel(cfg, config.ProviderGroq), moderationModel(cfg, config.ProviderGroq))
	}

	var gemini *providers.GeminiProvider
	needGemini := cfg.CompletionProvider == config.ProviderGemini || cfg.ModerationProvider == config.ProviderGemini
	if needGemini && cfg.GeminiAPIKey != "" {
		model := completionModel(cfg, config.ProviderGemini)
		if model == "" {
			model = moderationModel(cfg, config.ProviderGemini)
		}
		p, err := providers.NewGeminiProvider(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		gemini = p
		ai.closers = append(ai.closers, p.Close)
	}

	switch cfg.CompletionProvider {
	case config.ProviderGemini:
		if gemini != nil {
			ai.Completer = gemini
		}
	default:
		if groq != nil {
			ai.Completer = groq
		}
	}
	switch cfg.ModerationProvider {
	case config.ProviderGemini:
		if gemini != nil {
			ai.Classifier = gemini
		}
	default:
		if groq != nil {
			ai.Classifier = groq
		}
	}

	if ai.Completer == nil {
		logger.Warn("completion provider has no credentials, auto replies disabled", "provider", cfg.CompletionProvider)
	}
	if ai.Classifier == nil {
		logger.Warn("moderation provider has no credentials, content is not screened", "provider", cfg.ModerationProvider)
	}
	return ai, nil
}

// The model settings only apply to the provider they were configured for.
func completionModel(cfg *config.Config, provider string) string {
	if cfg.CompletionProvider == provider {
		return cfg.CompletionModel
	}
	return ""
}

func moderationModel(cfg *config.Config, provider string) string {
	if cfg.ModerationProvider == provider {
		return cfg.ModerationModel
	}
	return ""
}

// NewFileStorage returns nil without an error when the selected driver has
// no credentials; uploads are then not routed.
func NewFileStorage(cfg *config.Config, logger *slog.Logger) (storage.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageMinio:
		if cfg.MinioAccessKey == "" {
			logger.Warn("minio credentials missing, uploads disabled")
			return nil, nil
		}
		m, err := storage.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, "attachments", cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		if cfg.CloudinaryCloudName == "" {
			logger.Warn("cloudinary credentials missing, uploads disabled")
			return nil, nil
		}
		return storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryUploadFolder)
	}
}

// NewRedis connects to REDIS_URL. An empty url returns nil, and so does an
// unreachable server, so the board keeps running without rate limits and
// live events.
func NewRedis(ctx context.Context, url string, logger *slog.Logger) (*redis.Client, error) {
	if url == "" {
		logger.Warn("REDIS_URL not set, rate limiting and live events disabled")
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting and live events disabled", "error", err)
		_ = client.Close()
		return nil, nil
	}
	return client, nil
}

// NewSearchClient returns nil when MEILISEARCH_HOST is empty.
func NewSearchClient(cfg *config.Config, logger *slog.Logger) meilisearch.ServiceManager {
	client := searchService.NewClient(cfg.MeiliSearchHost, cfg.MeiliMasterKey)
	if client == nil {
		logger.Warn("MEILISEARCH_HOST not set, search uses the database")
	}
	return client
}
