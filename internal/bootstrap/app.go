package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"janus-rag/internal/ai"
	"janus-rag/internal/app"
	"janus-rag/internal/cache"
	"janus-rag/internal/config"
	"janus-rag/internal/logging"
	"janus-rag/internal/migrations"
	"janus-rag/internal/platform/objectstore"
	postgresClient "janus-rag/internal/platform/postgres"
	redisClient "janus-rag/internal/platform/redis"
	"janus-rag/internal/repository"
	"janus-rag/internal/telemetry"
)

type App struct {
	Config  *config.Config
	Logger  *logging.SlogLogger
	DB      *gorm.DB
	Redis   *redis.Client
	Storage *objectstore.Storage

	AuthService     *app.AuthService
	DocumentService *app.DocumentService
	ChatService     *app.ChatService

	StartedAt time.Time

	closers []func(ctx context.Context) error
}

// New connects every dependency and builds the services. Redis is optional;
// Postgres, object storage and the model provider are not.
func New(ctx context.Context, cfg *config.Config, log *logging.SlogLogger) (*App, error) {
	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Options{
		ServiceName:  cfg.App.Name,
		Environment:  cfg.App.Env,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdownTracer)

	if cfg.Database.AutoMigrate {
		if err := Migrate(ctx, cfg); err != nil {
			return err
		}
		a.Logger.Info(ctx, "database migrations applied")
	}

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	chunkRepo := repository.NewChunkRepository(db, cfg.Embedding.Dimensions, cfg.Retrieval.EFSearch)
	if err := chunkRepo.CheckDimensions(ctx); err != nil {
		return err
	}

	var historyCache app.HistoryCache
	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		historyCache = cache.NewHistoryCache(client, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	}

	storage, err := objectstore.New(ctx, objectstore.Options{
		Endpoint:     cfg.Storage.Endpoint,
		Region:       cfg.Storage.Region,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		Bucket:       cfg.Storage.Bucket,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return err
	}
	a.Storage = storage
	if cfg.Storage.CreateBucket {
		created, err := storage.EnsureBucket(ctx)
		if err != nil {
			return err
		}
		if created {
			a.Logger.Info(ctx, "bucket created", "bucket", cfg.Storage.Bucket)
		}
	}

	provider, completer, err := a.newModelProvider(ctx)
	if err != nil {
		return err
	}
	embedder := ai.NewEmbedder(provider, ai.EmbedderConfig{
		Dimensions:        cfg.Embedding.Dimensions,
		BatchSize:         cfg.Embedding.BatchSize,
		Concurrency:       cfg.Embedding.Concurrency,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	breaker := ai.NewBreakerCompleter(completer, ai.BreakerConfig{
		Name:             cfg.LLM.Provider,
		FailureThreshold: uint32(cfg.Resilience.BreakerFailures),
		OpenTimeout:      time.Duration(cfg.Resilience.BreakerTimeoutSeconds) * time.Second,
		OnStateChange: func(name, from, to string) {
			a.Logger.Warn(context.Background(), "model circuit breaker changed state", "breaker", name, "from", from, "to", to)
		},
	})

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	a.AuthService = app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	a.DocumentService = app.NewDocumentService(documentRepo, chunkRepo, storage, embedder, app.DocumentServiceConfig{
		DocsFolder:     cfg.Storage.DocsFolder,
		BoeFolder:      cfg.Storage.BoeFolder,
		ChunkSize:      cfg.Chunking.Size,
		ChunkOverlap:   cfg.Chunking.Overlap,
		PresignTTL:     cfg.PresignTTL(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		IndexBoe:       cfg.Ingest.IndexBoe,
	}, a.Logger)
	a.ChatService = app.NewChatService(messageRepo, chunkRepo, embedder, breaker, historyCache, app.ChatServiceConfig{
		TopK:       cfg.Retrieval.TopK,
		Scope:      cfg.Retrieval.Scope,
		MaxHistory: cfg.LLM.MaxContextMessage,
		Retry: ai.RetryPolicy{
			MaxRetries: uint64(max(cfg.Resilience.MaxRetries, 0)),
			BaseDelay:  time.Duration(cfg.Resilience.BaseDelayMillis) * time.Millisecond,
		},
	}, a.Logger)

	a.Logger.Info(ctx, "application initialised",
		"provider", cfg.LLM.Provider,
		"embedding_dimensions", embedder.Dimensions(),
		"retrieval_scope", cfg.Retrieval.Scope,
		"redis", cfg.Redis.Enabled,
	)
	return nil
}

type modelProvider interface {
	ai.EmbeddingProvider
	ai.Completer
}

func (a *App) newModelProvider(ctx context.Context) (ai.EmbeddingProvider, ai.Completer, error) {
	cfg := a.Config.LLM
	var provider modelProvider
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := ai.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.MaxToolRounds)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		provider = client
	case config.ProviderOpenAI:
		provider = ai.NewOpenAICompatibleClient(
			ai.ChatConfig{
				BaseURL:       cfg.BaseURL,
				APIKey:        cfg.APIKey,
				Model:         cfg.Model,
				MaxToolRounds: cfg.MaxToolRounds,
			},
			ai.EmbeddingConfig{
				BaseURL:    cfg.BaseURL,
				APIKey:     cfg.APIKey,
				Model:      cfg.EmbeddingModel,
				Dimensions: a.Config.Embedding.Dimensions,
			},
			time.Duration(cfg.TimeoutSeconds)*time.Second,
		)
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return provider, provider, nil
}

// HealthChecks lists the dependencies /healthz reports on.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"storage": a.Storage.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenDatabase returns the gorm handle used by repositories.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	return postgresClient.New(ctx, cfg.PostgresDSN(), postgresClient.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
}

// Migrate applies pending migrations over a short-lived pgx connection.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := migrations.Open(cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer closeQuietly(db)
	return migrations.Up(ctx, db)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
