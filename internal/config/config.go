package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	ScopeOwner   = "owner"
	ScopeVisible = "visible"
	ScopeCorpus  = "corpus"

	maxEmbeddingBatch = 100
)

type Config struct {
	App        AppConfig        `toml:"app"`
	Log        LogConfig        `toml:"log"`
	Auth       AuthConfig       `toml:"auth"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Storage    StorageConfig    `toml:"storage"`
	LLM        LLMConfig        `toml:"llm"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Ingest     IngestConfig     `toml:"ingest"`
	Resilience ResilienceConfig `toml:"resilience"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

type AppConfig struct {
	Name        string   `toml:"name"`
	Env         string   `toml:"env"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	GinMode     string   `toml:"gin_mode"`
	CORSOrigins []string `toml:"cors_origins"`
	MaxUploadMB int      `toml:"max_upload_mb"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type DatabaseConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DB           string `toml:"db"`
	SSLMode      string `toml:"sslmode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	AutoMigrate  bool   `toml:"auto_migrate"`
}

type RedisConfig struct {
	Enabled           bool   `toml:"enabled"`
	Addr              string `toml:"addr"`
	Password          string `toml:"password"`
	DB                int    `toml:"db"`
	HistoryTTLSeconds int    `toml:"history_ttl_seconds"`
}

type StorageConfig struct {
	Endpoint          string `toml:"endpoint"`
	Region            string `toml:"region"`
	AccessKey         string `toml:"access_key"`
	SecretKey         string `toml:"secret_key"`
	Bucket            string `toml:"bucket"`
	DocsFolder        string `toml:"docs_folder"`
	BoeFolder         string `toml:"boe_folder"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
	UsePathStyle      bool   `toml:"use_path_style"`
	CreateBucket      bool   `toml:"create_bucket"`
}

type LLMConfig struct {
	Provider          string `toml:"provider"`
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	EmbeddingModel    string `toml:"embedding_model"`
	MaxContextMessage int    `toml:"max_context_message"`
	MaxToolRounds     int    `toml:"max_tool_rounds"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	Dimensions        int     `toml:"dimensions"`
	BatchSize         int     `toml:"batch_size"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

type RetrievalConfig struct {
	TopK     int    `toml:"top_k"`
	Scope    string `toml:"scope"`
	EFSearch int    `toml:"ef_search"`
}

type IngestConfig struct {
	IndexBoe bool `toml:"index_boe"`
}

type ResilienceConfig struct {
	MaxRetries            int `toml:"max_retries"`
	BaseDelayMillis       int `toml:"base_delay_ms"`
	BreakerFailures       int `toml:"breaker_failures"`
	BreakerTimeoutSeconds int `toml:"breaker_timeout_seconds"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	SampleRatio  float64 `toml:"sample_ratio"`
}

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_FILE, an optional .env file and finally the process environment.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.Overlap < 0 || c.Chunking.Size <= c.Chunking.Overlap {
		errs = append(errs, fmt.Errorf("chunking: size (%d) must exceed overlap (%d) and overlap must be >= 0", c.Chunking.Size, c.Chunking.Overlap))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, errors.New("embedding: dimensions must be positive"))
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > maxEmbeddingBatch {
		errs = append(errs, fmt.Errorf("embedding: batch_size must be within 1..%d", maxEmbeddingBatch))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval: top_k must be positive"))
	}
	switch c.Retrieval.Scope {
	case ScopeOwner, ScopeVisible, ScopeCorpus:
	default:
		errs = append(errs, fmt.Errorf("retrieval: unknown scope %q", c.Retrieval.Scope))
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm: unknown provider %q", c.LLM.Provider))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth: jwt_secret is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DB,
		c.Database.SSLMode,
	)
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignTTLSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.App.MaxUploadMB) << 20
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "janus-rag",
			Env:         "dev",
			Host:        "0.0.0.0",
			Port:        8000,
			GinMode:     "debug",
			CORSOrigins: []string{"http://localhost:5173"},
			MaxUploadMB: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			JWTSecret:       "change-me-in-production",
			JWTExpireMinute: 30,
		},
		Database: DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			DB:           "janus",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			AutoMigrate:  true,
		},
		Redis: RedisConfig{
			Enabled:           false,
			Addr:              "127.0.0.1:6379",
			HistoryTTLSeconds: 300,
		},
		Storage: StorageConfig{
			Endpoint:          "http://localhost:9000",
			Region:            "us-east-1",
			AccessKey:         "minioadmin",
			SecretKey:         "minioadmin",
			Bucket:            "documents",
			DocsFolder:        "documents",
			BoeFolder:         "boe",
			PresignTTLSeconds: 3600,
			UsePathStyle:      true,
			CreateBucket:      true,
		},
		LLM: LLMConfig{
			Provider:          ProviderGemini,
			BaseURL:           "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:             "gemini-2.5-flash",
			EmbeddingModel:    "gemini-embedding-001",
			MaxContextMessage: 50,
			MaxToolRounds:     5,
			TimeoutSeconds:    90,
		},
		Embedding: EmbeddingConfig{
			Dimensions:        2000,
			BatchSize:         100,
			Concurrency:       4,
			RequestsPerSecond: 5,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			Scope:    ScopeOwner,
			EFSearch: 40,
		},
		Ingest: IngestConfig{
			IndexBoe: true,
		},
		Resilience: ResilienceConfig{
			MaxRetries:            2,
			BaseDelayMillis:       500,
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 30,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.CORSOrigins = getEnvAsList("CORS_ORIGINS", cfg.App.CORSOrigins)
	cfg.App.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", cfg.App.MaxUploadMB)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.Database.Host = getEnv("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.DB = getEnv("POSTGRES_DB", cfg.Database.DB)
	cfg.Database.SSLMode = getEnv("POSTGRES_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.AutoMigrate = getEnvAsBool("POSTGRES_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)

	cfg.Storage.Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.Region = getEnv("S3_REGION", cfg.Storage.Region)
	cfg.Storage.AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Bucket = getEnv("S3_BUCKET_NAME", cfg.Storage.Bucket)
	cfg.Storage.DocsFolder = getEnv("S3_DOCS_FOLDER", cfg.Storage.DocsFolder)
	cfg.Storage.BoeFolder = getEnv("S3_BOE_FOLDER", cfg.Storage.BoeFolder)
	cfg.Storage.PresignTTLSeconds = getEnvAsInt("S3_PRESIGN_TTL_SECONDS", cfg.Storage.PresignTTLSeconds)
	cfg.Storage.UsePathStyle = getEnvAsBool("S3_USE_PATH_STYLE", cfg.Storage.UsePathStyle)
	cfg.Storage.CreateBucket = getEnvAsBool("S3_CREATE_BUCKET", cfg.Storage.CreateBucket)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.MaxContextMessage = getEnvAsInt("LLM_MAX_CONTEXT_MESSAGE", cfg.LLM.MaxContextMessage)
	cfg.LLM.MaxToolRounds = getEnvAsInt("LLM_MAX_TOOL_ROUNDS", cfg.LLM.MaxToolRounds)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Embedding.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.Concurrency = getEnvAsInt("EMBEDDING_CONCURRENCY", cfg.Embedding.Concurrency)
	cfg.Embedding.RequestsPerSecond = getEnvAsFloat("EMBEDDING_REQUESTS_PER_SECOND", cfg.Embedding.RequestsPerSecond)

	cfg.Chunking.Size = getEnvAsInt("CHUNK_SIZE", cfg.Chunking.Size)
	cfg.Chunking.Overlap = getEnvAsInt("CHUNK_OVERLAP", cfg.Chunking.Overlap)

	cfg.Retrieval.TopK = getEnvAsInt("RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.Scope = getEnv("RETRIEVAL_SCOPE", cfg.Retrieval.Scope)
	cfg.Retrieval.EFSearch = getEnvAsInt("RETRIEVAL_EF_SEARCH", cfg.Retrieval.EFSearch)

	cfg.Ingest.IndexBoe = getEnvAsBool("INGEST_INDEX_BOE", cfg.Ingest.IndexBoe)

	cfg.Resilience.MaxRetries = getEnvAsInt("RESILIENCE_MAX_RETRIES", cfg.Resilience.MaxRetries)
	cfg.Resilience.BaseDelayMillis = getEnvAsInt("RESILIENCE_BASE_DELAY_MS", cfg.Resilience.BaseDelayMillis)

	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.SampleRatio = getEnvAsFloat("OTEL_SAMPLE_RATIO", cfg.Telemetry.SampleRatio)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
