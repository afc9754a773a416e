// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RAGLAB_HOST" yaml:"host"`
	Port int    `envconfig:"RAGLAB_PORT" yaml:"port"`

	// Feature flags
	EnableWeb bool `envconfig:"RAGLAB_ENABLE_WEB" yaml:"enable_web"`

	// Qdrant configuration
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Gemini configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Store configuration
	Store StoreConfig `yaml:"store"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Ingest configuration
	Ingest IngestConfig `yaml:"ingest"`

	// RAG configuration
	RAG RAGConfig `yaml:"rag"`

	// Dashboard configuration
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port       int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey     string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS     bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
	Collection string `envconfig:"QDRANT_COLLECTION" yaml:"collection"`
}

// GeminiConfig holds LLM and embedding provider settings.
type GeminiConfig struct {
	APIKey          string  `envconfig:"GEMINI_API_KEY" yaml:"api_key"`
	GenerationModel string  `envconfig:"RAGLAB_GENERATION_MODEL" yaml:"generation_model"`
	EmbeddingModel  string  `envconfig:"RAGLAB_EMBEDDING_MODEL" yaml:"embedding_model"`
	EmbedDim        int     `envconfig:"RAGLAB_EMBED_DIM" yaml:"embed_dim"`
	Temperature     float64 `envconfig:"RAGLAB_TEMPERATURE" yaml:"temperature"`
	MaxOutputTokens int     `envconfig:"RAGLAB_MAX_OUTPUT_TOKENS" yaml:"max_output_tokens"`
	MaxRetries      int     `envconfig:"RAGLAB_LLM_MAX_RETRIES" yaml:"max_retries"`
}

// StoreConfig holds execution store settings.
type StoreConfig struct {
	Type string `envconfig:"RAGLAB_STORE_TYPE" yaml:"type"`
	Path string `envconfig:"RAGLAB_STORE_PATH" yaml:"path"`
}

// CacheConfig holds comparison snapshot cache settings.
type CacheConfig struct {
	Type     string `envconfig:"RAGLAB_CACHE_TYPE" yaml:"type"`
	RedisURL string `envconfig:"RAGLAB_REDIS_URL" yaml:"redis_url"`
	TTL      int    `envconfig:"RAGLAB_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RAGLAB_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RAGLAB_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RAGLAB_KAFKA_GROUP" yaml:"kafka_group"`
	EventLog     string `envconfig:"RAGLAB_BUS_EVENT_LOG" yaml:"event_log"` // empty = disabled
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	ChunkSize    int `envconfig:"RAGLAB_CHUNK_SIZE" yaml:"chunk_size"`
	ChunkOverlap int `envconfig:"RAGLAB_CHUNK_OVERLAP" yaml:"chunk_overlap"`
	Workers      int `envconfig:"RAGLAB_INGEST_WORKERS" yaml:"workers"`
	BatchSize    int `envconfig:"RAGLAB_EMBED_BATCH_SIZE" yaml:"batch_size"`
}

// RAGConfig holds technique pipeline settings.
type RAGConfig struct {
	DefaultTopK      int  `envconfig:"RAGLAB_DEFAULT_TOP_K" yaml:"default_top_k"`
	RerankMultiplier int  `envconfig:"RAGLAB_RERANK_MULTIPLIER" yaml:"rerank_multiplier"`
	FusionVariations int  `envconfig:"RAGLAB_FUSION_VARIATIONS" yaml:"fusion_variations"`
	MaxSubQueries    int  `envconfig:"RAGLAB_MAX_SUB_QUERIES" yaml:"max_sub_queries"`
	MaxAgentSteps    int  `envconfig:"RAGLAB_MAX_AGENT_STEPS" yaml:"max_agent_steps"`
	EnableEvaluation bool `envconfig:"RAGLAB_ENABLE_EVALUATION" yaml:"enable_evaluation"`
}

// DashboardConfig holds dashboard settings.
type DashboardConfig struct {
	RefreshInterval time.Duration `envconfig:"RAGLAB_DASHBOARD_REFRESH" yaml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RAGLAB_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RAGLAB_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   int    `envconfig:"RAGLAB_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
	CORSOrigins string `envconfig:"RAGLAB_CORS_ORIGINS" yaml:"cors_origins"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080
	cfg.EnableWeb = true

	cfg.Qdrant = QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "documents",
	}

	cfg.Gemini = GeminiConfig{
		GenerationModel: "gemini-2.0-flash",
		EmbeddingModel:  "text-embedding-004",
		EmbedDim:        768,
		Temperature:     0.1,
		MaxOutputTokens: 2048,
		MaxRetries:      3,
	}

	cfg.Store = StoreConfig{
		Type: "sqlite",
		Path: "./raglab.db",
	}

	cfg.Cache = CacheConfig{
		Type:     "memory",
		RedisURL: "redis://localhost:6379",
		TTL:      0,
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Ingest = IngestConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Workers:      4,
		BatchSize:    32,
	}

	cfg.RAG = RAGConfig{
		DefaultTopK:      5,
		RerankMultiplier: 4,
		FusionVariations: 3,
		MaxSubQueries:    4,
		MaxAgentSteps:    3,
		EnableEvaluation: true,
	}

	cfg.Dashboard = DashboardConfig{
		RefreshInterval: 5 * time.Second,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:   0,
		CORSOrigins: "*",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	// Gemini validation
	if c.Gemini.EmbedDim < 1 {
		errs = append(errs, "embed_dim must be positive")
	}

	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	// Store validation
	validStoreTypes := map[string]bool{"sqlite": true, "memory": true}
	if !validStoreTypes[c.Store.Type] {
		errs = append(errs, fmt.Sprintf("invalid store type: %s (must be sqlite or memory)", c.Store.Type))
	}

	if c.Store.Type == "sqlite" && c.Store.Path == "" {
		errs = append(errs, "store path required for sqlite store")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory or redis)", c.Cache.Type))
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers required for kafka bus")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	// Ingest validation
	if c.Ingest.ChunkSize < 64 {
		errs = append(errs, "chunk_size must be at least 64")
	}

	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, "chunk_overlap must be less than chunk_size")
	}

	if c.Ingest.Workers < 1 {
		errs = append(errs, "ingest workers must be positive")
	}

	// RAG validation
	if c.RAG.DefaultTopK < 1 {
		errs = append(errs, "default_top_k must be positive")
	}

	if c.RAG.RerankMultiplier < 1 {
		errs = append(errs, "rerank_multiplier must be positive")
	}

	if c.RAG.MaxAgentSteps < 1 {
		errs = append(errs, "max_agent_steps must be positive")
	}

	// Dashboard validation
	if c.Dashboard.RefreshInterval < time.Second {
		errs = append(errs, "dashboard refresh_interval must be at least 1s")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
