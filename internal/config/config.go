// Package config provides application configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (CONFIG_PATH or ./config.yaml), then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	LLM       LLMConfig       `koanf:"llm"`
	Recommend RecommendConfig `koanf:"recommend"`
	Chat      ChatConfig      `koanf:"chat"`
	TVDB      TVDBConfig      `koanf:"tvdb"`
	RAWG      RAWGConfig      `koanf:"rawg"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Redis     RedisConfig     `koanf:"redis"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
}

type ServerConfig struct {
	Port       string `koanf:"port"`
	AppVersion string `koanf:"app_version"`
	Env        string `koanf:"env"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LLMConfig selects the completion backend.
// Provider "groq" (any OpenAI-compatible endpoint) or "gemini".
type LLMConfig struct {
	Provider       string        `koanf:"provider"`
	APIKey         string        `koanf:"api_key"`
	BaseURL        string        `koanf:"base_url"`
	Model          string        `koanf:"model"`
	FallbackModel  string        `koanf:"fallback_model"`
	ChatModel      string        `koanf:"chat_model"`
	Timeout        time.Duration `koanf:"timeout"`
	GoogleProject  string        `koanf:"google_project"`
	GoogleLocation string        `koanf:"google_location"`
	GoogleAPIKey   string        `koanf:"google_api_key"`
	UtilityModel   string        `koanf:"utility_model"` // evaluator + title extraction
	EmbeddingModel string        `koanf:"embedding_model"`
}

type RecommendConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
}

type ChatConfig struct {
	QueryLimit      int           `koanf:"query_limit"`
	UserTokenLimit  int           `koanf:"user_token_limit"`
	UserTokenWindow time.Duration `koanf:"user_token_window"`
	ExtractTitles   bool          `koanf:"extract_titles"`
}

type TVDBConfig struct {
	APIKey         string        `koanf:"api_key"`
	BaseURL        string        `koanf:"base_url"`
	ArtworkBaseURL string        `koanf:"artwork_base_url"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	AnimeGenreID   int           `koanf:"anime_genre_id"`
}

type RAWGConfig struct {
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	MediaBaseURL string `koanf:"media_base_url"`
	PageSize     int    `koanf:"page_size"`
}

// CatalogConfig is shared by both catalog clients.
type CatalogConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	RateLimit    float64       `koanf:"rate_limit"` // requests per second per catalog
	ListingLimit int           `koanf:"listing_limit"`
	ContextTTL   time.Duration `koanf:"context_ttl"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

type QdrantConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Collection string        `koanf:"collection"`
	Threshold  float32       `koanf:"threshold"`
	Dimension  uint64        `koanf:"dimension"`
	Freshness  time.Duration `koanf:"freshness"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// DefaultConfigPaths lists the config files probed when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

func defaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080", Env: "development"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		LLM: LLMConfig{
			Provider:       "groq",
			Timeout:        25 * time.Second,
			GoogleLocation: "us-central1",
			UtilityModel:   "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
		},
		Recommend: RecommendConfig{MaxAttempts: 3, BaseDelay: time.Second},
		Chat:      ChatConfig{QueryLimit: 10, UserTokenLimit: 200000, UserTokenWindow: 24 * time.Hour},
		TVDB: TVDBConfig{
			BaseURL:        "https://api4.thetvdb.com/v4",
			ArtworkBaseURL: "https://artworks.thetvdb.com",
			TokenTTL:       24 * time.Hour,
			AnimeGenreID:   27,
		},
		RAWG: RAWGConfig{
			BaseURL:      "https://api.rawg.io/api",
			MediaBaseURL: "https://media.rawg.io/media",
			PageSize:     40,
		},
		Catalog: CatalogConfig{
			Timeout:      10 * time.Second,
			RateLimit:    5,
			ListingLimit: 20,
			ContextTTL:   6 * time.Hour,
		},
		Qdrant: QdrantConfig{
			Port:       6334,
			Collection: "zappy_recommendations",
			Threshold:  0.92,
			Dimension:  768,
			Freshness:  24 * time.Hour,
		},
		Database: DatabaseConfig{Path: "./data/zappy.db"},
	}
}

// Load reads defaults, the optional config file and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.LLM.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case "groq", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case "gemini":
		if c.LLM.GoogleProject == "" && c.LLM.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT or GOOGLE_API_KEY is required for provider gemini")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.Recommend.MaxAttempts <= 0 {
		return fmt.Errorf("RECOMMEND_MAX_ATTEMPTS must be > 0")
	}
	if c.Chat.QueryLimit <= 0 {
		return fmt.Errorf("CHAT_QUERY_LIMIT must be > 0")
	}
	if c.Catalog.ListingLimit <= 0 {
		return fmt.Errorf("CATALOG_LISTING_LIMIT must be > 0")
	}
	return nil
}

// providerDefaults holds the endpoint and model used when none is configured.
var providerDefaults = map[string]struct{ baseURL, model string }{
	"groq":   {"https://api.groq.com/openai/v1", "openai/gpt-oss-120b"},
	"openai": {"", "gpt-4o-mini"},
	"gemini": {"", "gemini-2.5-flash"},
}

func (c *LLMConfig) applyProviderDefaults() {
	d, ok := providerDefaults[c.Provider]
	if !ok {
		return
	}
	if c.BaseURL == "" {
		c.BaseURL = d.baseURL
	}
	if c.Model == "" {
		c.Model = d.model
	}
}

// GeminiEnabled reports whether Google credentials are available for the
// embedder, evaluator and extractor, regardless of the chat provider.
func (c *Config) GeminiEnabled() bool {
	return c.LLM.GoogleProject != "" || c.LLM.GoogleAPIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "" || c.Server.Env == "development"
}

func findConfigFile() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variables to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"port":        "server.port",
	"app_version": "server.app_version",
	"env":         "server.env",

	"log_level":  "logging.level",
	"log_format": "logging.format",

	"llm_provider":          "llm.provider",
	"llm_api_key":           "llm.api_key",
	"groq_api_key":          "llm.api_key",
	"llm_base_url":          "llm.base_url",
	"llm_model":             "llm.model",
	"llm_fallback_model":    "llm.fallback_model",
	"llm_chat_model":        "llm.chat_model",
	"llm_timeout":           "llm.timeout",
	"google_cloud_project":  "llm.google_project",
	"google_cloud_location": "llm.google_location",
	"google_api_key":        "llm.google_api_key",
	"llm_utility_model":     "llm.utility_model",
	"llm_embedding_model":   "llm.embedding_model",

	"recommend_max_attempts": "recommend.max_attempts",
	"recommend_base_delay":   "recommend.base_delay",

	"chat_query_limit":    "chat.query_limit",
	"user_token_limit":    "chat.user_token_limit",
	"user_token_window":   "chat.user_token_window",
	"chat_extract_titles": "chat.extract_titles",

	"tvdb_api_key":          "tvdb.api_key",
	"thetvdb_api_key":       "tvdb.api_key",
	"tvdb_base_url":         "tvdb.base_url",
	"tvdb_artwork_base_url": "tvdb.artwork_base_url",
	"tvdb_token_ttl":        "tvdb.token_ttl",
	"tvdb_anime_genre_id":   "tvdb.anime_genre_id",

	"rawg_api_key":        "rawg.api_key",
	"rawg_base_url":       "rawg.base_url",
	"rawg_media_base_url": "rawg.media_base_url",
	"rawg_page_size":      "rawg.page_size",

	"catalog_timeout":       "catalog.timeout",
	"catalog_rate_limit":    "catalog.rate_limit",
	"catalog_listing_limit": "catalog.listing_limit",
	"catalog_context_ttl":   "catalog.context_ttl",

	"redis_addr": "redis.addr",

	"qdrant_host":       "qdrant.host",
	"qdrant_port":       "qdrant.port",
	"qdrant_collection": "qdrant.collection",
	"qdrant_threshold":  "qdrant.threshold",
	"qdrant_dimension":  "qdrant.dimension",
	"qdrant_freshness":  "qdrant.freshness",

	"database_path": "database.path",
	"db_path":       "database.path",

	"auth_jwt_secret":     "auth.jwt_secret",
	"supabase_jwt_secret": "auth.jwt_secret",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
