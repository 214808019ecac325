package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"zappy-core/internal/adapter/api"
	"zappy-core/internal/adapter/client"
	"zappy-core/internal/adapter/store"
	"zappy-core/internal/config"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/usecase"
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		if err := godotenv.Load(); err != nil {
			logging.Warn().Msg("No .env.dev or .env file found, using system environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalogs
	if cfg.TVDB.APIKey == "" {
		logging.Warn().Msg("[TVDB] No API key configured, titles context and posters are disabled")
	}
	if cfg.RAWG.APIKey == "" {
		logging.Warn().Msg("[RAWG] No API key configured, games context and covers are disabled")
	}
	tvdb := client.NewTVDBClient(client.TVDBConfig{
		BaseURL:      cfg.TVDB.BaseURL,
		APIKey:       cfg.TVDB.APIKey,
		AnimeGenreID: cfg.TVDB.AnimeGenreID,
		TokenTTL:     cfg.TVDB.TokenTTL,
	}, client.NewCatalogHTTP("tvdb", cfg.Catalog.Timeout, cfg.Catalog.RateLimit), nil)
	rawg := client.NewRAWGClient(cfg.RAWG.BaseURL, cfg.RAWG.APIKey,
		client.NewCatalogHTTP("rawg", cfg.Catalog.Timeout, cfg.Catalog.RateLimit))

	// Gemini backs the embedder, evaluator and extractor, and the chat model when selected
	var genaiClient *genai.Client
	if cfg.GeminiEnabled() {
		genaiClient, err = client.NewGenAIClient(ctx, client.GenAIConfig{
			APIKey:   cfg.LLM.GoogleAPIKey,
			Project:  cfg.LLM.GoogleProject,
			Location: cfg.LLM.GoogleLocation,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to init genai client")
		}
	}

	newModel := func(model string) repository.AIProvider {
		if cfg.LLM.Provider == "gemini" {
			return client.NewGeminiClientFromClient(genaiClient, model)
		}
		return client.NewOpenAICompatClient(client.OpenAICompatConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   model,
			Timeout: cfg.LLM.Timeout,
		})
	}

	primaryModel := newModel(cfg.LLM.Model)
	var fallbackModel repository.AIProvider
	if cfg.LLM.FallbackModel != "" {
		fallbackModel = newModel(cfg.LLM.FallbackModel)
	}
	recommendProvider := usecase.NewResilientProvider(primaryModel, fallbackModel, cfg.LLM.Timeout)
	chatProvider := recommendProvider
	if cfg.LLM.ChatModel != "" && cfg.LLM.ChatModel != cfg.LLM.Model {
		chatProvider = usecase.NewResilientProvider(newModel(cfg.LLM.ChatModel), primaryModel, cfg.LLM.Timeout)
	}

	// Redis for the token budget and the shared context cache
	var (
		tokenLimiter repository.TokenLimiter
		contextCache repository.ContextCache
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("[REDIS] Unreachable, token budget and context cache disabled")
		} else {
			tokenLimiter = store.NewRedisLimiter(rdb, cfg.Chat.UserTokenLimit, cfg.Chat.UserTokenWindow)
			contextCache = store.NewRedisContextCache(rdb)
		}
	}

	// Qdrant for the semantic recommendation cache
	var (
		recommendationCache repository.RecommendationCache
		embedder            *client.Embedder
	)
	if cfg.Qdrant.Host != "" && genaiClient != nil {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.Qdrant.Host,
			Port: cfg.Qdrant.Port,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to qdrant")
		}
		defer qClient.Close()

		vectorStore := store.NewQdrantStore(qClient, cfg.Qdrant.Collection, cfg.Qdrant.Freshness)
		if err := vectorStore.InitCollection(ctx, cfg.Qdrant.Dimension); err != nil {
			logging.Warn().Err(err).Msg("[QDRANT] Collection init failed, semantic cache disabled")
		} else {
			embedder = client.NewEmbedderFromClient(genaiClient, cfg.LLM.EmbeddingModel)
			evaluator := client.NewGeminiEvaluator(genaiClient, cfg.LLM.UtilityModel)
			recommendationCache = usecase.NewSemanticCache(embedder, vectorStore, evaluator, cfg.Qdrant.Threshold)
		}
	}

	var extractor repository.QueryExtractor
	if cfg.Chat.ExtractTitles && genaiClient != nil {
		extractor = client.NewGeminiExtractor(genaiClient, cfg.LLM.UtilityModel)
	}

	sessionStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session database")
	}
	defer sessionStore.Close()

	// Inject the adapters into the use cases
	aggregator := usecase.NewContextAggregator(tvdb, rawg, contextCache, extractor, usecase.AggregatorConfig{
		ListingLimit: cfg.Catalog.ListingLimit,
		GamePageSize: cfg.RAWG.PageSize,
		CacheTTL:     cfg.Catalog.ContextTTL,
	})
	resolver := usecase.NewMetadataResolver(tvdb, rawg)
	hosts := usecase.ImageHosts{ArtworkBaseURL: cfg.TVDB.ArtworkBaseURL, MediaBaseURL: cfg.RAWG.MediaBaseURL}
	recommender := usecase.NewRecommender(recommendProvider, resolver, recommendationCache, hosts, usecase.RecommenderConfig{
		MaxAttempts: cfg.Recommend.MaxAttempts,
		BaseDelay:   cfg.Recommend.BaseDelay,
	})
	responder := usecase.NewResponder(chatProvider, aggregator)
	orchestrator := usecase.NewOrchestrator(sessionStore, aggregator, recommender, responder, tokenLimiter, usecase.OrchestratorConfig{
		QueryLimit: cfg.Chat.QueryLimit,
	})

	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// 1. Fill the category context blocks
		if _, err := aggregator.Refresh(warmCtx); err != nil {
			logging.Warn().Err(err).Msg("[ZAPPY-WARMER] Context refresh failed")
		}

		// 2. Wake the embedding model
		if embedder != nil {
			if _, err := embedder.CreateEmbedding(warmCtx, "warmup"); err != nil {
				logging.Warn().Err(err).Msg("[ZAPPY-WARMER] Embedder warm-up failed")
			}
		}

		logging.Info().Msg("[ZAPPY-WARMER] Pre-warm complete")
	}()

	// Initialize API Layer (Delivery Layer)
	app := api.NewApp("Zappy Core")
	handler := api.NewHandler(orchestrator, aggregator, cfg.Server.AppVersion, cfg.Server.Env)
	api.SetupRouter(app, handler, api.NewAuthenticator(cfg.Auth.JWTSecret))

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("provider", cfg.LLM.Provider).Msg("Zappy core running")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logging.Error().Err(err).Msg("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
