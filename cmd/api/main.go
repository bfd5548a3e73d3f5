package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"chatbot-api/internal/adapters/httpapi"
	"chatbot-api/internal/adapters/ollama"
	"chatbot-api/internal/adapters/repo"
	"chatbot-api/internal/domain"
	"chatbot-api/internal/infra/cache"
	"chatbot-api/internal/infra/config"
	"chatbot-api/internal/infra/db"
	httpinfra "chatbot-api/internal/infra/http"
	applog "chatbot-api/internal/infra/log"
	"chatbot-api/internal/infra/metrics"
	"chatbot-api/internal/infra/queue"
	"chatbot-api/internal/usecase/chat"
	"chatbot-api/internal/usecase/feedback"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := db.Connect(cfg.Mongo.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: mongo connection failed")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()
	database := mongoClient.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		logger.Fatal().Err(err).Msg("api: index bootstrap failed")
	}
	logger.Info().Str("database", cfg.Mongo.Database).Msg("api: unique index ready on feedbacks.unique_id")

	store := repo.NewMongo(database)

	var convCache domain.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("api: redis connection failed")
		}
		convCache = cache.NewRedis(redisClient)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("api: conversation cache enabled")
	}

	var events domain.EventPublisher = queue.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		publisher, err := queue.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: amqp connection failed")
		}
		defer publisher.Close()
		events = publisher
		logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("api: event publishing enabled")
	}

	generator := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Timeout,
		logger.With().Str("component", "ollama").Logger())
	chatService := chat.NewService(store, generator, events, convCache, cfg.CacheTTL,
		logger.With().Str("component", "chat").Logger())
	feedbackService := feedback.NewService(store, events,
		logger.With().Str("component", "feedback").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handler := httpapi.NewHandler(chatService, feedbackService, func(ctx context.Context) error {
		return mongoClient.Ping(ctx, nil)
	}, logger.With().Str("component", "api").Logger())
	handler.Register(server.Router)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		logger.Info().Msg("api: started")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown failed")
	}
}
