package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"boathub/internal/app"
	"boathub/internal/config"
	"boathub/internal/server"
	"boathub/internal/util"
	"boathub/internal/ws"
	"boathub/pkg/ai"
	"boathub/pkg/storage"
	"boathub/pkg/store"
)

func main() {
	cfgPath := os.Getenv("BOATHUB_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	aiTimeout, err := config.ParseAITimeout(cfg.AITimeout)
	if err != nil {
		log.Fatalf("failed to parse AI timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	var sessions store.SessionStore
	switch cfg.SessionStrategy {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		sessions = store.NewRedisSessionStore(client, sessionTTL)
	default:
		sessions = store.NewGormSessionStore(dataStore.DB(), sessionTTL)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	} else {
		slog.Warn("object storage disabled, photo endpoints unavailable")
	}

	generator := ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, aiTimeout)
	var search ai.SearchTextGenerator
	if cfg.AIWebSearchModel != "" {
		search = ai.NewResponsesGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIWebSearchModel, aiTimeout)
	}
	orchestrator := ai.NewOrchestrator(generator, search, app.SettingLookup(dataStore), aiTimeout)

	hub := ws.NewHub(logger, cfg.AllowedOrigins)

	appCore, err := app.New(app.Config{
		Store:    dataStore,
		Sessions: sessions,
		AI:       orchestrator,
		Notifier: hub,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Objects:                    objects,
		Hub:                        hub,
		AllowedOrigins:             cfg.AllowedOrigins,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		SessionTTL:                 sessionTTL,
		CookieSecure:               cfg.CookieSecure,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
