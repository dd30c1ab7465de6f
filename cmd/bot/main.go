package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"relay-bot-backend/internal/bot"
	settingscache "relay-bot-backend/internal/cache/redis"
	"relay-bot-backend/internal/common/config"
	"relay-bot-backend/internal/common/logger"
	relayhttp "relay-bot-backend/internal/http"
	"relay-bot-backend/internal/menu"
	"relay-bot-backend/internal/platform/db"
	redisplatform "relay-bot-backend/internal/platform/redis"
	"relay-bot-backend/internal/relay"
	"relay-bot-backend/internal/repository/postgres"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		lg := logger.Init("relay-bot", true)
		lg.Fatal().Err(err).Msg("config load failed")
	}

	log := logger.Init("relay-bot", cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer database.Close()

	if err := postgres.Migrate(ctx, database, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("database ready")

	resolver := buildResolver(ctx, cfg, database, log)

	tg := telegram.NewClient(cfg.Telegram.BotToken, log)

	users := postgres.NewUserRepository(database)
	ledger := postgres.NewMessageRepository(database)

	groupID := cfg.Telegram.AdminGroupID
	ops := relay.NewOperators(cfg.Telegram.AdminIDs, resolver)
	gate := relay.NewGate(users, resolver, tg, log)
	router := relay.NewRouter(users, resolver, tg, groupID, log)
	pipeline := relay.NewPipeline(users, ledger, resolver, tg, router, ops, gate, groupID, log)
	edits := relay.NewEditTracker(users, ledger, tg, ops, groupID, log)
	actions := relay.NewCardActions(users, resolver, tg, router, ops, groupID, log)
	console := menu.New(resolver, tg, log)

	dispatcher := bot.NewDispatcher(pipeline, edits, actions, ops, console, groupID, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: relayhttp.NewRouter(dispatcher, cfg.Server.Origin, cfg.Telegram.WebhookSecret, log),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

// buildResolver wires the config resolver, with Redis caching when Redis is
// reachable. A missing Redis is a warning, not a fatal: the resolver works
// straight off Postgres.
func buildResolver(ctx context.Context, cfg *config.Config, database *sql.DB, log zerolog.Logger) *settings.Resolver {
	store := postgres.NewConfigRepository(database)

	rdb, err := redisplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, config cache disabled")
		return settings.NewResolver(store, log)
	}
	ttl := time.Duration(cfg.Redis.ConfigTTLSec) * time.Second
	return settings.NewResolver(store, log, settings.WithCache(settingscache.NewSettingsCache(rdb, ttl)))
}
