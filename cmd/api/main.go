package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"reviewboost/internal/adapters/anthropic"
	server "reviewboost/internal/adapters/http_server"
	"reviewboost/internal/adapters/observability"
	"reviewboost/internal/adapters/places"
	redisad "reviewboost/internal/adapters/redis"
	"reviewboost/internal/adapters/sms"
	"reviewboost/internal/app"
	"reviewboost/internal/domain"
	"reviewboost/internal/shared"
	mysqlrepo "reviewboost/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	repo := mysqlrepo.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; running uncached")
		} else {
			cache = rc
		}
		cancel()
	} else {
		log.Info().Msg("REDIS_ADDR empty; caching disabled")
	}

	// Place resolution works without an API key, it just loses the text
	// search stages; link-embedded place ids still resolve.
	var searcher places.Searcher
	if cfg.MapsAPIKey != "" {
		client, err := places.NewClient("", cfg.MapsAPIKey, cfg.PlacesRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("places client init failed")
		}
		searcher = client
	}
	resolver := places.NewResolver(places.NewExpander(log.Logger), searcher, log.Logger)

	// The review writer is optional; generation falls back to a static
	// template without it.
	var writer domain.ReviewWriter
	if cfg.AnthropicKey != "" {
		w, err := anthropic.New("", cfg.AnthropicKey, cfg.AnthropicModel, 2)
		if err != nil {
			log.Fatal().Err(err).Msg("anthropic client init failed")
		}
		writer = w
	}

	sender := sms.New(cfg.SMS, log.Logger)

	resolveSvc := app.NewResolveService(resolver, cache, cfg.CacheTTL, log.Logger)
	reviewSvc := app.NewReviewService(repo, resolveSvc, writer, sender, cache, cfg.Workers, log.Logger)
	querySvc := app.NewQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New(2 * time.Minute)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	h := &server.Handlers{
		Reviews:  reviewSvc,
		Queries:  querySvc,
		Resolver: resolveSvc,
		Sender:   sender,
		SMSCfg:   cfg.SMS,
		BaseURL:  cfg.BaseURL,
	}
	srv.MountHandlers(h)
	srv.MountPublic(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("sms_backend", cfg.SMS.Backend).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
