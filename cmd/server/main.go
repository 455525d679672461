package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminsvc "reclink/internal/admin"
	adminhandler "reclink/internal/admin/handler"
	"reclink/internal/audit"
	claimsvc "reclink/internal/claim"
	claimhandler "reclink/internal/claim/handler"
	"reclink/internal/identity"
	"reclink/internal/match"
	"reclink/internal/match/cache"
	"reclink/internal/platform/config"
	"reclink/internal/platform/httpserver"
	"reclink/internal/platform/logger"
	"reclink/internal/platform/metrics"
	"reclink/internal/platform/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return err
		}
		log.Info("connected to postgres")
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	deps := buildStores(db)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var backend cache.Backend
	if redisClient != nil {
		defer redisClient.Close()
		backend = cache.NewRedisBackend(redisClient.Client, log)
		log.Info("match cache backed by redis")
	} else {
		backend = cache.NewMemoryBackend(cfg.MatchCacheTTL)
	}

	publisher := audit.NewPublisher(deps.auditStore, cfg.AuditPageLimit)
	searcher := match.NewSearcher(deps.records, deps.submissions, cfg.SubmissionWindow, log, m)
	matchCache := cache.New(backend, searcher, cfg.MatchCacheTTL, log, m)

	claims, err := claimsvc.New(deps.records, searcher, publisher, deps.runner, log,
		claimsvc.WithCache(matchCache),
		claimsvc.WithThreshold(cfg.SelfServiceThreshold),
		claimsvc.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	overrides, err := adminsvc.New(deps.identities, deps.records, publisher, deps.runner,
		adminsvc.WithLogger(log),
		adminsvc.WithCache(matchCache),
		adminsvc.WithMetrics(m),
		adminsvc.WithReassignPolicy(cfg.AllowAdminReassign),
	)
	if err != nil {
		return err
	}

	tokens := identity.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := chi.NewRouter()
	claimhandler.New(matchCache, claims, tokens, log, m).Register(router)
	adminhandler.New(overrides, publisher, tokens, cfg.AdminToken, log, m).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting reclink", "addr", cfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
