package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"geoattend/internal/attendance"
	"geoattend/internal/config"
	"geoattend/internal/logger"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/store"
	"geoattend/internal/tally"
)

// Worker tallies admitted check-ins from the event queue and sweeps expired
// sessions out of the store.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.Setup(true, "info")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Setup(cfg.Dev(), cfg.LogLevel)
	zerolog.DefaultContextLogger = &log

	ctx, cancel := signal.NotifyContext(log.WithContext(context.Background()), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.QueueBackend == "memory" {
		log.Warn().Msg("memory queue is process local; the worker will see no events from the api")
	}

	backend, err := attendance.OpenBackend(ctx, cfg.StoreBackend, store.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.DBMaxConns,
	}, cfg.AutoMigrate)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer backend.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:events")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("queue consume init failed")
	}

	go serveMetrics(ctx, cfg.WorkerMetricsAddr)
	go sweep(ctx, backend.Store, cfg.SweepInterval, cfg.SessionWindow)

	log.Info().Str("queue", cfg.QueueBackend).Dur("sweep_interval", cfg.SweepInterval).Msg("worker started")
	tally.NewConsumer(tally.NewRedis(redisClient.Client)).Run(ctx, messages)

	log.Info().Msg("worker stopped")
}

// serveMetrics exposes the worker's Prometheus registry until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zerolog.Ctx(ctx).Error().Err(err).Str("addr", addr).Msg("metrics server failed")
	}
}

// sweep periodically deletes sessions that expired more than one window ago.
func sweep(ctx context.Context, st attendance.Store, every, window time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.PurgeExpiredSessions(ctx, now.Add(-window))
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("session sweep failed")
				continue
			}
			metrics.SessionsPurged.Add(float64(n))
			if n > 0 {
				zerolog.Ctx(ctx).Info().Int64("purged", n).Msg("expired sessions purged")
			}
		}
	}
}
