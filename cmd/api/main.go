package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/handler"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/logger"
	"geoattend/internal/queue"
	"geoattend/internal/store"
	"geoattend/internal/tally"
)

const ipBurstFactor = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.Setup(true, "info")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Setup(cfg.Dev(), cfg.LogLevel)
	zerolog.DefaultContextLogger = &log

	if !cfg.Dev() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx := log.WithContext(context.Background())

	backend, err := attendance.OpenBackend(ctx, cfg.StoreBackend, store.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.DBMaxConns,
	}, cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer backend.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// Nothing drains this queue in-process; once full, publishes fail fast and events are dropped.
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:events")
	}

	registry := attendance.NewRegistry(backend.Store, attendance.RegistryConfig{
		Window:        cfg.SessionWindow,
		DefaultRadius: cfg.DefaultRadius,
	})
	svc := attendance.NewService(backend.Store, registry, attendance.NewAdmission(backend.Store, nil))
	h := handler.New(svc, dropWhenFull{q}, tally.NewRedis(redisClient.Client), nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinRequests(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := backend.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || (!redisHealthy && cfg.QueueBackend == "redis") {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "redis": redisHealthy, "db": dbHealthy})
	})

	// Per-IP allowance is wider since a campus network puts many callers behind one address.
	ipLimiter := httpmiddleware.NewSimpleTokenBucket(ipBurstFactor*cfg.RateLimitPerMin, ipBurstFactor*cfg.RateLimitPerMin)
	callerLimiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	v1 := r.Group("/v1",
		ipLimiter.IPMiddleware(),
		auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer),
		callerLimiter.GinMiddleware(),
	)
	h.Register(v1)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.StoreBackend).
			Str("queue", cfg.QueueBackend).
			Dur("window", cfg.SessionWindow).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	log.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

// dropWhenFull bounds how long a request waits on the event queue.
type dropWhenFull struct {
	q queue.Publisher
}

func (d dropWhenFull) Publish(ctx context.Context, msg queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return d.q.Publish(ctx, msg)
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
