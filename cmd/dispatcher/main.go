package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poolride/dispatch-core/internal/dispatch"
	"github.com/poolride/dispatch-core/internal/matcher"
	"github.com/poolride/dispatch-core/internal/mediator"
	"github.com/poolride/dispatch-core/internal/pricing"
	"github.com/poolride/dispatch-core/internal/poolstore"
	"github.com/poolride/dispatch-core/internal/routeplan"
	"github.com/poolride/dispatch-core/pkg/common"
	"github.com/poolride/dispatch-core/pkg/config"
	"github.com/poolride/dispatch-core/pkg/database"
	"github.com/poolride/dispatch-core/pkg/logger"
	redisclient "github.com/poolride/dispatch-core/pkg/redis"
	"go.uber.org/zap"
)

const (
	serviceName = "dispatch-core"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch core",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	logger.Info("Connected to redis")

	store := poolstore.NewPostgresStore(db)
	planner := routeplan.NewPlanner()
	pricer := pricing.NewCalculator()
	surgeRefresher := pricing.NewSurgeRefresher()

	matcherCfg := matcher.Config{
		ClusterRadiusKm:       cfg.Dispatch.ClusterRadiusKm,
		MaxPoolSize:           cfg.Dispatch.MaxPoolSize,
		MatchTimeout:          cfg.Dispatch.MatchTimeout(),
		DirectionToleranceDeg: cfg.Dispatch.MaxDetourDegrees,
	}
	m := matcher.NewMatcher(matcherCfg, planner, pricer)

	leases := mediator.NewLeaseManager(redisClient.Client, cfg.Dispatch.LeaseTTL())

	dispatchCfg := dispatch.Config{
		PendingBatchLimit:    cfg.Dispatch.PendingBatchLimit,
		FormingPoolMaxAgeMin: cfg.Dispatch.FormingPoolMaxAgeMin,
		LeaseRetry: mediator.LeaseRetryConfig{
			MaxRetries:   cfg.Dispatch.LeaseMaxRetries,
			RetryDelayMs: cfg.Dispatch.LeaseRetryDelayMs,
		},
	}
	service := dispatch.NewService(store, m, pricer, leases, dispatchCfg)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMatchCycleLoop(rootCtx, service, time.Duration(cfg.Dispatch.MatchCycleIntervalMs)*time.Millisecond)
	startSurgeRefreshLoop(rootCtx, store, surgeRefresher, time.Duration(cfg.Dispatch.SurgeRefreshInterval)*time.Millisecond)
	startLeaseSweepLoop(rootCtx, leases, time.Duration(cfg.Dispatch.LeaseSweepIntervalMs)*time.Millisecond)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version, "status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		checkCtx, checkCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer checkCancel()

		if err := db.Ping(checkCtx); err != nil {
			common.ErrorResponse(c, http.StatusServiceUnavailable, "database not ready")
			return
		}
		if err := redisClient.Client.Ping(checkCtx).Err(); err != nil {
			common.ErrorResponse(c, http.StatusServiceUnavailable, "redis not ready")
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "status": "ready"})
	})

	router.GET("/stats", func(c *gin.Context) {
		stats, err := service.Stats(c.Request.Context())
		if err != nil {
			if appErr, ok := err.(*common.AppError); ok {
				common.AppErrorResponse(c, appErr)
				return
			}
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to read pooling stats")
			return
		}
		common.SuccessResponse(c, stats)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down dispatch core...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// startMatchCycleLoop runs RunMatchingCycle on a fixed tick until ctx is
// cancelled, the same periodic-tick pattern the teacher uses for its
// background ETA and surge recalculation workers.
func startMatchCycleLoop(ctx context.Context, service *dispatch.Service, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				formed, err := service.RunMatchingCycle(ctx)
				if err != nil {
					logger.Warn("matching cycle failed", zap.Error(err))
					continue
				}
				if formed > 0 {
					logger.Info("matching cycle formed pools", zap.Int("pools_formed", formed))
				}
			}
		}
	}()
}

// startSurgeRefreshLoop recomputes every zone's surge multiplier on a fixed
// tick from its current demand/supply counters.
func startSurgeRefreshLoop(ctx context.Context, store poolstore.Store, refresher *pricing.SurgeRefresher, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				zones, err := store.ListSurgeZones(ctx)
				if err != nil {
					logger.Warn("failed to list surge zones", zap.Error(err))
					continue
				}
				for _, zone := range zones {
					newMultiplier, tier := refresher.Refresh(zone.ActiveRequests, zone.AvailableDrivers, zone.CurrentMultiplier)
					zone.CurrentMultiplier = newMultiplier
					zone.DemandTier = tier
					zone.UpdatedAt = time.Now()
					if err := store.UpdateSurgeZone(ctx, zone); err != nil {
						logger.Warn("failed to persist refreshed surge zone", zap.String("zone_id", zone.ZoneID), zap.Error(err))
					}
				}
			}
		}
	}()
}

// startLeaseSweepLoop periodically counts outstanding pool leases for
// observability. Redis's own PX expiry already reclaims a stale lease the
// instant it goes past TTL, so this loop has nothing to delete — it just
// logs the current count so a stuck, never-released lease shows up in logs
// well before its TTL would otherwise mask the problem.
func startLeaseSweepLoop(ctx context.Context, leases *mediator.LeaseManager, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := leases.Sweep(ctx)
				if err != nil {
					logger.Warn("lease sweep failed", zap.Error(err))
					continue
				}
				logger.Info("lease sweep", zap.Int("outstanding_leases", count))
			}
		}
	}()
}
