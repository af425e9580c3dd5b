package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"fairywren/backend/internal/cache"
	"fairywren/backend/internal/config"
	"fairywren/backend/internal/httpapi"
	"fairywren/backend/internal/service"
	"fairywren/backend/internal/storage"
	"fairywren/backend/internal/store"
	"fairywren/backend/internal/store/memory"
	"fairywren/backend/internal/store/postgres"
)

// validateSecurityConfig rejects secrets too short to resist offline
// guessing. Tokens signed with a weak secret are forgeable, and a weak
// pepper lets leaked fingerprints be brute forced across the PIN space.
func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if len(cfg.PINPepper) < 16 {
		return errors.New("PIN_PEPPER must be at least 16 characters")
	}
	return nil
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("[main] WARN: could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[main] config: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("[main] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("[main] postgres: %v", err)
		}
		defer pg.Close()
		repo = pg
		logger.Printf("[main] using postgres store")
	} else {
		repo = memory.NewSeeded(cfg.PINPepper)
		logger.Printf("[main] DATABASE_URL not set, using seeded in-memory store")
	}

	var catalog cache.CatalogCache = cache.NewNoop()
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Printf("[main] WARN: redis unavailable, catalog cache disabled: %v", err)
		} else {
			catalog = redisCache
			logger.Printf("[main] catalog cache on redis %s", cfg.RedisAddr)
		}
	}
	defer func() { _ = catalog.Close() }()

	var objects storage.ObjectStore
	if cfg.StorageURL != "" && cfg.StorageKey != "" {
		objects = storage.NewSupabase(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
		logger.Printf("[main] product images on bucket %q", cfg.StorageBucket)
	} else {
		objects = storage.NewMemory("")
		logger.Printf("[main] STORAGE_URL not set, product images kept in memory")
	}

	svc := service.New(repo, objects, catalog, service.Options{
		PINPepper:          cfg.PINPepper,
		AllowNegativeStock: cfg.AllowNegativeStock,
		StaleBillAfter:     cfg.StaleBillAfter,
		Logger:             logger,
	})

	auth := httpapi.NewAuthManager(repo, cfg.PINPepper, cfg.JWTSecret, cfg.TokenTTL)
	server := httpapi.NewServer(svc, auth, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		BodyLimitBytes: cfg.BodyLimitBytes,
		Logger:         logger,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 30m", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.LogStaleOpenBills(sweepCtx)
	}); err != nil {
		logger.Fatalf("[main] cron: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.TimeoutHandler(server.Handler(), cfg.RequestTimeout, `{"error": "Request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[main] listening on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[main] server: %v", err)
		}
	case <-ctx.Done():
		logger.Printf("[main] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[main] WARN: shutdown: %v", err)
		}
	}
}
