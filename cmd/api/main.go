package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/api"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/config"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/service"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Initialize Layers
	upstream := store.NewClient(store.Options{
		Endpoints:      endpoints(cfg),
		Timeout:        cfg.HTTPTimeout,
		BreakerEnabled: cfg.BreakerEnabled,
		AcceptLanguage: cfg.AcceptLanguage,
		Logger:         logger.Named("upstream"),
	})

	purchases := service.NewPurchases(upstream, service.Options{
		Device: service.DeviceProfile{
			GameVersion:    cfg.GameVersion,
			Platform:       cfg.Platform,
			PlayFabTitleID: cfg.PlayFabTitleID,
		},
		Defaults: service.PurchaseDefaults{
			BuildPlatform: cfg.BuildPlatform,
			ClientID:      cfg.ClientIDPurchase,
			EditionType:   cfg.EditionType,
			TitleID:       cfg.PlayFabTitleID,
		},
		BatchConcurrency: service.DefaultBatchConcurrency,
	}, logger.Named("purchase"))

	handler := api.NewHandler(api.Deps{
		Purchases:   purchases,
		Ratings:     service.NewRatings(purchases.Credentials(), service.NewEntitlementReader(upstream), upstream, logger.Named("rating")),
		Marketplace: service.NewMarketplace(upstream, cfg.EnableMarketplaceAPI),
		StoreConfig: upstream,
		User:        api.UserDefaults{EditionType: cfg.EditionType, BuildPlatform: cfg.BuildPlatform},
		Production:  cfg.IsProduction(),
		Logger:      logger.Named("http"),
	})

	// Router
	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:         cfg.JWTSecret,
		CORSOrigins:       cfg.CORSOrigins,
		PurchaseRateLimit: cfg.PurchaseRateLimit,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func endpoints(cfg *config.Config) store.Endpoints {
	e := store.DefaultEndpoints(cfg.PlayFabTitleID)
	if cfg.AuthBaseURL != "" {
		e.Auth = cfg.AuthBaseURL
	}
	if cfg.EntitlementsBaseURL != "" {
		e.Entitlements = cfg.EntitlementsBaseURL
	}
	if cfg.StoreBaseURL != "" {
		e.Store = cfg.StoreBaseURL
	}
	if cfg.PlayFabBaseURL != "" {
		e.PlayFab = cfg.PlayFabBaseURL
	}
	if cfg.EnableMarketplaceAPI {
		e.Marketplace = cfg.MarketplaceAPIBase
	}
	return e
}

// newLogger builds a JSON logger, or a console logger when LOG_PRETTY is set.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.LogPretty {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true

	var level zapcore.Level
	if err := level.Set(strings.TrimSpace(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
