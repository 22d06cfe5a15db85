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

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/cache"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/handler"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/metrics"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/origin"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/service"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("version", version).Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).
		Str("origin", cfg.Origin.BaseURL).Str("cache_driver", cfg.Cache.Driver).
		Msg("starting stream service")

	sizes, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Msg("size cache unavailable, falling back to memory")
		sizes = cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}
	defer sizes.Close()

	collector := metrics.NewPrometheusCollector()
	originClient := origin.NewClient(cfg.Origin, nil, collector)
	streamSvc := service.NewStreamService(originClient, sizes, cfg.Stream, collector)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHealthHandler(version).RegisterRoutes(r)
	handler.NewStreamHandler(streamSvc).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(collector.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("stream service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down stream service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("stream service stopped")
}
