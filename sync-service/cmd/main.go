package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JimmyPiedrahita/netflis/pkg/idgen"
	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/handler"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/hub"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/kafka"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/metrics"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/service"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting sync-service")

	ids, err := idgen.New(cfg.Sync.RoomIDFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid room id format")
	}
	logger.Info().Str("room_id_format", ids.Format()).Msg("room id generator ready")

	var tokens *jwt.Manager
	if cfg.Token.Secret != "" {
		tokens, err = jwt.NewManager(cfg.Token.Secret, cfg.Token.TTL, cfg.Token.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create token manager")
		}
	} else if cfg.Sync.RequireRoomToken {
		logger.Fatal().Msg("require_room_token is set but token.secret is empty")
	}

	// Room lifecycle events are optional; the relay works without Kafka.
	var producer kafka.RoomEventProducer
	if cfg.Kafka.Enabled {
		cp, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, room events disabled")
		} else {
			producer = cp
			defer cp.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	collector := metrics.NewPrometheusCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	syncSvc := service.NewSyncService(cfg.Sync, tokens, ids, producer, collector)

	mux := http.NewServeMux()
	handler.NewWSHandler(wsHub, syncSvc, collector, cfg.Server.AllowedOrigins).RegisterRoutes(mux)
	handler.NewRoomHandler(syncSvc).RegisterRoutes(mux)
	handler.NewHealthHandler(version, wsHub.Count, syncSvc.RoomCount).RegisterRoutes(mux)
	mux.Handle("/metrics", collector.Handler())

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     pkglog.HTTPMiddleware(logger)(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Bool("require_room_token", cfg.Sync.RequireRoomToken).
			Str("change_video_policy", cfg.Sync.ChangeVideoPolicy).
			Msg("sync-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down sync-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// Hijacked websocket connections are not closed by Shutdown.
	cancel()

	logger.Info().Msg("sync-service stopped")
}
