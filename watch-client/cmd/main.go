package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/pkg/syncclient"
	"github.com/JimmyPiedrahita/netflis/watch-client/internal/config"
	"github.com/JimmyPiedrahita/netflis/watch-client/internal/console"
	"github.com/JimmyPiedrahita/netflis/watch-client/internal/rooms"
	"github.com/JimmyPiedrahita/netflis/watch-client/internal/surface"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	roomID, token := cfg.Room.ID, cfg.Room.Token
	role := jwt.Role(cfg.Room.Role)
	if roomID == "" {
		grant, err := rooms.NewClient(cfg.Sync.APIURL, cfg.Sync.DialTimeout).Create(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create room")
		}
		roomID, token, role = grant.RoomID, grant.HostToken, jwt.RoleHost
		logger.Info().
			Str(pkglog.FieldRoomID, roomID).
			Str("guest_token", grant.GuestToken).
			Time("expires_at", grant.ExpiresAt).
			Msg("room created, share the id and guest token")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.Sync.DialTimeout)
	conn, err := syncclient.Dial(dialCtx, cfg.Sync.URL, nil)
	cancelDial()
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.Sync.URL).Msg("failed to connect to relay")
	}
	defer conn.Close()

	player := surface.NewVirtual(logger)
	ctrl := syncclient.NewController(player, conn, syncclient.Options{Logger: &logger})

	if err := ctrl.Join(roomID, token, role); err != nil {
		logger.Fatal().Err(err).Msg("failed to join room")
	}
	logger.Info().Str(pkglog.FieldRoomID, roomID).Str("role", string(role)).Msg("joined room")

	if cfg.Video.ID != "" {
		ref := protocol.VideoData{
			ID:       cfg.Video.ID,
			Name:     cfg.Video.Name,
			MimeType: cfg.Video.MimeType,
			Size:     protocol.ByteSize(cfg.Video.Size),
			URL:      console.StreamURL(cfg.Stream.BaseURL, cfg.Video.ID, cfg.Stream.AccessToken),
		}
		if err := ctrl.SelectVideo(ref); err != nil {
			logger.Warn().Err(err).Msg("failed to select video")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return conn.Run(gctx, ctrl.Dispatch)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sync.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return err
				}
			}
		}
	})

	// Stdin cannot be interrupted, so the console runs outside the group
	// and ends the session when it returns. A signal skips leave_room; the
	// relay treats the dropped socket the same way.
	go func() {
		c := console.New(ctrl, player, cfg.Stream.BaseURL, cfg.Stream.AccessToken, logger)
		if err := c.Run(ctx, os.Stdin); err != nil {
			logger.Warn().Err(err).Msg("console stopped")
		}
		if err := ctrl.Leave(); err != nil {
			logger.Debug().Err(err).Msg("leave not sent")
		}
		cancel()
	}()

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("session ended")
	}
	logger.Info().Msg("watch-client stopped")
}
