package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Webinar/internal/adapters/devices"
	router "github.com/dkeye/Webinar/internal/adapters/http"
	"github.com/dkeye/Webinar/internal/adapters/mixer"
	"github.com/dkeye/Webinar/internal/adapters/recorder"
	"github.com/dkeye/Webinar/internal/adapters/rtc"
	sig "github.com/dkeye/Webinar/internal/adapters/signal"
	"github.com/dkeye/Webinar/internal/adapters/storage"
	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/config"
	"github.com/dkeye/Webinar/internal/core"
)

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	devs, err := devices.New(cfg.Recording.Codec)
	if err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	downloader, err := newDownloader(ctx, cfg)
	if err != nil {
		return err
	}

	rooms := app.NewRoomManager()
	policy := app.SimplePolicy{}
	relays := sfu.NewRelayManager()

	builder := &sig.SessionBuilder{
		Devices:           devs,
		Recorders:         recorder.NewFactory(relays, devs),
		Mixer:             mixer.New(),
		Downloader:        downloader,
		Relays:            relays,
		Policy:            policy,
		UpstreamURL:       cfg.Signal.URL,
		WebRTC:            rtc.DefaultWebRTCConfig(),
		RaiseHandCooldown: cfg.RaiseHandCooldown,
		Timeslice:         cfg.Recording.Timeslice,
		RecordWithMic:     cfg.Recording.Mic,
		LeavePath:         cfg.LeavePath,
	}
	ctl := sig.NewSignalWSController(builder, policy, sig.NewRateLimiter(cfg.Signal.RateLimit, cfg.Signal.RateBurst))
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	sessions := app.NewSessionManager(ctl.NewSession, rooms)
	ctl.Sessions = sessions
	builder.OnWebinarEnded = func(sid core.SessionID) {
		if err := sessions.Leave(context.WithoutCancel(ctx), sid); err != nil {
			log.Debug().Err(err).Str("sid", string(sid)).Msg("webinar ended")
		}
	}

	r := router.SetupRouter(ctx, cfg, router.Handlers{Signal: ctl, Sessions: sessions, Rooms: rooms})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Webinar server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		sessions.CloseAll()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited gracefully")
		return nil
	})
	return g.Wait()
}

// newDownloader saves to the recordings dir and, when a bucket is
// configured, uploads to S3 as well.
func newDownloader(ctx context.Context, cfg *config.Config) (core.Downloader, error) {
	sinks := storage.Multi{storage.NewDir(cfg.Recording.Dir)}
	if cfg.Recording.S3.Bucket != "" {
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:    cfg.Recording.S3.Region,
			Bucket:    cfg.Recording.S3.Bucket,
			Directory: cfg.Recording.S3.Directory,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		sinks = append(sinks, s3)
	}
	return sinks, nil
}
