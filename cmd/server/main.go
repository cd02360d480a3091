package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Hotseat/internal/adapters/http"
	"github.com/dkeye/Hotseat/internal/adapters/ledger"
	"github.com/dkeye/Hotseat/internal/adapters/nftstorage"
	"github.com/dkeye/Hotseat/internal/adapters/obs"
	signalws "github.com/dkeye/Hotseat/internal/adapters/signal"
	"github.com/dkeye/Hotseat/internal/adapters/sqlite"
	"github.com/dkeye/Hotseat/internal/adapters/video"
	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/app/card"
	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/dkeye/Hotseat/internal/config"
	"github.com/dkeye/Hotseat/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cancel, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config) error {
	creds, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer creds.Close()

	g, ctx := errgroup.WithContext(ctx)

	var led core.Ledger
	switch cfg.Ledger.Driver {
	case "gateway":
		gw := ledger.NewGateway(cfg.Ledger.URL, cfg.Ledger.Token)
		g.Go(func() error { return gw.Run(ctx, cfg.Line.SyncPeriod) })
		led = gw
	case "memory", "":
		log.Warn().Str("module", "main").Msg("using in-memory ledger")
		led = ledger.NewMemory(0)
	default:
		return fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}

	var (
		rec       core.Recorder = obs.Nop{}
		obsClient *obs.Client
		videoHost core.VideoHost
		store     core.ArtifactStore
	)
	if cfg.OBS.Enabled {
		obsClient = obs.New(obs.Config{
			Address:         cfg.OBS.Address,
			Password:        cfg.OBS.Password,
			RecordingFolder: cfg.OBS.RecordingFolder,
			LocalFolder:     cfg.OBS.LocalFolder,
		})
		rec = obsClient
		g.Go(func() error { return obsClient.Run(ctx) })
	}
	if cfg.Video.APIURL != "" {
		videoHost = video.New(video.Config{
			APIURL:   cfg.Video.APIURL,
			MediaURL: cfg.Video.MediaURL,
			Key:      cfg.Video.Key,
			Secret:   cfg.Video.Secret,
		})
	}
	if cfg.Storage.APIURL != "" {
		store = nftstorage.New(cfg.Storage.APIURL, cfg.Storage.Token)
	}

	reg := app.NewRegistry(led, creds)
	line := app.NewWaitlist(led, reg)
	machine := show.NewMachine(show.Config{
		ShowName:     cfg.Show.Name,
		Prefix:       cfg.Control.Prefix,
		PollAttempts: cfg.Show.PollAttempts,
		PollInterval: cfg.Show.PollInterval,
		PendingTTL:   cfg.Show.PendingTTL,
		PilotTimeout: cfg.Show.PilotTimeout,
		CardTimeout:  cfg.Show.CardTimeout,
		VideoTimeout: cfg.Show.VideoTimeout,
		LiveScene:    cfg.Show.LiveScene,
		PostScene:    cfg.Show.PostScene,
	}, show.Deps{
		Registry: reg,
		Line:     line,
		Ledger:   led,
		Recorder: rec,
		Video:    videoHost,
		Store:    store,
		Cards:    card.NewBuilder(cfg.Storage.MediaPath),
	})
	if obsClient != nil {
		obsClient.OnRecordingStopped(machine.HandleRecordingStopped)
	}

	o := orch.New(ctx, reg, line, machine, app.SimplePolicy{SingleIP: cfg.Gateway.SingleIP}, rec)
	o.StartDelay = cfg.Show.StartDelay

	ws := signalws.NewSignalWSController(o, signalws.Config{
		AckGrace:      cfg.Gateway.AckGrace,
		PingPeriod:    cfg.PingPeriod,
		SendBuffer:    cfg.Gateway.SendBuffer,
		ReadLimit:     cfg.ReadLimit,
		ControlSecret: cfg.Control.Secret,
		AttemptLimit:  cfg.Gateway.AttemptLimit,
		AttemptWindow: cfg.Gateway.AttemptWindow,
	})

	r := router.SetupRouter(ctx, cfg, o, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	if err := line.SyncLine(ctx); err != nil {
		log.Warn().Err(err).Str("module", "main").Msg("initial line sync")
	}
	if cfg.Show.Autostart {
		o.Start()
	}

	g.Go(func() error { return line.Watch(ctx, cfg.Line.SyncPeriod) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Hotseat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	// stdin reads cannot be interrupted; the console stays out of the group.
	con := &console{orch: o, obs: obsClient, stop: stop, out: os.Stdout}
	go con.run(ctx, os.Stdin)

	return g.Wait()
}
