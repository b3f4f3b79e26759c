package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/whiteboard/backend/model"
	httpServer "github.com/adwski/whiteboard/backend/server/http"
	websocketServer "github.com/adwski/whiteboard/backend/server/websocket"
	"github.com/adwski/whiteboard/backend/service"
	store "github.com/adwski/whiteboard/backend/storage/memory"
	sw "github.com/adwski/whiteboard/backend/switch"
	"github.com/rs/zerolog"
)

// transport read cap relative to the protocol frame limit
const readLimitFactor = 8

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	loadEnv(".env")
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(cfg.logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	registry := store.NewRegistry(store.Config{
		Dispatcher:   sw.NewSwitch(&logger),
		RoomCapacity: cfg.roomCapacity,
		HistoryLimit: cfg.historyLimit,
	})
	svc := service.NewService(service.Config{
		Registry:   registry,
		Logger:     &logger,
		FrameLimit: cfg.frameLimit,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:         &logger,
		SessionService: svc,
		ReadLimit:      int64(max(cfg.frameLimit*readLimitFactor, 4*model.DefaultFrameLimit)),
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:           &logger,
		RoomService:      svc,
		WebsocketHandler: wsSrv,
		StaticDir:        cfg.staticDir,
		ListenAddr:       cfg.listenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(1)
	go httpSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
