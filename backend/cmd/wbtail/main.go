// wbtail joins a whiteboard room and logs every message relayed to it.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adwski/whiteboard/backend/client"
	"github.com/adwski/whiteboard/backend/model"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("wbtail", pflag.ContinueOnError)

	var (
		serverURL  = fs.StringP("url", "u", "ws://localhost:3000/", "whiteboard server url")
		roomID     = fs.StringP("room", "r", "", "room id to follow")
		clearRoom  = fs.Bool("clear", false, "clear the room once connected")
		maxRetries = fs.Int("max-retries", 0, "give up after this many reconnects in a row fail, 0 retries forever")
		logLevel   = fs.StringP("log-level", "l", "info", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	cl, err := client.New(client.Config{
		Logger:     &logger,
		URL:        *serverURL,
		RoomID:     *roomID,
		MaxRetries: *maxRetries,
		Handler: func(msg model.Message) {
			logMessage(&logger, msg)
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *clearRoom {
		go func() {
			if !waitConnected(ctx, cl) {
				return
			}
			if err := cl.Clear(); err != nil {
				logger.Error().Err(err).Msg("failed to clear room")
			}
		}()
	}

	err = cl.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info().Msg("stopped")
	case errors.Is(err, client.ErrRefused):
		logger.Fatal().Err(err).Msg("server refused connection")
	default:
		logger.Fatal().Err(err).Msg("connection lost")
	}
}

func logMessage(logger *zerolog.Logger, msg model.Message) {
	switch m := msg.(type) {
	case model.DrawMessage:
		logger.Info().
			Str("type", string(m.Type())).
			Str("color", m.Stroke.Color).
			Float64("width", m.Stroke.Width).
			Int("points", len(m.Stroke.Points)).
			Msg("stroke")
	case model.HistoryMessage:
		logger.Info().Str("type", string(m.Type())).Int("strokes", len(m.Strokes)).Msg("history")
	default:
		logger.Info().Str("type", string(msg.Type())).Msg("message")
	}
}

func waitConnected(ctx context.Context, cl *client.Client) bool {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			if cl.State() == client.StateConnected {
				return true
			}
		}
	}
}
