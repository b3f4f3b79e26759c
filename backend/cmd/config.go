package main

import (
	"errors"
	"strconv"

	"github.com/adwski/whiteboard/backend/model"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const envPrefix = "WHITEBOARD_"

var ErrInvalidLimit = errors.New("limits must be positive")

type config struct {
	listenAddr   string
	staticDir    string
	logLevel     string
	roomCapacity int
	historyLimit int
	frameLimit   int
}

// loadEnv reads .env files into the process environment. Variables that are
// already set are not overridden and missing files are ignored.
func loadEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// parseConfig builds the config from command line arguments. Flag defaults
// come from WHITEBOARD_* environment variables.
func parseConfig(args []string, getenv func(string) string) (*config, error) {
	var (
		cfg config
		fs  = pflag.NewFlagSet("whiteboard", pflag.ContinueOnError)
	)
	fs.StringVarP(&cfg.listenAddr, "listen-addr", "a",
		envString(getenv, "LISTEN_ADDR", ":3000"), "listen address for http api, static files and websocket")
	fs.StringVarP(&cfg.staticDir, "static-dir", "s",
		envString(getenv, "STATIC_DIR", ""), "directory with the browser client, empty disables static files")
	fs.StringVarP(&cfg.logLevel, "log-level", "l",
		envString(getenv, "LOG_LEVEL", "info"), "log level")
	fs.IntVar(&cfg.roomCapacity, "room-capacity",
		envInt(getenv, "ROOM_CAPACITY", model.DefaultRoomCapacity), "max concurrent sessions per room")
	fs.IntVar(&cfg.historyLimit, "history-limit",
		envInt(getenv, "HISTORY_LIMIT", model.DefaultHistoryLimit), "max strokes kept per room")
	fs.IntVar(&cfg.frameLimit, "frame-limit",
		envInt(getenv, "FRAME_LIMIT", model.DefaultFrameLimit), "max inbound frame size in bytes")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.roomCapacity <= 0 || cfg.historyLimit <= 0 || cfg.frameLimit <= 0 {
		return nil, ErrInvalidLimit
	}
	return &cfg, nil
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	v, err := strconv.Atoi(getenv(envPrefix + key))
	if err != nil {
		return def
	}
	return v
}
