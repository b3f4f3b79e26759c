package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adwski/whiteboard/backend/model"
	"github.com/adwski/whiteboard/backend/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	RoomService interface {
		Stats() (rooms, sessions int)
		RoomInfo(roomID string) (*service.RoomInfo, error)
	}

	WebsocketHandler interface {
		http.Handler
		Shutdown(ctx context.Context) error
	}

	GenericResponse struct {
		Message string      `json:"message,omitempty"`
		Error   string      `json:"error,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	StatsResponse struct {
		Rooms    int `json:"rooms"`
		Sessions int `json:"sessions"`
	}

	Server struct {
		logger zerolog.Logger
		svc    RoomService
		ws     WebsocketHandler
		static http.Handler
		*http.Server
	}

	Config struct {
		Logger           *zerolog.Logger
		RoomService      RoomService
		WebsocketHandler WebsocketHandler
		// StaticDir holds the browser client. Nothing is served on / when it is empty.
		StaticDir  string
		ListenAddr string
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:    cfg.RoomService,
		ws:     cfg.WebsocketHandler,
	}
	if cfg.StaticDir != "" {
		srv.static = http.FileServer(http.Dir(cfg.StaticDir))
	}

	r := http.NewServeMux()
	r.HandleFunc("GET /api/health", srv.health)
	r.HandleFunc("GET /api/stats", srv.stats)
	r.HandleFunc("GET /api/rooms/{roomID}", srv.roomInfo)
	r.HandleFunc("OPTIONS /", corsHandler)
	r.Handle("GET /ws", srv.ws)
	r.HandleFunc("/", srv.root)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// root serves websocket upgrades on / next to the static client, the browser
// connects to the page's own host with ?room=ID.
func (srv *Server) root(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		srv.ws.ServeHTTP(w, r)
		return
	}
	if srv.static == nil {
		http.NotFound(w, r)
		return
	}
	srv.static.ServeHTTP(w, r)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, &srv.logger)
}

func (srv *Server) stats(w http.ResponseWriter, _ *http.Request) {
	var resp StatsResponse
	resp.Rooms, resp.Sessions = srv.svc.Stats()
	writeJSON(w, http.StatusOK, &resp, &srv.logger)
}

func (srv *Server) roomInfo(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")

	info, err := srv.svc.RoomInfo(roomID)
	switch {
	case errors.Is(err, model.ErrInvalidRoomID):
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: err.Error()}, &srv.logger)
	case errors.Is(err, service.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, &GenericResponse{Error: err.Error()}, &srv.logger)
	case err != nil:
		srv.logger.Error().Err(err).Str("roomID", roomID).Msg("failed to get room info")
		w.WriteHeader(http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, info, &srv.logger)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *zerolog.Logger) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
		// hijacked websocket connections are not tracked by http.Server
		if err := srv.ws.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("websocket sessions shutdown failed")
		}
	}
}
