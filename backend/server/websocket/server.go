package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/whiteboard/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultWebsocketReadBufferSize     = 1024
	defaultWebsocketWriteBufferSize    = 4096
	defaultWebSocketReadLimit          = 4096
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	defaultSendQueueSize = 256

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 20 * time.Second
	defaultPongWait     = 30 * time.Second

	queryParamRoom = "room"
	reasonShutdown = "Server is shutting down"
)

type (
	SessionService interface {
		Join(ses model.Session) error
		HandleFrame(ses model.Session, frame []byte) error
		Leave(ses model.Session)
	}

	Config struct {
		Logger         *zerolog.Logger
		SessionService SessionService
		// ReadLimit is a transport level cap, frames above it are refused by the websocket reader.
		ReadLimit     int64
		SendQueueSize int
	}

	// Server upgrades whiteboard connections and runs one session per connection.
	Server struct {
		svc       SessionService
		ws        *websocket.Upgrader
		readLimit int64
		queueSize int

		ctx    context.Context
		cancel context.CancelFunc
		mx     *sync.Mutex
		wg     *sync.WaitGroup

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		logger:    cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:       cfg.SessionService,
		readLimit: cfg.ReadLimit,
		queueSize: cfg.SendQueueSize,
		ctx:       ctx,
		cancel:    cancel,
		mx:        &sync.Mutex{},
		wg:        &sync.WaitGroup{},
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
	if srv.readLimit <= 0 {
		srv.readLimit = defaultWebSocketReadLimit
	}
	if srv.queueSize <= 0 {
		srv.queueSize = defaultSendQueueSize
	}
	return srv
}

// Shutdown closes every active session with a going away status and waits for cleanup.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mx.Lock()
	srv.cancel()
	srv.mx.Unlock()

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get(queryParamRoom)

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ses := newSession(uuid.NewString(), roomID, conn, srv.queueSize)
	logger := srv.logger.With().
		Str("roomID", roomID).
		Str("sessionID", ses.ID()).
		Logger()

	srv.mx.Lock()
	if srv.ctx.Err() != nil {
		srv.mx.Unlock()
		webSocketCloser(conn, websocket.CloseGoingAway, reasonShutdown, &logger)
		return
	}
	srv.wg.Add(1)
	srv.mx.Unlock()

	if err = srv.svc.Join(ses); err != nil {
		code, reason := closeStatus(err)
		logger.Warn().Err(err).Int("code", code).Msg("session refused")
		ses.state.Store(stateClosed)
		webSocketCloser(conn, code, reason, &logger)
		srv.wg.Done()
		return
	}
	logger.Debug().Msg("session started")

	go srv.handleWSConn(ses, &logger)
}

func (srv *Server) handleWSConn(ses *session, logger *zerolog.Logger) {
	defer srv.wg.Done()

	var (
		wg          = &sync.WaitGroup{}
		ctx, cancel = context.WithCancel(srv.ctx)
	)
	defer cancel()

	wg.Add(2)
	go func() {
		webSocketReceiver(ctx, wg, ses, srv.svc, srv.readLimit, logger)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, ses, logger)
		cancel()
		// unblock the receiver
		_ = ses.conn.SetReadDeadline(time.Now())
	}()

	wg.Wait()
	if srv.ctx.Err() != nil {
		ses.closeWith(websocket.CloseGoingAway, reasonShutdown)
	}
	ses.closeWith(model.CloseNormal, "")

	_ = ses.leave(func() {
		srv.svc.Leave(ses)
	})
	webSocketCloser(ses.conn, ses.closeCode, ses.closeReason, logger)
	logger.Debug().Int("code", ses.closeCode).Msg("session ended")
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	ses *session,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
	conn := ses.conn
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case frame := <-ses.tx:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := conn.NextWriter(websocket.TextMessage)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket text writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(frame)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing message")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

func webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	ses *session,
	svc SessionService,
	readLimit int64,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn := ses.conn
	conn.SetReadLimit(readLimit)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, frame, wsErr := conn.ReadMessage()
			if wsErr != nil {
				switch {
				case errors.Is(wsErr, websocket.ErrReadLimit):
					logger.Warn().Msg("frame exceeds transport read limit")
					ses.closeWith(model.CloseMessageTooBig, model.ReasonMessageTooLarge)
				case websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived):
					logger.Debug().Err(wsErr).Msg("connection closed")
				case ctx.Err() != nil:
					logger.Trace().Err(wsErr).Msg("receive interrupted")
				default:
					logger.Warn().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}

			if wsErr = svc.HandleFrame(ses, frame); wsErr != nil {
				code, reason := closeStatus(wsErr)
				logger.Warn().Err(wsErr).Int("size", len(frame)).Msg("closing session")
				ses.closeWith(code, reason)
				break RecvLoop
			}
		}
	}
}

func webSocketCloser(conn *websocket.Conn, code int, reason string, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		if wsErr != nil && !errors.Is(wsErr, websocket.ErrCloseSent) {
			logger.Debug().Err(wsErr).Msg("failed to send close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}

func closeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidRoomID):
		return model.ClosePolicyViolation, model.ReasonInvalidRoom
	case errors.Is(err, model.ErrRoomIsFull):
		return model.ClosePolicyViolation, model.ReasonRoomFull
	case errors.Is(err, model.ErrFrameTooLarge):
		return model.CloseMessageTooBig, model.ReasonMessageTooLarge
	default:
		return websocket.CloseInternalServerErr, "Internal server error"
	}
}
