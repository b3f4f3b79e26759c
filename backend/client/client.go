// Package client connects to a whiteboard room and keeps the connection alive.
//
// A connection closed by the server with a policy violation status (invalid
// room id, room is full) is refused: the client reports it and stops. Any other
// disconnect is treated as a drop and retried with exponential backoff.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adwski/whiteboard/backend/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultMinBackoff   = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
	defaultStablePeriod = 5 * time.Second

	defaultCloseWriteDeadline = time.Second
	defaultWriteDeadline      = 5 * time.Second
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateRetrying
	StateRefused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateRefused:
		return "refused"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	ErrRefused          = errors.New("connection refused by server")
	ErrNotConnected     = errors.New("not connected")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// RefusedError carries the close status the server refused the connection with.
type RefusedError struct {
	Code   int
	Reason string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("%v: %d %s", ErrRefused, e.Code, e.Reason)
}

func (e *RefusedError) Is(target error) bool {
	return target == ErrRefused
}

// Refusal returns the refusal behind err, or nil if err is a plain disconnect.
func Refusal(err error) *RefusedError {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return nil
	}
	if closeErr.Code != model.ClosePolicyViolation {
		return nil
	}
	return &RefusedError{Code: closeErr.Code, Reason: closeErr.Text}
}

type (
	Handler func(msg model.Message)

	Config struct {
		Logger  *zerolog.Logger
		Dialer  *websocket.Dialer
		Handler Handler
		// URL of the whiteboard server, the room query parameter is added by the client.
		URL    string
		RoomID string

		MinBackoff time.Duration
		MaxBackoff time.Duration
		// MaxRetries limits reconnects in a row that did not lead to a stable
		// connection, zero means unlimited.
		MaxRetries int
		// StablePeriod is how long a connection must stay up to reset the backoff
		// and the retry count.
		StablePeriod time.Duration
	}

	Client struct {
		dialer  *websocket.Dialer
		handler Handler
		url     string

		minBackoff   time.Duration
		maxBackoff   time.Duration
		stablePeriod time.Duration
		maxRetries   uint64

		state atomic.Int32
		mx    *sync.Mutex
		conn  *websocket.Conn

		logger zerolog.Logger
	}
)

func New(cfg Config) (*Client, error) {
	if !model.ValidRoomID(cfg.RoomID) {
		return nil, model.ErrInvalidRoomID
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("room", cfg.RoomID)
	u.RawQuery = q.Encode()

	c := &Client{
		dialer:       cfg.Dialer,
		handler:      cfg.Handler,
		url:          u.String(),
		minBackoff:   cfg.MinBackoff,
		maxBackoff:   cfg.MaxBackoff,
		stablePeriod: cfg.StablePeriod,
		mx:           &sync.Mutex{},
		logger: cfg.Logger.With().
			Str("component", "client").
			Str("roomID", cfg.RoomID).
			Logger(),
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.handler == nil {
		c.handler = func(model.Message) {}
	}
	if c.minBackoff <= 0 {
		c.minBackoff = defaultMinBackoff
	}
	if c.maxBackoff < c.minBackoff {
		c.maxBackoff = max(defaultMaxBackoff, c.minBackoff)
	}
	if c.stablePeriod <= 0 {
		c.stablePeriod = defaultStablePeriod
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = uint64(cfg.MaxRetries)
	}
	return c, nil
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Run connects and reconnects until ctx is done, the server refuses the
// connection, or MaxRetries reconnects in a row fail.
func (c *Client) Run(ctx context.Context) error {
	policy := backoff.WithContext(c.retryPolicy(), ctx)
	for retry := 0; ; retry++ {
		c.state.Store(int32(StateConnecting))
		started := time.Now()
		connected, err := c.connection(ctx)

		if ctx.Err() != nil {
			c.state.Store(int32(StateStopped))
			return ctx.Err()
		}
		if refused := Refusal(err); refused != nil {
			c.state.Store(int32(StateRefused))
			c.logger.Warn().Int("code", refused.Code).Str("reason", refused.Reason).Msg("connection refused, not retrying")
			return refused
		}
		if connected && time.Since(started) >= c.stablePeriod {
			// only failures since the last stable connection count
			policy.Reset()
			retry = 0
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			c.state.Store(int32(StateStopped))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Join(ErrRetriesExhausted, err)
		}

		c.state.Store(int32(StateRetrying))
		c.logger.Warn().Err(err).
			Dur("backoff", next).
			Int("retry", retry+1).
			Msg("connection dropped, retrying")

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			c.state.Store(int32(StateStopped))
			return ctx.Err()
		case <-t.C:
		}
	}
}

// retryPolicy doubles the delay from MinBackoff up to MaxBackoff with jitter and never
// gives up on elapsed time alone.
func (c *Client) retryPolicy() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.minBackoff
	expo.MaxInterval = c.maxBackoff
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0
	expo.Reset()
	if c.maxRetries == 0 {
		return expo
	}
	return backoff.WithMaxRetries(expo, c.maxRetries)
}

func (c *Client) connection(ctx context.Context) (bool, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	_ = resp.Body.Close()

	c.mx.Lock()
	c.conn = conn
	c.mx.Unlock()
	c.state.Store(int32(StateConnected))
	c.logger.Debug().Msg("connected")

	stop := make(chan struct{})
	defer func() {
		close(stop)
		c.mx.Lock()
		c.conn = nil
		c.mx.Unlock()
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(model.CloseNormal, ""),
				time.Now().Add(defaultCloseWriteDeadline))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		msg, err := model.DecodeServer(frame)
		if err != nil {
			c.logger.Debug().Err(err).Msg("frame dropped")
			continue
		}
		c.handler(msg)
	}
}

func (c *Client) Draw(stroke model.Stroke) error {
	if !stroke.Valid() {
		return model.ErrInvalidStroke
	}
	return c.send(model.DrawMessage{Stroke: stroke})
}

func (c *Client) Clear() error {
	return c.send(model.ClearMessage{})
}

func (c *Client) send(msg model.Message) error {
	b, err := model.Encode(msg)
	if err != nil {
		return err
	}

	c.mx.Lock()
	defer c.mx.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}
