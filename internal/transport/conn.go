package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/skmux/internal/logging"
	"github.com/danmuck/skmux/internal/observability"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrNonBinaryMessage is returned when the peer sends a text frame.
var ErrNonBinaryMessage = errors.New("transport: non-binary websocket message")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: connection closed")

type Conn struct {
	ws     *websocket.Conn
	cfg    Config
	logger zerolog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a websocket to rawURL and wraps it as a MUX connection.
func Dial(ctx context.Context, rawURL string, cfg Config, header http.Header) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("transport: dial %s: %w", rawURL, err)
	}
	c := NewConn(ws, cfg)
	c.logger.Debug().Str("url", rawURL).Msg("websocket_connected")
	return c, nil
}

// NewConn wraps an established websocket, client or server side.
func NewConn(ws *websocket.Conn, cfg Config) *Conn {
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}
	return &Conn{
		ws:     ws,
		cfg:    cfg,
		logger: logging.Logger("transport").With().Str("remote", ws.RemoteAddr().String()).Logger(),
	}
}

// Send encodes m and writes it as one binary message.
func (c *Conn) Send(m mux.Message) error {
	b, err := mux.Encode(m)
	if err != nil {
		observability.ObserveCodecError(c.logger, observability.DirectionOut, err, 0)
		return err
	}

	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	observability.ObserveFrame(c.logger, observability.DirectionOut, m, len(b))
	return nil
}

// Receive blocks for the next binary message and decodes it. Websocket close
// errors are returned unwrapped so callers can use websocket.IsCloseError.
func (c *Conn) Receive() (mux.Message, error) {
	if c.cfg.ReadTimeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return mux.Message{}, err
		}
	}
	kind, b, err := c.ws.ReadMessage()
	if err != nil {
		return mux.Message{}, err
	}
	if kind != websocket.BinaryMessage {
		return mux.Message{}, fmt.Errorf("%w: type %d", ErrNonBinaryMessage, kind)
	}
	m, err := mux.Decode(b)
	if err != nil {
		observability.ObserveCodecError(c.logger, observability.DirectionIn, err, len(b))
		return mux.Message{}, err
	}
	observability.ObserveFrame(c.logger, observability.DirectionIn, m, len(b))
	return m, nil
}

// CloseWithCode sends a websocket close control frame then closes the socket.
func (c *Conn) CloseWithCode(code int, text string) error {
	if !c.closed.Load() {
		deadline := time.Now().Add(time.Second)
		if c.cfg.WriteTimeout > 0 {
			deadline = time.Now().Add(c.cfg.WriteTimeout)
		}
		msg := websocket.FormatCloseMessage(code, text)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("websocket_close_frame_failed")
		}
	}
	return c.Close()
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.ws.Close()
		c.logger.Debug().Msg("websocket_closed")
	})
	return c.closeErr
}
