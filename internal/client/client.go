package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/skmux/internal/auth"
	"github.com/danmuck/skmux/internal/logging"
	"github.com/danmuck/skmux/internal/observability"
	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/danmuck/skmux/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CloseCodeFailed is the websocket close code sent after a GoAway.
const CloseCodeFailed = 4000

var (
	ErrClosed           = errors.New("client: session closed")
	ErrStreamsExhausted = errors.New("client: stream ids exhausted")
	ErrUnexpectedAuth   = errors.New("client: unexpected auth message from server")
)

// PeerError reports a GoAway received from the server.
type PeerError struct {
	LastStream mux.StreamID
	Code       uint32
	Message    string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("client: server goaway code=%d last_stream=%d: %s", e.Code, e.LastStream, e.Message)
}

type Client struct {
	cfg    Config
	conn   *transport.Conn
	signer *auth.Signer
	logger zerolog.Logger

	mu              sync.Mutex
	nextStream      uint32
	serverWatermark mux.StreamID
	pings           []chan struct{}
	closed          bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Connect dials cfg.URL and sends a signed Auth on stream 0. The server does
// not acknowledge Auth; a rejected login arrives later as a GoAway.
func Connect(ctx context.Context, cfg Config, opts ...auth.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		observability.RecordConnect(false)
		return nil, err
	}
	device := cfg.DeviceUUID
	if device == uuid.Nil {
		device = uuid.New()
	}
	if cfg.ClientVersion != "" {
		opts = append([]auth.Option{auth.WithClientVersion(cfg.ClientVersion)}, opts...)
	}
	signer, err := auth.NewSigner(cfg.PrivateKey, cfg.AccessKey, device, opts...)
	if err != nil {
		observability.RecordConnect(false)
		return nil, err
	}
	conn, err := transport.Dial(ctx, cfg.URL, cfg.Transport, nil)
	if err != nil {
		observability.RecordConnect(false)
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		conn:       conn,
		signer:     signer,
		logger:     logging.Logger("client").With().Str("access_key", cfg.AccessKey).Logger(),
		nextStream: 1,
		stop:       make(chan struct{}),
	}
	if err := c.Reauth(); err != nil {
		_ = conn.Close()
		observability.RecordConnect(false)
		return nil, err
	}
	observability.RecordConnect(true)
	c.logger.Info().Str("url", cfg.URL).Str("device", device.String()).Msg("mux_session_open")

	if cfg.ReauthInterval > 0 {
		c.wg.Add(1)
		go c.reauthLoop(cfg.ReauthInterval)
	}
	return c, nil
}

// Reauth signs a fresh Auth and sends it on stream 0.
func (c *Client) Reauth() error {
	a, err := c.signer.Sign()
	if err != nil {
		return fmt.Errorf("client: sign auth: %w", err)
	}
	return c.send(a.ToFrame(0))
}

func (c *Client) reauthLoop(every time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Reauth(); err != nil {
				c.logger.Warn().Err(err).Msg("mux_reauth_failed")
				if errors.Is(err, ErrClosed) {
					return
				}
			}
		}
	}
}

// OpenStream reserves the next odd stream id.
func (c *Client) OpenStream() (mux.StreamID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if c.nextStream > uint32(mux.MaxStreamID) {
		return 0, ErrStreamsExhausted
	}
	id := mux.StreamID(c.nextStream)
	c.nextStream += 2
	return id, nil
}

// Send writes any message. Streams are not checked against OpenStream.
func (c *Client) Send(m mux.Message) error {
	return c.send(m)
}

// SendData wraps msg in a Data frame on stream.
func (c *Client) SendData(stream mux.StreamID, msg mux.DataMessage) error {
	if msg == nil {
		return protocol.Wrap("data", "message", fmt.Errorf("%w: nil data message", protocol.ErrUnknownFrameType))
	}
	return c.send(msg.ToFrame(stream))
}

// CloseStream half-closes stream.
func (c *Client) CloseStream(stream mux.StreamID) error {
	return c.send(mux.Close{}.ToFrame(stream))
}

// ResetStream aborts stream with an error code.
func (c *Client) ResetStream(stream mux.StreamID, code uint32, msg string) error {
	return c.send(mux.NewReset(code, msg).ToFrame(stream))
}

func (c *Client) send(m mux.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := c.conn.Send(m); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Receive returns the next stream-level message. Connection-level Ping is
// answered with Pong and Pong resolves pending Ping calls; neither is
// returned. A server GoAway closes the session and returns *PeerError.
// Receive must be called from a single goroutine.
func (c *Client) Receive() (mux.Message, error) {
	for {
		m, err := c.conn.Receive()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return mux.Message{}, ErrClosed
			}
			return mux.Message{}, err
		}
		switch p := m.Payload.(type) {
		case mux.Ping:
			if err := c.send(mux.Pong{}.ToFrame(0)); err != nil {
				return mux.Message{}, err
			}
			continue
		case mux.Pong:
			c.resolvePings()
			continue
		case mux.Auth:
			return mux.Message{}, ErrUnexpectedAuth
		case mux.GoAway:
			c.shutdown()
			_ = c.conn.Close()
			return mux.Message{}, &PeerError{LastStream: p.LastStream, Code: p.Code, Message: p.Message}
		case mux.Data:
			c.observeServerStream(m.Stream)
		}
		return m, nil
	}
}

func (c *Client) observeServerStream(stream mux.StreamID) {
	if stream == 0 || stream%2 != 0 {
		return
	}
	c.mu.Lock()
	if stream > c.serverWatermark {
		c.serverWatermark = stream
	}
	c.mu.Unlock()
}

// Ping sends a connection-level Ping and waits for the matching Pong, which
// is delivered by a concurrent Receive loop. It reports false on timeout.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	done := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.pings = append(c.pings, done)
	c.mu.Unlock()

	if err := c.send(mux.Ping{}.ToFrame(0)); err != nil {
		c.dropPing(done)
		return false, err
	}
	timeout := c.cfg.PingTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PingTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true, nil
	case <-timer.C:
		c.dropPing(done)
		return false, nil
	case <-ctx.Done():
		c.dropPing(done)
		return false, ctx.Err()
	}
}

func (c *Client) resolvePings() {
	c.mu.Lock()
	pending := c.pings
	c.pings = nil
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (c *Client) dropPing(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.pings {
		if ch == done {
			c.pings = append(c.pings[:i], c.pings[i+1:]...)
			return
		}
	}
}

// LastStream is the highest stream id either side has opened.
func (c *Client) LastStream() mux.StreamID {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := mux.StreamID(0)
	if c.nextStream > 1 {
		last = mux.StreamID(c.nextStream - 2)
	}
	if c.serverWatermark > last {
		last = c.serverWatermark
	}
	return last
}

// Fail sends GoAway with code and msg, then closes the socket with 4000.
func (c *Client) Fail(code uint32, msg string) error {
	last := c.LastStream()
	if last > mux.MaxStreamID {
		last = mux.MaxStreamID
	}
	g := mux.GoAway{LastStream: last, Code: code, Message: msg}
	sendErr := c.send(g.ToFrame(0))
	c.shutdown()
	closeErr := c.conn.CloseWithCode(CloseCodeFailed, "")
	c.logger.Warn().Uint32("code", code).Str("reason", msg).Msg("mux_session_failed")
	if sendErr != nil && !errors.Is(sendErr, ErrClosed) {
		return sendErr
	}
	return closeErr
}

// Close ends the session without a GoAway.
func (c *Client) Close() error {
	c.shutdown()
	err := c.conn.Close()
	c.logger.Info().Msg("mux_session_closed")
	return err
}

func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.stop)
	})
	c.wg.Wait()
}
