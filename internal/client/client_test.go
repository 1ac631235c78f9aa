package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/skmux/internal/auth"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/danmuck/skmux/internal/testutil/testlog"
	"github.com/danmuck/skmux/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	testPrivateKey = "DjbdTJXJm3cl352FfOG6wHw8ZmU700NMbbYf/YzGVkY="
	testAccessKey  = "root"
)

var testDevice = uuid.MustParse("6f1c3c1e-9d4b-4c55-8a57-2f36f0e1b2a7")

// startServer authenticates the first frame and hands the session to script.
func startServer(t *testing.T, script func(t *testing.T, peer *transport.Conn)) (string, <-chan error) {
	t.Helper()
	key, err := auth.DecodePrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	validator := auth.StaticKey{AccessKey: testAccessKey, PrivateKey: key}
	authResult := make(chan error, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cfg := transport.DefaultConfig()
		cfg.ReadTimeout = 5 * time.Second
		peer := transport.NewConn(ws, cfg)
		defer peer.Close()

		m, err := peer.Receive()
		if err != nil {
			authResult <- err
			return
		}
		a, ok := m.Payload.(mux.Auth)
		if !ok || m.Stream != 0 {
			authResult <- errors.New("first frame was not auth on stream 0")
			return
		}
		if err := validator.Validate(a); err != nil {
			authResult <- err
			return
		}
		authResult <- nil
		if script != nil {
			script(t, peer)
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http"), authResult
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.AccessKey = testAccessKey
	cfg.PrivateKey = testPrivateKey
	cfg.DeviceUUID = testDevice
	cfg.ReauthInterval = 0
	cfg.PingTimeout = 5 * time.Second
	cfg.Transport.ReadTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitAuth(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		if err != nil {
			t.Fatalf("server rejected auth: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw auth")
	}
}

func TestConnectSendsVerifiedAuthFirst(t *testing.T) {
	testlog.Start(t)
	url, authed := startServer(t, func(t *testing.T, peer *transport.Conn) {
		_, _ = peer.Receive()
	})
	connect(t, url)
	waitAuth(t, authed)
}

func TestReceiveAnswersPingAndReturnsData(t *testing.T) {
	testlog.Start(t)
	pongs := make(chan mux.Message, 1)
	url, authed := startServer(t, func(t *testing.T, peer *transport.Conn) {
		_ = peer.Send(mux.Ping{}.ToFrame(0))
		_ = peer.Send(mux.NewChunk(true, []byte("rows")).ToFrame(1))
		m, err := peer.Receive()
		if err == nil {
			pongs <- m
		}
		_, _ = peer.Receive()
	})
	c := connect(t, url)
	waitAuth(t, authed)

	m, err := c.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	d, ok := m.Payload.(mux.Data)
	if !ok || m.Stream != 1 {
		t.Fatalf("expected data on stream 1, got %#v", m)
	}
	chunk, ok := d.Message.(mux.Chunk)
	if !ok || !chunk.Fin || string(chunk.Payload) != "rows" {
		t.Fatalf("unexpected chunk: %#v", d.Message)
	}

	select {
	case pong := <-pongs:
		if _, ok := pong.Payload.(mux.Pong); !ok || pong.Stream != 0 {
			t.Fatalf("expected pong on stream 0, got %#v", pong)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received pong")
	}
}

func TestPingResolvesOnPong(t *testing.T) {
	testlog.Start(t)
	url, authed := startServer(t, func(t *testing.T, peer *transport.Conn) {
		for {
			m, err := peer.Receive()
			if err != nil {
				return
			}
			if _, ok := m.Payload.(mux.Ping); ok {
				_ = peer.Send(mux.Pong{}.ToFrame(0))
			}
		}
	})
	c := connect(t, url)
	waitAuth(t, authed)

	go func() {
		for {
			if _, err := c.Receive(); err != nil {
				return
			}
		}
	}()

	ok, err := c.Ping(context.Background())
	if err != nil || !ok {
		t.Fatalf("ping ok=%v err=%v", ok, err)
	}
}

func TestServerGoAwayClosesSession(t *testing.T) {
	testlog.Start(t)
	url, authed := startServer(t, func(t *testing.T, peer *transport.Conn) {
		_ = peer.Send(mux.GoAway{Code: mux.CodeAuthFailure, Message: "bad signature"}.ToFrame(0))
		_, _ = peer.Receive()
	})
	c := connect(t, url)
	waitAuth(t, authed)

	_, err := c.Receive()
	var pe *PeerError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PeerError, got %v", err)
	}
	if pe.Code != mux.CodeAuthFailure || pe.Message != "bad signature" {
		t.Fatalf("unexpected peer error: %+v", pe)
	}
	if _, err := c.OpenStream(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after goaway, got %v", err)
	}
	if err := c.Send(mux.Ping{}.ToFrame(0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
}

func TestFailSendsGoAwayThenClose4000(t *testing.T) {
	testlog.Start(t)
	type observed struct {
		goaway mux.GoAway
		code   int
	}
	got := make(chan observed, 1)
	url, authed := startServer(t, func(t *testing.T, peer *transport.Conn) {
		var o observed
		m, err := peer.Receive()
		if err == nil {
			o.goaway, _ = m.Payload.(mux.GoAway)
		}
		_, err = peer.Receive()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			o.code = ce.Code
		}
		got <- o
	})
	c := connect(t, url)
	waitAuth(t, authed)

	for _, want := range []mux.StreamID{1, 3} {
		id, err := c.OpenStream()
		if err != nil || id != want {
			t.Fatalf("open stream got=%d err=%v want=%d", id, err, want)
		}
	}
	if err := c.Fail(mux.CodeRequestFailed, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	select {
	case o := <-got:
		if o.goaway.LastStream != 3 || o.goaway.Code != mux.CodeRequestFailed || o.goaway.Message != "boom" {
			t.Fatalf("unexpected goaway: %+v", o.goaway)
		}
		if o.code != CloseCodeFailed {
			t.Fatalf("close code got=%d want=%d", o.code, CloseCodeFailed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never observed failure")
	}
}

func TestOpenStreamExhaustsAtMaxStreamID(t *testing.T) {
	testlog.Start(t)
	c := &Client{nextStream: uint32(mux.MaxStreamID), stop: make(chan struct{})}
	id, err := c.OpenStream()
	if err != nil || id != mux.MaxStreamID {
		t.Fatalf("got=%d err=%v", id, err)
	}
	if _, err := c.OpenStream(); !errors.Is(err, ErrStreamsExhausted) {
		t.Fatalf("expected ErrStreamsExhausted, got %v", err)
	}
}

func TestLastStreamTracksServerWatermark(t *testing.T) {
	testlog.Start(t)
	c := &Client{nextStream: 1, stop: make(chan struct{})}
	if got := c.LastStream(); got != 0 {
		t.Fatalf("fresh last stream got=%d", got)
	}
	if _, err := c.OpenStream(); err != nil {
		t.Fatalf("open: %v", err)
	}
	c.observeServerStream(8)
	c.observeServerStream(3)
	c.observeServerStream(4)
	if got := c.LastStream(); got != 8 {
		t.Fatalf("last stream got=%d want=8", got)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	valid := DefaultConfig()
	valid.AccessKey = testAccessKey
	valid.PrivateKey = testPrivateKey
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"http scheme":      func(c *Config) { c.URL = "http://localhost:3586" },
		"missing host":     func(c *Config) { c.URL = "ws://" },
		"missing key":      func(c *Config) { c.AccessKey = "" },
		"long key":         func(c *Config) { c.AccessKey = strings.Repeat("k", mux.AccessKeyLen+1) },
		"nul in key":       func(c *Config) { c.AccessKey = "ro\x00t" },
		"bad private key":  func(c *Config) { c.PrivateKey = "!!" },
		"long version":     func(c *Config) { c.ClientVersion = strings.Repeat("v", 256) },
		"negative reauth":  func(c *Config) { c.ReauthInterval = -time.Second },
		"negative timeout": func(c *Config) { c.Transport.HandshakeTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
