package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/danmuck/skmux/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// startPeer runs handle for every accepted websocket and returns its ws:// URL.
func startPeer(t *testing.T, handle func(ws *websocket.Conn)) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := DefaultConfig()
	cfg.ReadTimeout = 5 * time.Second
	c, err := Dial(ctx, url, cfg, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func echo(ws *websocket.Conn) {
	for {
		kind, b, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := ws.WriteMessage(kind, b); err != nil {
			return
		}
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	testlog.Start(t)
	c := dial(t, startPeer(t, echo))

	want := []mux.Message{
		mux.Ping{}.ToFrame(0),
		mux.Query{Format: mux.QueryJSON, Query: "SELECT 1"}.ToFrame(1),
		mux.NewCreateDB("metrics").ToFrame(3),
	}
	for _, m := range want {
		if err := c.Send(m); err != nil {
			t.Fatalf("send %v: %v", m.Payload.FrameType(), err)
		}
	}
	for i, m := range want {
		got, err := c.Receive()
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Fatalf("receive %d: got=%#v want=%#v", i, got, m)
		}
	}
}

func TestReceiveRejectsTextMessage(t *testing.T) {
	testlog.Start(t)
	c := dial(t, startPeer(t, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("hello"))
		_, _, _ = ws.ReadMessage()
	}))

	if _, err := c.Receive(); !errors.Is(err, ErrNonBinaryMessage) {
		t.Fatalf("expected ErrNonBinaryMessage, got %v", err)
	}
}

func TestReceiveSurfacesDecodeErrors(t *testing.T) {
	testlog.Start(t)
	c := dial(t, startPeer(t, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x09, 0x00, 0x00, 0x01})
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x05, 0x00})
		_, _, _ = ws.ReadMessage()
	}))

	if _, err := c.Receive(); !errors.Is(err, protocol.ErrUnknownFrameType) {
		t.Fatalf("expected ErrUnknownFrameType, got %v", err)
	}
	if _, err := c.Receive(); !errors.Is(err, protocol.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestSendRejectsInvalidMessageWithoutWriting(t *testing.T) {
	testlog.Start(t)
	c := dial(t, startPeer(t, echo))

	err := c.Send(mux.Message{Stream: mux.MaxStreamID + 1, Payload: mux.Ping{}})
	if !errors.Is(err, protocol.ErrStreamIDRange) {
		t.Fatalf("expected ErrStreamIDRange, got %v", err)
	}
	if err := c.Send(mux.Pong{}.ToFrame(0)); err != nil {
		t.Fatalf("send after rejected message: %v", err)
	}
	got, err := c.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, ok := got.Payload.(mux.Pong); !ok {
		t.Fatalf("expected pong, got %#v", got.Payload)
	}
}

func TestCloseWithCodeReachesPeer(t *testing.T) {
	testlog.Start(t)
	codes := make(chan int, 1)
	c := dial(t, startPeer(t, func(ws *websocket.Conn) {
		_, _, err := ws.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			codes <- ce.Code
			return
		}
		codes <- -1
	}))

	if err := c.CloseWithCode(4000, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case code := <-codes:
		if code != 4000 {
			t.Fatalf("peer saw close code %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("peer never observed close")
	}
	if err := c.Send(mux.Ping{}.ToFrame(0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDialRejectsBadConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.WriteTimeout = -time.Second
	if _, err := Dial(context.Background(), "ws://127.0.0.1:1", cfg, nil); err == nil {
		t.Fatal("expected config error")
	}
}
