package mux

import (
	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
)

// GoAway codes the peer is known to send.
const (
	CodeNone          uint32 = 0
	CodeAuthFailure   uint32 = 1002
	CodeRequestFailed uint32 = 1004
)

// GoAway tears down the whole connection.
type GoAway struct {
	LastStream StreamID
	Code       uint32
	Message    string
}

func NewGoAway(lastStream StreamID, code uint32, msg string) (GoAway, error) {
	if err := lastStream.Validate(); err != nil {
		return GoAway{}, protocol.Wrap("goaway", "last_stream", err)
	}
	return GoAway{LastStream: lastStream, Code: code, Message: msg}, nil
}

func (GoAway) FrameType() FrameType { return FrameGoAway }

func (g GoAway) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: g}
}

func (g GoAway) MarshalBinary() ([]byte, error) { return marshalPayload(g) }

func (g *GoAway) UnmarshalBinary(b []byte) error {
	return g.decode(wire.NewReader(b))
}

func (g GoAway) encodePayload(w *wire.Writer) error {
	if err := g.LastStream.Validate(); err != nil {
		return protocol.Wrap("goaway", "last_stream", err)
	}
	w.U32(uint32(g.LastStream))
	w.U32(g.Code)
	return protocol.Wrap("goaway", "msg", w.String32(g.Message))
}

func (g *GoAway) decode(r *wire.Reader) error {
	last, err := r.U32()
	if err != nil {
		return protocol.Wrap("goaway", "last_stream", err)
	}
	code, err := r.U32()
	if err != nil {
		return protocol.Wrap("goaway", "code", err)
	}
	msg, err := r.String32()
	if err != nil {
		return protocol.Wrap("goaway", "msg", err)
	}
	*g = GoAway{LastStream: StreamID(last) & MaxStreamID, Code: code, Message: msg}
	return nil
}

// Reset aborts one stream.
type Reset struct {
	Code    uint32
	Message string
}

func NewReset(code uint32, msg string) Reset {
	return Reset{Code: code, Message: msg}
}

func (Reset) FrameType() FrameType { return FrameReset }

func (m Reset) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: m}
}

func (m Reset) MarshalBinary() ([]byte, error) { return marshalPayload(m) }

func (m *Reset) UnmarshalBinary(b []byte) error {
	return m.decode(wire.NewReader(b))
}

func (m Reset) encodePayload(w *wire.Writer) error {
	w.U32(m.Code)
	return protocol.Wrap("reset", "msg", w.String32(m.Message))
}

func (m *Reset) decode(r *wire.Reader) error {
	code, err := r.U32()
	if err != nil {
		return protocol.Wrap("reset", "code", err)
	}
	msg, err := r.String32()
	if err != nil {
		return protocol.Wrap("reset", "msg", err)
	}
	*m = Reset{Code: code, Message: msg}
	return nil
}

// Close, Ping and Pong have empty bodies. Trailing bytes are ignored on
// decode, the same as every other fixed layout.

// Close half-closes one stream.
type Close struct{}

func (Close) FrameType() FrameType { return FrameClose }

func (c Close) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: c}
}

func (Close) MarshalBinary() ([]byte, error) { return []byte{}, nil }

func (*Close) UnmarshalBinary([]byte) error { return nil }

func (Close) encodePayload(*wire.Writer) error { return nil }

type Ping struct{}

func (Ping) FrameType() FrameType { return FramePing }

func (p Ping) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: p}
}

func (Ping) MarshalBinary() ([]byte, error) { return []byte{}, nil }

func (*Ping) UnmarshalBinary([]byte) error { return nil }

func (Ping) encodePayload(*wire.Writer) error { return nil }

type Pong struct{}

func (Pong) FrameType() FrameType { return FramePong }

func (p Pong) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: p}
}

func (Pong) MarshalBinary() ([]byte, error) { return []byte{}, nil }

func (*Pong) UnmarshalBinary([]byte) error { return nil }

func (Pong) encodePayload(*wire.Writer) error { return nil }
