package mux

import (
	"fmt"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
)

// Encode serializes m into one transport unit.
func Encode(m Message) ([]byte, error) {
	if err := checkPayload(m.Payload); err != nil {
		return nil, err
	}
	if err := m.Stream.Validate(); err != nil {
		return nil, protocol.Wrap("message", "stream", err)
	}
	w := wire.NewWriter(64)
	w.U32(EncodeHeader(m.Payload.FrameType(), m.Stream))
	if err := m.Payload.encodePayload(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode parses exactly one transport unit.
func Decode(b []byte) (Message, error) {
	r := wire.NewReader(b)
	head, err := r.U32()
	if err != nil {
		return Message{}, protocol.Wrap("message", "header", err)
	}
	t, stream := DecodeHeader(head)
	p, err := decodePayload(t, r)
	if err != nil {
		return Message{}, err
	}
	return Message{Stream: stream, Payload: p}, nil
}

// EncodeHeader packs a frame type and stream id. The caller validates stream.
func EncodeHeader(t FrameType, stream StreamID) uint32 {
	return uint32(t)<<24 | uint32(stream&MaxStreamID)
}

func DecodeHeader(head uint32) (FrameType, StreamID) {
	return FrameType(head >> 24), StreamID(head) & MaxStreamID
}

func decodePayload(t FrameType, r *wire.Reader) (Payload, error) {
	switch t {
	case FrameAuth:
		var p Auth
		if err := p.decode(r); err != nil {
			return nil, err
		}
		return p, nil
	case FrameGoAway:
		var p GoAway
		if err := p.decode(r); err != nil {
			return nil, err
		}
		return p, nil
	case FrameData:
		var p Data
		if err := p.decode(r); err != nil {
			return nil, err
		}
		return p, nil
	case FrameClose:
		return Close{}, nil
	case FrameReset:
		var p Reset
		if err := p.decode(r); err != nil {
			return nil, err
		}
		return p, nil
	case FramePing:
		return Ping{}, nil
	case FramePong:
		return Pong{}, nil
	default:
		return nil, protocol.Wrap("message", "type", fmt.Errorf("%w: 0x%02x", protocol.ErrUnknownFrameType, uint8(t)))
	}
}

func marshalPayload(p Payload) ([]byte, error) {
	w := wire.NewWriter(32)
	if err := p.encodePayload(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
