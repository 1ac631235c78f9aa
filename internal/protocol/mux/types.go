package mux

import (
	"encoding"
	"fmt"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
)

// HeaderLen is the size of the type/stream header that opens every message.
const HeaderLen = 4

// FrameType is the top byte of the MUX header.
type FrameType uint8

const (
	FrameAuth   FrameType = 0x0
	FrameGoAway FrameType = 0x1
	FrameData   FrameType = 0x2
	FrameClose  FrameType = 0x3
	FrameReset  FrameType = 0x4
	FramePing   FrameType = 0x5
	FramePong   FrameType = 0x6
)

func (t FrameType) String() string {
	switch t {
	case FrameAuth:
		return "auth"
	case FrameGoAway:
		return "goaway"
	case FrameData:
		return "data"
	case FrameClose:
		return "close"
	case FrameReset:
		return "reset"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	default:
		return fmt.Sprintf("frame(0x%02x)", uint8(t))
	}
}

// DataType is the sub-tag that opens a Data frame body.
type DataType uint8

const (
	DataChunk               DataType = 0x0
	DataQuery               DataType = 0x1
	DataRequestTail         DataType = 0x2
	DataPushPromise         DataType = 0x3
	DataSchema              DataType = 0x4
	DataCreateDB            DataType = 0x5
	DataCreateUser          DataType = 0x6
	DataRequestTailBatch    DataType = 0x7
	DataCredentialsResponse DataType = 0x80
)

func (t DataType) String() string {
	switch t {
	case DataChunk:
		return "chunk"
	case DataQuery:
		return "query"
	case DataRequestTail:
		return "request_tail"
	case DataPushPromise:
		return "push_promise"
	case DataSchema:
		return "schema"
	case DataCreateDB:
		return "create_db"
	case DataCreateUser:
		return "create_user"
	case DataRequestTailBatch:
		return "request_tail_batch"
	case DataCredentialsResponse:
		return "credentials_response"
	default:
		return fmt.Sprintf("data(0x%02x)", uint8(t))
	}
}

// StreamID is a 24-bit stream identifier.
type StreamID uint32

// MaxStreamID is the largest id the header can carry.
const MaxStreamID StreamID = 1<<24 - 1

// NewStreamID validates v against the 24-bit stream id range.
func NewStreamID(v uint32) (StreamID, error) {
	s := StreamID(v)
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return s, nil
}

func (s StreamID) Validate() error {
	if s > MaxStreamID {
		return fmt.Errorf("%w: %d > %d", protocol.ErrStreamIDRange, uint32(s), uint32(MaxStreamID))
	}
	return nil
}

// Message is one MUX transport unit.
type Message struct {
	Stream  StreamID
	Payload Payload
}

// Payload is implemented by Auth, GoAway, Data, Close, Reset, Ping and Pong.
type Payload interface {
	encoding.BinaryMarshaler
	FrameType() FrameType
	encodePayload(w *wire.Writer) error
}

// DataMessage is implemented by the orchestration messages carried in a
// Data frame.
type DataMessage interface {
	encoding.BinaryMarshaler
	DataType() DataType
	ToFrame(stream StreamID) Message
	encodeData(w *wire.Writer) error
}

// checkPayload admits only the value types of the closed payload set, so a
// pointer never encodes into a frame that decodes as a different value.
func checkPayload(p Payload) error {
	switch p.(type) {
	case Auth, GoAway, Data, Close, Reset, Ping, Pong:
		return nil
	case nil:
		return protocol.Wrap("message", "payload", fmt.Errorf("%w: nil payload", protocol.ErrUnknownFrameType))
	default:
		return protocol.Wrap("message", "payload", fmt.Errorf("%w: %T is not a payload value", protocol.ErrUnknownFrameType, p))
	}
}

func checkDataMessage(m DataMessage) error {
	switch m.(type) {
	case Chunk, Query, RequestTail, PushPromise, Schema, CreateDB, CreateUser, RequestTailBatch, CredentialsResponse:
		return nil
	case nil:
		return protocol.Wrap("data", "message", fmt.Errorf("%w: nil data message", protocol.ErrUnknownFrameType))
	default:
		return protocol.Wrap("data", "message", fmt.Errorf("%w: %T is not a data message value", protocol.ErrUnknownFrameType, m))
	}
}
