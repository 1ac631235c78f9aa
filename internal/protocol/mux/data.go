package mux

import (
	"fmt"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
)

// Data carries one orchestration message on a stream.
type Data struct {
	Message DataMessage
}

func (Data) FrameType() FrameType { return FrameData }

func (d Data) ToFrame(stream StreamID) Message {
	return Message{Stream: stream, Payload: d}
}

func (d Data) MarshalBinary() ([]byte, error) { return marshalPayload(d) }

func (d *Data) UnmarshalBinary(b []byte) error {
	return d.decode(wire.NewReader(b))
}

func (d Data) encodePayload(w *wire.Writer) error {
	if err := checkDataMessage(d.Message); err != nil {
		return err
	}
	w.U8(uint8(d.Message.DataType()))
	return d.Message.encodeData(w)
}

func (d *Data) decode(r *wire.Reader) error {
	tag, err := r.U8()
	if err != nil {
		return protocol.Wrap("data", "type", err)
	}
	msg, err := decodeDataMessage(DataType(tag), r)
	if err != nil {
		return err
	}
	d.Message = msg
	return nil
}

func decodeDataMessage(t DataType, r *wire.Reader) (DataMessage, error) {
	var (
		msg DataMessage
		err error
	)
	switch t {
	case DataChunk:
		var m Chunk
		err = m.decode(r)
		msg = m
	case DataQuery:
		var m Query
		err = m.decode(r)
		msg = m
	case DataRequestTail:
		var m RequestTail
		err = m.decode(r)
		msg = m
	case DataPushPromise:
		var m PushPromise
		err = m.decode(r)
		msg = m
	case DataSchema:
		var m Schema
		err = m.decode(r)
		msg = m
	case DataCreateDB:
		var m CreateDB
		err = m.decode(r)
		msg = m
	case DataCreateUser:
		msg = CreateUser{}
	case DataRequestTailBatch:
		var m RequestTailBatch
		err = m.decode(r)
		msg = m
	case DataCredentialsResponse:
		var m CredentialsResponse
		err = m.decode(r)
		msg = m
	default:
		return nil, protocol.Wrap("data", "type", fmt.Errorf("%w: data type 0x%02x", protocol.ErrUnknownFrameType, uint8(t)))
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func marshalData(m DataMessage) ([]byte, error) {
	w := wire.NewWriter(32)
	if err := m.encodeData(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
