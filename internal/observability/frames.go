package observability

import (
	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/rs/zerolog"
)

// ObserveFrame logs one frame and records it in the frame counters.
// Connection-level failures (goaway, reset) log at warn.
func ObserveFrame(logger zerolog.Logger, direction string, m mux.Message, size int) {
	frameType := "none"
	dataType := ""
	if m.Payload != nil {
		frameType = m.Payload.FrameType().String()
	}
	if d, ok := m.Payload.(mux.Data); ok && d.Message != nil {
		dataType = d.Message.DataType().String()
	}
	RecordFrame(direction, frameType, dataType, size)

	event := logger.Debug()
	switch p := m.Payload.(type) {
	case mux.GoAway:
		event = logger.Warn().Uint32("code", p.Code).Str("reason", p.Message).Uint32("last_stream", uint32(p.LastStream))
	case mux.Reset:
		event = logger.Warn().Uint32("code", p.Code).Str("reason", p.Message)
	}
	event.
		Str("direction", direction).
		Str("type", frameType).
		Str("data_type", dataType).
		Uint32("stream", uint32(m.Stream)).
		Int("bytes", size).
		Msg("mux_frame")
}

// ObserveCodecError logs a failed encode/decode and counts it by kind.
func ObserveCodecError(logger zerolog.Logger, direction string, err error, size int) {
	RecordCodecError(direction, err)
	logger.Warn().
		Err(err).
		Str("direction", direction).
		Str("kind", protocol.KindLabel(err)).
		Int("bytes", size).
		Msg("mux_codec_error")
}
