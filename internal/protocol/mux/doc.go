// Package mux encodes and decodes MUX messages.
//
// A MUX message is one transport unit: a 4-byte big-endian header carrying
// the frame type in its top byte and a 24-bit stream id below it, followed
// by the frame payload. Data frames carry a second one-byte sub-tag that
// selects the orchestration message inside.
//
// Payload and DataMessage are sealed: only the types in this package satisfy
// them, and Decode rejects every tag outside the known set.
package mux
