// Package protocol owns the MUX wire contract shared by every codec package.
//
// Ownership boundary:
// - error taxonomy surfaced by decoders and encoders
// - wire: fixed-width and length-prefixed field primitives
// - mux: frame envelope, control payloads, data sub-messages
package protocol
