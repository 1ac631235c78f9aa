// Package client runs one authenticated MUX session over a websocket.
//
// The client allocates odd stream ids starting at 1; even ids belong to the
// server. Stream 0 carries connection-level traffic: Auth, Ping/Pong and
// GoAway.
package client
