// Package transport carries MUX messages over a websocket connection.
//
// One binary websocket message holds exactly one encoded MUX message. Conn
// serializes writers and expects a single reader goroutine.
package transport
