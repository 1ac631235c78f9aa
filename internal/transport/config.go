package transport

import (
	"fmt"
	"time"
)

// Config defines websocket dial and I/O limits. Zero timeouts disable the
// matching deadline.
type Config struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      0,
		WriteTimeout:     15 * time.Second,
		ReadLimit:        64 << 20,
	}
}

func (c Config) Validate() error {
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("transport: negative handshake timeout")
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("transport: negative read timeout")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("transport: negative write timeout")
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("transport: negative read limit")
	}
	return nil
}
