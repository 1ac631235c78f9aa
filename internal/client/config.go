package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/skmux/internal/auth"
	"github.com/danmuck/skmux/internal/protocol/mux"
	"github.com/danmuck/skmux/internal/transport"
	"github.com/google/uuid"
)

// Config names the endpoint and credentials of one MUX session.
type Config struct {
	URL           string
	AccessKey     string
	PrivateKey    string
	DeviceUUID    uuid.UUID
	ClientVersion string
	// ReauthInterval re-sends Auth on stream 0 before the server's signature
	// window lapses. Zero disables it.
	ReauthInterval time.Duration
	PingTimeout    time.Duration
	Transport      transport.Config
}

func DefaultConfig() Config {
	return Config{
		URL:            "ws://localhost:3586",
		ClientVersion:  auth.ClientVersion,
		ReauthInterval: 5 * time.Minute,
		PingTimeout:    10 * time.Second,
		Transport:      transport.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return fmt.Errorf("client config url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("client config url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("client config url missing host")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("client config missing access_key")
	}
	if err := mux.ValidateAccessKey(c.AccessKey); err != nil {
		return fmt.Errorf("client config access_key: %w", err)
	}
	if strings.TrimSpace(c.PrivateKey) == "" {
		return fmt.Errorf("client config missing private_key")
	}
	if _, err := auth.DecodePrivateKey(c.PrivateKey); err != nil {
		return fmt.Errorf("client config private_key: %w", err)
	}
	if len(c.ClientVersion) > mux.MaxClientVersionLen {
		return fmt.Errorf("client config client_version exceeds %d bytes", mux.MaxClientVersionLen)
	}
	if c.ReauthInterval < 0 {
		return fmt.Errorf("client config negative reauth_interval")
	}
	if c.PingTimeout < 0 {
		return fmt.Errorf("client config negative ping_timeout")
	}
	return c.Transport.Validate()
}
