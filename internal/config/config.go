package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/skmux/internal/client"
	"github.com/google/uuid"
)

type fileConfig struct {
	URL            string          `toml:"url"`
	AccessKey      string          `toml:"access_key"`
	PrivateKey     string          `toml:"private_key"`
	DeviceUUID     string          `toml:"device_uuid"`
	ClientVersion  string          `toml:"client_version"`
	ReauthInterval string          `toml:"reauth_interval"`
	PingTimeout    string          `toml:"ping_timeout"`
	Transport      transportConfig `toml:"transport"`
}

type transportConfig struct {
	HandshakeTimeout string `toml:"handshake_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	ReadLimit        int64  `toml:"read_limit"`
}

// LoadClientConfig reads a TOML file and applies the keys it defines over
// client.DefaultConfig.
func LoadClientConfig(path string) (client.Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return client.Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return client.Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	cfg := client.DefaultConfig()
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("access_key") {
		cfg.AccessKey = strings.TrimSpace(raw.AccessKey)
	}
	if meta.IsDefined("private_key") {
		cfg.PrivateKey = strings.TrimSpace(raw.PrivateKey)
	}
	if meta.IsDefined("device_uuid") {
		id, err := uuid.Parse(strings.TrimSpace(raw.DeviceUUID))
		if err != nil {
			return client.Config{}, fmt.Errorf("parse device_uuid: %w", err)
		}
		cfg.DeviceUUID = id
	}
	if meta.IsDefined("client_version") {
		cfg.ClientVersion = raw.ClientVersion
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"reauth_interval", raw.ReauthInterval, &cfg.ReauthInterval},
		{"ping_timeout", raw.PingTimeout, &cfg.PingTimeout},
		{"transport.handshake_timeout", raw.Transport.HandshakeTimeout, &cfg.Transport.HandshakeTimeout},
		{"transport.read_timeout", raw.Transport.ReadTimeout, &cfg.Transport.ReadTimeout},
		{"transport.write_timeout", raw.Transport.WriteTimeout, &cfg.Transport.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return client.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("transport", "read_limit") {
		cfg.Transport.ReadLimit = raw.Transport.ReadLimit
	}

	if err := cfg.Validate(); err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}
