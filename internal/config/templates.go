package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `url = "ws://localhost:3586"
access_key = "root"
private_key = "REPLACE_WITH_BASE64_PRIVATE_KEY"
device_uuid = "00000000-0000-4000-8000-000000000000"
reauth_interval = "5m"
ping_timeout = "10s"

[transport]
handshake_timeout = "10s"
read_timeout = "0s"
write_timeout = "15s"
read_limit = 67108864
`
