package config

import (
	"fmt"
	"os"
)

func Template() string {
	return clientTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(clientTemplate), 0o600)
}

const clientTemplate = `host = "127.0.0.1"
port = 12345
timeout = "5s" # or timeout_ms = 5000, not both
expect_response = true
max_response_bytes = 65536
prompt = "Cmd> "

[server]
listen = "127.0.0.1:12345"
reply = "ack"
idle_timeout = "30s"

[log]
level = "info"
file = ""
max_size_mb = 10
max_backups = 3
max_age_days = 7
`
