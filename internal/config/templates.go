package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultServiceFile is the file-side shape of the runtime defaults, with
// the admin surface pre-filled so a generated config is useful as-is.
func DefaultServiceFile() ServiceFile {
	return ServiceFile{
		ID:                   "calcd.local",
		ListenAddr:           "127.0.0.1:8080",
		MaxConnections:       250,
		AcceptBackoffUnit:    "1s",
		AcceptBackoffCeiling: "64s",
		AdminListenAddr:      "127.0.0.1:9090",
		AdminAuthToken:       "temp-admin-token",
		CORSOrigins:          []string{"http://localhost:3000"},
	}
}

func Template() (string, error) {
	out, err := toml.Marshal(DefaultServiceFile())
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
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
