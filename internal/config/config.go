package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/virdis/calcwire/internal/calc"
)

// calcd config.toml key mapping to calc runtime settings.
type ServiceFile struct {
	ID                   string   `toml:"id"`
	ListenAddr           string   `toml:"listen_addr"`
	MaxConnections       int64    `toml:"max_connections"`
	AcceptBackoffUnit    string   `toml:"accept_backoff_unit"`
	AcceptBackoffCeiling string   `toml:"accept_backoff_ceiling"`
	AdminListenAddr      string   `toml:"admin_listen_addr"`
	AdminAuthToken       string   `toml:"admin_auth_token"`
	CORSOrigins          []string `toml:"cors_origins"`
}

// LoadServiceConfig overlays keys present in the TOML file onto the runtime
// defaults. Keys absent from the file keep their default values.
func LoadServiceConfig(path string) (calc.ServiceConfig, error) {
	cfg := calc.DefaultServiceConfig()

	var raw ServiceFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return calc.ServiceConfig{}, fmt.Errorf("load calc config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.ServiceID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("max_connections") {
		cfg.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("accept_backoff_unit") {
		unit, err := time.ParseDuration(strings.TrimSpace(raw.AcceptBackoffUnit))
		if err != nil {
			return calc.ServiceConfig{}, fmt.Errorf("load calc config: accept_backoff_unit: %w", err)
		}
		cfg.AcceptBackoff.Unit = unit
	}
	if meta.IsDefined("accept_backoff_ceiling") {
		ceiling, err := time.ParseDuration(strings.TrimSpace(raw.AcceptBackoffCeiling))
		if err != nil {
			return calc.ServiceConfig{}, fmt.Errorf("load calc config: accept_backoff_ceiling: %w", err)
		}
		cfg.AcceptBackoff.Ceiling = ceiling
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_auth_token") {
		cfg.AdminAuthToken = strings.TrimSpace(raw.AdminAuthToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}

	if err := ValidateServiceConfig(cfg); err != nil {
		return calc.ServiceConfig{}, err
	}
	return cfg, nil
}

func ValidateServiceConfig(cfg calc.ServiceConfig) error {
	if strings.TrimSpace(cfg.ServiceID) == "" {
		return fmt.Errorf("calc config missing id")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("calc config missing listen_addr")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("calc config max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.AcceptBackoff.Unit <= 0 {
		return fmt.Errorf("calc config accept_backoff_unit must be positive, got %v", cfg.AcceptBackoff.Unit)
	}
	if cfg.AcceptBackoff.Ceiling < cfg.AcceptBackoff.Unit {
		return fmt.Errorf("calc config accept_backoff_ceiling %v below unit %v",
			cfg.AcceptBackoff.Ceiling, cfg.AcceptBackoff.Unit)
	}
	return nil
}
