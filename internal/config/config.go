// Package config loads the PICORadar server configuration: built-in
// defaults, optionally overlaid by a JSON file, optionally overlaid by
// environment variables, exactly the layering spec §6 describes.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the resolved, typed view of the spec §6 document.
type Config struct {
	ServerHost          string
	ServerPort          int
	DiscoveryUDPPort    int
	AuthToken           string
	BroadcastIntervalMs int
	SessionAuthTimeoutMs int
	SessionQueueCapacity int
	LoggingLevel        string
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":             "0.0.0.0",
		"server.port":             11451,
		"discovery.udp_port":      11450,
		"auth.token":              "",
		"broadcast.interval_ms":   50,
		"session.auth_timeout_ms": 5000,
		"session.queue_capacity":  16,
		"logging.level":           "INFO",
	}
}

// Load builds a Config by layering built-in defaults, then path (if
// non-empty), then the PICORADAR_PORT / PICORADAR_AUTH_TOKEN environment
// overrides named in spec §6. Unrecognized keys in path are ignored;
// missing keys keep their default.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue("PICORADAR_", ".", func(key, value string) (string, interface{}) {
		switch key {
		case "PICORADAR_PORT":
			return "server.port", value
		case "PICORADAR_AUTH_TOKEN":
			return "auth.token", value
		default:
			return "", nil
		}
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := Config{
		ServerHost:           k.String("server.host"),
		ServerPort:           k.Int("server.port"),
		DiscoveryUDPPort:     k.Int("discovery.udp_port"),
		AuthToken:            k.String("auth.token"),
		BroadcastIntervalMs:  k.Int("broadcast.interval_ms"),
		SessionAuthTimeoutMs: k.Int("session.auth_timeout_ms"),
		SessionQueueCapacity: k.Int("session.queue_capacity"),
		LoggingLevel:         k.String("logging.level"),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("config: auth.token is required (set in config file or PICORADAR_AUTH_TOKEN)")
	}

	return cfg, nil
}
