// Package config implements the agent's layered configuration:
// built-in defaults, overridden by an optional TOML file, overridden
// again by CLI flags. The manufacturer OUI lives here because no
// portable OS probe exists for it.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// BusMode selects which bus.Provider the agent wires up.
type BusMode string

const (
	BusModeLoopback BusMode = "loopback"
	BusModeGRPC     BusMode = "grpc"
)

// Config is the agent's full runtime configuration.
type Config struct {
	ComponentName string `toml:"component_name"`
	SchemaPath    string `toml:"schema_path"`

	BusMode      BusMode `toml:"bus_mode"`
	CallbackAddr string  `toml:"callback_addr"`
	DaemonAddr   string  `toml:"daemon_addr"`

	ManufacturerOUI string `toml:"manufacturer_oui"`

	LogLevel          string `toml:"log_level"`
	MetricsListenAddr string `toml:"metrics_listen_addr"`
}

// Default returns the built-in defaults every layer starts from.
func Default() Config {
	return Config{
		ComponentName:     "rbus-elements-agent",
		SchemaPath:        "elements.json",
		BusMode:           BusModeLoopback,
		CallbackAddr:      "127.0.0.1:10170",
		DaemonAddr:        "127.0.0.1:10171",
		ManufacturerOUI:   "00:00:00",
		LogLevel:          "info",
		MetricsListenAddr: "",
	}
}

// LoadFile decodes a TOML file into a Config seeded with Default(),
// leaving fields the file omits at their default. A missing file is
// not an error; an agent run with no file argument relies on defaults
// plus flags.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "config: read %s", path)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// ApplyFlags overlays non-empty flag values onto cfg, matching the
// defaults-then-file-then-flags layering: the CLI always wins when the
// caller actually passed a flag.
func (c Config) ApplyFlags(flags Flags) Config {
	if flags.ComponentName != "" {
		c.ComponentName = flags.ComponentName
	}
	if flags.SchemaPath != "" {
		c.SchemaPath = flags.SchemaPath
	}
	if flags.BusMode != "" {
		c.BusMode = flags.BusMode
	}
	if flags.CallbackAddr != "" {
		c.CallbackAddr = flags.CallbackAddr
	}
	if flags.DaemonAddr != "" {
		c.DaemonAddr = flags.DaemonAddr
	}
	if flags.ManufacturerOUI != "" {
		c.ManufacturerOUI = flags.ManufacturerOUI
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.MetricsListenAddr != "" {
		c.MetricsListenAddr = flags.MetricsListenAddr
	}
	return c
}

// Flags is the subset of Config the CLI surface can override; an empty
// string in any field means "not passed, keep whatever the file or
// defaults already set".
type Flags struct {
	ComponentName     string
	SchemaPath        string
	BusMode           BusMode
	CallbackAddr      string
	DaemonAddr        string
	ManufacturerOUI   string
	LogLevel          string
	MetricsListenAddr string
}
