// Command agent loads configuration, a JSON schema file, and the
// platform/bus implementations config selects, then runs the
// bootstrapper until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/stepherg/rbus-elements/internal/bootstrap"
	"github.com/stepherg/rbus-elements/internal/bus"
	"github.com/stepherg/rbus-elements/internal/config"
	"github.com/stepherg/rbus-elements/internal/metrics"
	"github.com/stepherg/rbus-elements/internal/platform"
	"github.com/stepherg/rbus-elements/internal/schema"
)

func main() {
	app := &cli.App{
		Name:      "rbus-elements-agent",
		Usage:     "data-model provider agent for a device-management bus",
		ArgsUsage: "[schema-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "optional TOML config file"},
			&cli.StringFlag{Name: "component-name", Usage: "component name registered with the bus"},
			&cli.StringFlag{Name: "bus-mode", Usage: "\"loopback\" or \"grpc\""},
			&cli.StringFlag{Name: "bus-target", Usage: "address of the bus daemon's control service (grpc mode)"},
			&cli.StringFlag{Name: "callback-listen", Usage: "address this agent's callback service listens on (grpc mode)"},
			&cli.StringFlag{Name: "manufacturer-oui", Usage: "manufacturer OUI, no OS probe exists for this value"},
			&cli.StringFlag{Name: "log-level", Usage: "lvl/trace/debug/info/warn/error/crit"},
			&cli.StringFlag{Name: "metrics-listen", Usage: "address for /metrics and /healthz; empty disables"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("agent exited with error", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	schemaPath := cfg.SchemaPath
	if c.Args().Len() > 0 {
		schemaPath = c.Args().Get(0)
	}
	cfg = cfg.ApplyFlags(config.Flags{
		ComponentName:     c.String("component-name"),
		SchemaPath:        schemaPath,
		BusMode:           config.BusMode(c.String("bus-mode")),
		DaemonAddr:        c.String("bus-target"),
		CallbackAddr:      c.String("callback-listen"),
		ManufacturerOUI:   c.String("manufacturer-oui"),
		LogLevel:          c.String("log-level"),
		MetricsListenAddr: c.String("metrics-listen"),
	})

	logger := log.Root()
	if cfg.LogLevel != "" {
		lvl, err := log.LvlFromString(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
		}
		logger.SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
	}

	entries, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("load schema %s: %w", cfg.SchemaPath, err)
	}

	plat := platform.New(cfg.ManufacturerOUI)

	var provider bus.Provider
	switch cfg.BusMode {
	case config.BusModeGRPC:
		provider = bus.NewGRPC(cfg.CallbackAddr, cfg.DaemonAddr)
	case config.BusModeLoopback, "":
		provider = bus.NewLoopback()
	default:
		return fmt.Errorf("unknown bus mode %q", cfg.BusMode)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListenAddr)
		errc := metricsServer.Start()
		go func() {
			if err := <-errc; err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(); err != nil {
				logger.Warn("metrics server shutdown failed", "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	agent := bootstrap.NewAgent(cfg.ComponentName, provider, plat, logger)
	logger.Info("starting agent", "component_name", cfg.ComponentName, "schema_path", cfg.SchemaPath, "bus_mode", cfg.BusMode)
	if err := agent.Run(ctx, entries); err != nil {
		return fmt.Errorf("run agent: %w", err)
	}
	logger.Info("agent shut down cleanly")
	return nil
}
