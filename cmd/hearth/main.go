// Hearth is a proactive smart-home assistant agent.
//
// It watches a simulated household, offers suggestions through a
// language model, and applies the model's device directives. It
// exposes an HTTP API for conversation and device control, a WebSocket
// event stream, and an optional MQTT status publisher. Configuration
// is a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	hearth serve       Start the service
//	hearth version     Print version information
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hearthd/hearth/internal/agent"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/directive"
	"github.com/hearthd/hearth/internal/events"
	"github.com/hearthd/hearth/internal/home"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
	"github.com/hearthd/hearth/internal/mqtt"
	"github.com/hearthd/hearth/internal/prompts"
	"github.com/hearthd/hearth/internal/server"
	"github.com/hearthd/hearth/internal/sim"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// version is overridden at build time via -ldflags.
var version = "dev"

// main constructs the OS-level environment and delegates to [run], so
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments by hand. The flag package relies on
// package-level globals, which makes it impossible to call run
// concurrently from tests; the argument surface here is small enough
// that manual parsing stays clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "version":
		fmt.Fprintf(stdout, "hearth %s\n", version)
		return nil
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Hearth - Proactive Smart Home Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: hearth [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Start the service")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./hearth.yaml, ~/.config/hearth/hearth.yaml, /etc/hearth/hearth.yaml")
	return nil
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, err = config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
	}
	logger := newLogger(stdout, level)
	logger.Info("config loaded", "path", cfgPath)

	// --- Storage ---
	dbPath := filepath.Join(cfg.DataDir, "hearth.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	registry, err := home.NewRegistry(db, logger)
	if err != nil {
		return fmt.Errorf("device registry: %w", err)
	}
	if err := sim.EnsureSeed(ctx, registry); err != nil {
		return fmt.Errorf("seed devices: %w", err)
	}

	// Device control goes to an external service when configured;
	// otherwise the local registry is authoritative.
	var controller home.Controller = registry
	if cfg.Devices.RemoteURL != "" {
		controller = home.NewRemoteController(cfg.Devices.RemoteURL, logger)
		logger.Info("using remote device controller", "url", cfg.Devices.RemoteURL)
	}

	msgLog, err := memory.NewSQLiteLog(db)
	if err != nil {
		return fmt.Errorf("message log: %w", err)
	}
	store := memory.NewContextStore(msgLog, cfg.Agent.MaxContext)
	if err := store.Load(); err != nil {
		// Start with an empty window rather than refusing to boot.
		logger.Warn("could not hydrate conversation history", "error", err)
	}
	logger.Info("conversation history loaded", "messages", store.Len())

	// --- Model ---
	// No usable model endpoint means the agent cannot do its job;
	// abort loudly instead of limping along.
	model, err := llm.NewOpenAIClient(cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("model client: %w", err)
	}
	pooled := llm.NewPool(model, cfg.Model.Workers)

	// --- Agent core ---
	bus := events.New()
	manager := agent.NewManager(agent.Deps{
		Store:      store,
		Prompts:    prompts.NewBuilder(cfg.Agent.HistoryWindow),
		Model:      pooled,
		Parser:     directive.NewParser(logger),
		Dispatcher: directive.NewDispatcher(controller, logger),
		Gate:       agent.NewGate(time.Duration(cfg.Agent.CooldownSec) * time.Second),
		Bus:        bus,
		Logger:     logger,
		ModelName:  cfg.Model.Name,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Environment tick ---
	env := sim.NewEnvironment(controller, logger)
	if cfg.Sim.Enabled {
		ticker := sim.NewTicker(env, func(ctx context.Context, snap home.Snapshot) error {
			_, err := manager.AnalyzeSnapshot(ctx, snap)
			return err
		}, time.Duration(cfg.Sim.TickSec)*time.Second, bus, logger)
		go ticker.Run(ctx)
	} else {
		logger.Info("environment tick disabled")
	}

	// --- MQTT publisher ---
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load mqtt instance id: %w", err)
		}

		mqttPub = mqtt.New(cfg.MQTT, instanceID, &mqttStatsAdapter{
			manager: manager,
			started: time.Now(),
		}, logger)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt publishing enabled",
			"broker", cfg.MQTT.Broker,
			"device_name", cfg.MQTT.DeviceName)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}
	}()

	// --- HTTP API ---
	srv := server.New(cfg.Listen, server.Deps{
		Manager:    manager,
		Controller: controller,
		History:    msgLog,
		Env:        env,
		Bus:        bus,
		Logger:     logger,
	})

	if err := srv.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Hearth stopped")
	return nil
}

// mqttStatsAdapter bridges the agent's status to the MQTT publisher
// without coupling the mqtt package to the agent loop.
type mqttStatsAdapter struct {
	manager *agent.Manager
	started time.Time
}

func (a *mqttStatsAdapter) Uptime() time.Duration { return time.Since(a.started) }
func (a *mqttStatsAdapter) Version() string       { return version }

func (a *mqttStatsAdapter) DefaultModel() string {
	return a.manager.Status().Model
}

func (a *mqttStatsAdapter) SuggestionsFired() int64 {
	return a.manager.Status().SuggestionsFired
}

func (a *mqttStatsAdapter) ActionsExecuted() int64 {
	return a.manager.Status().ActionsExecuted
}

func (a *mqttStatsAdapter) LastSuggestionTime() time.Time {
	return a.manager.Status().LastSuggestion
}

func (a *mqttStatsAdapter) ContextLength() int {
	return a.manager.Status().ContextLength
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			// An explicitly named file must exist.
			return nil, "", err
		}
		// No config anywhere: run on defaults so a bare `hearth serve`
		// still starts (the model key can come from the environment).
		cfg := config.Default()
		cfg.Model.APIKey = os.Getenv("HEARTH_API_KEY")
		cfg.Model.BaseURL = os.Getenv("HEARTH_BASE_URL")
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
