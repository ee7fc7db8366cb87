// Package main provides the CLI entrypoint for kicktrain.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/config"
	"github.com/verte-zerg/kicktrain/internal/game"
	"github.com/verte-zerg/kicktrain/internal/generator"
	"github.com/verte-zerg/kicktrain/internal/metrics"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/sensor"
	"github.com/verte-zerg/kicktrain/internal/store"
	"github.com/verte-zerg/kicktrain/internal/tui"
)

const (
	defaultMode            = "free"
	defaultGoal            = 20
	defaultPerfection      = 3
	defaultRounds          = 10
	defaultDisplayHoldMs   = 600
	defaultAutosaveSeconds = 30
	defaultLogLevel        = "info"
	defaultBackend         = "sqlite"
	defaultRedisAddr       = "localhost:6379"
	defaultSensorTopic     = "kicktrain/sensor"
	defaultSensorClientID  = "kicktrain"
)

var (
	logLevel      string
	storeBackend  string
	storePath     string
	redisAddr     string
	redisPassword string
	redisDB       int

	playMode            string
	playGoal            int
	playPerfection      int
	playRounds          int
	playDisplayHoldMs   int
	playAutosaveSeconds int
	sensorBroker        string
	sensorTopic         string
	sensorClientID      string
	metricsAddr         string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kicktrain",
		Short:         "Adaptive five-segment goal trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&storeBackend, "store", defaultBackend, "storage backend (sqlite or redis)")
	pf.StringVar(&storePath, "db", "", "SQLite database path (default: XDG data dir)")
	pf.StringVar(&redisAddr, "redis-addr", defaultRedisAddr, "Redis address")
	pf.StringVar(&redisPassword, "redis-password", "", "Redis password")
	pf.IntVar(&redisDB, "redis-db", 0, "Redis database number")

	f := rootCmd.Flags()
	f.StringVar(&playMode, "mode", defaultMode, "play mode (free, target, perfection, timer)")
	f.IntVar(&playGoal, "goal", defaultGoal, "hits needed in target mode")
	f.IntVar(&playPerfection, "perfection", defaultPerfection, "consecutive hits per segment in perfection mode")
	f.IntVar(&playRounds, "rounds", defaultRounds, "rounds in timer mode")
	f.IntVar(&playDisplayHoldMs, "display-hold-ms", defaultDisplayHoldMs, "pause before the next target")
	f.IntVar(&playAutosaveSeconds, "autosave-seconds", defaultAutosaveSeconds, "autosave interval (0 disables)")
	f.StringVar(&sensorBroker, "mqtt-broker", "", "MQTT broker for sensor events (e.g. tcp://localhost:1883)")
	f.StringVar(&sensorTopic, "mqtt-topic", defaultSensorTopic, "MQTT topic for sensor events")
	f.StringVar(&sensorClientID, "mqtt-client-id", defaultSensorClientID, "MQTT client id")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newSensorCmd())

	return rootCmd
}

// loadFileConfig merges the config file, .env files and KICKTRAIN_* variables.
func loadFileConfig() (config.FileConfig, error) {
	cfg, err := config.Load(config.DefaultConfigPath(), ".env", config.DefaultEnvPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyCommonConfig(cmd *cobra.Command, fileCfg config.FileConfig) {
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.LogLevel)
	applyStringConfig(cmd, "store", &storeBackend, fileCfg.Storage.Backend)
	applyStringConfig(cmd, "db", &storePath, fileCfg.Storage.Path)
	applyStringConfig(cmd, "redis-addr", &redisAddr, fileCfg.Storage.RedisAddr)
	applyStringConfig(cmd, "redis-password", &redisPassword, fileCfg.Storage.RedisPassword)
	applyIntConfig(cmd, "redis-db", &redisDB, fileCfg.Storage.RedisDB)
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyCommonConfig(cmd, fileCfg)
	applyStringConfig(cmd, "mode", &playMode, fileCfg.Play.Mode)
	applyIntConfig(cmd, "goal", &playGoal, fileCfg.Play.Goal)
	applyIntConfig(cmd, "perfection", &playPerfection, fileCfg.Play.Perfection)
	applyIntConfig(cmd, "rounds", &playRounds, fileCfg.Play.Rounds)
	applyIntConfig(cmd, "display-hold-ms", &playDisplayHoldMs, fileCfg.Play.DisplayHoldMs)
	applyIntConfig(cmd, "autosave-seconds", &playAutosaveSeconds, fileCfg.Play.AutosaveSeconds)
	applyStringConfig(cmd, "mqtt-broker", &sensorBroker, fileCfg.Sensor.Broker)
	applyStringConfig(cmd, "mqtt-topic", &sensorTopic, fileCfg.Sensor.Topic)
	applyStringConfig(cmd, "mqtt-client-id", &sensorClientID, fileCfg.Sensor.ClientID)
	applyStringConfig(cmd, "metrics-addr", &metricsAddr, fileCfg.Metrics.Addr)

	playCfg, err := buildPlayConfig()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(logLevel, config.DefaultLogPath())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	repo, closeRepo, err := openPlayRepo(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	loop := clock.NewLoop()
	defer loop.Close()
	opts := game.DefaultOptions()
	opts.DisplayHold = time.Duration(playDisplayHoldMs) * time.Millisecond
	engine := game.New(ctx, repo, clock.System{}, loop, generator.NewRand(), opts)
	engine.Load()

	if metricsAddr != "" {
		registry := metrics.NewRegistry()
		collector := metrics.NewCollector(registry)
		engine.Subscribe(collector)
		srv := metrics.NewServer(metricsAddr, registry, collector)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("failed to stop metrics server: %v", err)
			}
		}()
	}

	var events <-chan sensor.Event
	if sensorBroker != "" {
		bridge, err := sensor.Connect(sensor.Options{
			Broker:   sensorBroker,
			Topic:    sensorTopic,
			ClientID: sensorClientID,
			QoS:      1,
		})
		if err != nil {
			logrus.Warnf("sensor bridge disabled: %v", err)
		} else {
			defer bridge.Close()
			events = bridge.Events()
		}
	}

	m, err := tui.NewModel(engine, loop, events, playCfg)
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func buildPlayConfig() (tui.Config, error) {
	mode, ok := model.ParseMode(strings.TrimSpace(playMode))
	if !ok {
		return tui.Config{}, fmt.Errorf("--mode must be one of free, target, perfection, timer")
	}
	params := model.ModeParams{
		TargetGoal:       playGoal,
		PerfectionTarget: playPerfection,
		TimerRounds:      playRounds,
	}
	if err := game.ValidateParams(mode, params); err != nil {
		return tui.Config{}, err
	}
	if playDisplayHoldMs < 0 {
		return tui.Config{}, fmt.Errorf("--display-hold-ms must be >= 0")
	}
	if playAutosaveSeconds < 0 {
		return tui.Config{}, fmt.Errorf("--autosave-seconds must be >= 0")
	}
	return tui.Config{
		Mode:     mode,
		Params:   params,
		Autosave: time.Duration(playAutosaveSeconds) * time.Second,
	}, nil
}

// setupLogging applies the level and, when path is set, redirects logs to
// that file so they do not corrupt the TUI.
func setupLogging(level, path string) (func(), error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if path == "" {
		logrus.SetOutput(os.Stderr)
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(os.Stderr)
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of the log file.
			_ = cerr
		}
	}, nil
}

func openKV(ctx context.Context) (store.KV, error) {
	switch storeBackend {
	case "sqlite", "":
		path := storePath
		if path == "" {
			path = config.DefaultDBPath()
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	case "redis":
		rs, err := store.OpenRedis(ctx, store.RedisOptions{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, checkBackend()
	}
}

// openPlayRepo opens the configured backend. A backend that cannot be opened
// leaves the session playable without persistence; only an unknown backend
// name is an error.
func openPlayRepo(ctx context.Context) (*store.Repo, func(), error) {
	if err := checkBackend(); err != nil {
		return nil, nil, err
	}
	kv, err := openKV(ctx)
	if err != nil {
		logrus.Warnf("storage unavailable, progress will not be saved: %v", err)
		return store.NewRepo(nil), func() {}, nil
	}
	return store.NewRepo(kv), func() { closeKV(kv) }, nil
}

func checkBackend() error {
	switch storeBackend {
	case "sqlite", "", "redis":
		return nil
	}
	return fmt.Errorf("--store must be sqlite or redis, got %q", storeBackend)
}

func closeKV(kv store.KV) {
	if err := kv.Close(); err != nil {
		logrus.Warnf("failed to close store: %v", err)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# kicktrain configuration
# Uncomment a value to enable it. KICKTRAIN_* environment variables override
# the file and CLI flags override both.

# log-level = %q

[play]
# mode = %q                # free, target, perfection or timer
# goal = %d                  # Hits needed in target mode
# perfection = %d             # Consecutive hits per segment in perfection mode
# rounds = %d                # Rounds in timer mode
# display-hold-ms = %d      # Pause before the next target
# autosave-seconds = %d      # Autosave interval, 0 disables

[storage]
# backend = %q          # sqlite or redis
# path = ""                 # SQLite file (default: XDG data dir)
# redis-addr = %q
# redis-password = ""
# redis-db = 0

[sensor]
# broker = "tcp://localhost:1883"
# topic = %q
# client-id = %q

[metrics]
# addr = ":9090"
`,
		defaultLogLevel,
		defaultMode,
		defaultGoal,
		defaultPerfection,
		defaultRounds,
		defaultDisplayHoldMs,
		defaultAutosaveSeconds,
		defaultBackend,
		defaultRedisAddr,
		defaultSensorTopic,
		defaultSensorClientID,
	)
}

func writeOut(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
