// Command button-dispatch watches GPIO buttons, debounces presses and routes
// them to LED, MQTT and log actions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/button-dispatch/internal/config"
	"github.com/sweeney/button-dispatch/internal/gpio"
	"github.com/sweeney/button-dispatch/internal/logging"
	"github.com/sweeney/button-dispatch/internal/mqtt"
	"github.com/sweeney/button-dispatch/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flags holds command-line values. They only override the config file when
// set explicitly.
type flags struct {
	configPath string
	chip       string
	capacity   int
	debounce   time.Duration
	timeout    time.Duration
	poll       time.Duration
	heartbeat  time.Duration
	broker     string
	topic      string
	httpAddr   string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "button-dispatch",
		Short:        "Debounce GPIO button presses and dispatch them to actions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			return run(cfg, logger)
		},
	}

	addFlags(root, &f)
	root.AddCommand(newReadCmd(&f))
	return root
}

func addFlags(cmd *cobra.Command, f *flags) {
	def := config.Default()

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&f.chip, "chip", def.Chip, "GPIO chip name")
	pf.StringVar(&f.logLevel, "log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", def.LogFormat, "Log format (text, json)")

	fs := cmd.Flags()
	fs.IntVar(&f.capacity, "queue", def.QueueCapacity, "Event queue capacity")
	fs.DurationVar(&f.debounce, "debounce", def.Debounce, "Quiet interval between accepted presses of one button")
	fs.DurationVar(&f.timeout, "timeout", def.Timeout, "Dispatcher wait timeout (0 waits forever)")
	fs.DurationVar(&f.poll, "poll", def.Poll, "Queue monitor interval")
	fs.DurationVar(&f.heartbeat, "heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&f.broker, "broker", def.Broker, "MQTT broker address")
	fs.StringVar(&f.topic, "topic", def.Topic, "MQTT topic prefix")
	fs.StringVar(&f.httpAddr, "http", def.HTTPAddr, "HTTP status address (empty to disable)")
}

func newReadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Print the current state of every configured button and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, *f)
			if err != nil {
				return err
			}
			chip, err := gpio.Open(cfg.Chip)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()
			return printState(cmd, chip, cfg)
		},
	}
}

// resolveConfig layers defaults, the config file and explicitly set flags,
// in that order, and validates the result.
func resolveConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("chip") {
		cfg.Chip = f.chip
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("queue") {
		cfg.QueueCapacity = f.capacity
	}
	if changed("debounce") {
		cfg.Debounce = f.debounce
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("poll") {
		cfg.Poll = f.poll
	}
	if changed("heartbeat") {
		cfg.Heartbeat = f.heartbeat
	}
	if changed("broker") {
		cfg.Broker = f.broker
	}
	if changed("topic") {
		cfg.Topic = f.topic
	}
	if changed("http") {
		cfg.HTTPAddr = f.httpAddr
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func printState(cmd *cobra.Command, r gpio.Reader, cfg config.Config) error {
	pins := make([]int, len(cfg.Sources))
	for i, s := range cfg.Sources {
		pins[i] = s.Pin
	}
	values, err := r.Read(pins)
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	out := cmd.OutOrStdout()
	for i, s := range cfg.Sources {
		fmt.Fprintf(out, "source %d (%s) pin %d: %s\n", s.ID, s.Name, s.Pin, pressedString(values[i], s.ActiveLow))
	}
	return nil
}

func pressedString(raw int, activeLow bool) string {
	pressed := raw != 0
	if activeLow {
		pressed = raw == 0
	}
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func run(cfg config.Config, logger *slog.Logger) error {
	chip, err := gpio.Open(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	publisher := mqtt.NewRealPublisher(mqtt.Config{
		Broker:      cfg.Broker,
		TopicPrefix: cfg.Topic,
	}, logger)
	defer publisher.Close()

	d, err := newDaemon(cfg, daemonDeps{
		Watcher:    chip,
		Outputs:    chip,
		Publisher:  publisher,
		MQTTStatus: publisher,
		Logger:     logger,
		Now:        time.Now,
	})
	if err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		d.server = web.New(cfg.HTTPAddr, d.tracker)
	}

	logger.Info("started",
		"queue", cfg.QueueCapacity,
		"debounce", cfg.Debounce,
		"sources", len(cfg.Sources),
		"broker", cfg.Broker,
		"http", cfg.HTTPAddr)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.run(ticker.C, sigCh)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func actionList(actions []string) string {
	return strings.Join(actions, ",")
}
