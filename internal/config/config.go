// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-dispatch/internal/event"
	"github.com/sweeney/button-dispatch/internal/gpio"
)

// Action names understood by the action package.
const (
	ActionToggle  = "toggle"
	ActionPublish = "publish"
	ActionLog     = "log"
)

// Validation errors.
var (
	ErrNoSources     = errors.New("config: no sources configured")
	ErrQueueCapacity = errors.New("config: queue capacity must be at least 1")
	ErrDuplicateID   = errors.New("config: duplicate source id")
	ErrDuplicatePin  = errors.New("config: pin used twice")
	ErrUnknownAction = errors.New("config: unknown action")
	ErrMissingLED    = errors.New("config: toggle action needs led_pin")
	ErrPoll          = errors.New("config: poll interval must be positive")
	ErrDebounce      = errors.New("config: debounce must not be negative")
)

// Config is the daemon configuration.
type Config struct {
	Chip          string        `yaml:"chip"`
	QueueCapacity int           `yaml:"queue_capacity"`
	Debounce      time.Duration `yaml:"debounce"`
	// Timeout bounds each dispatcher wait. Zero waits forever.
	Timeout   time.Duration `yaml:"timeout"`
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Broker    string        `yaml:"broker"`
	Topic     string        `yaml:"topic"`
	HTTPAddr  string        `yaml:"http"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Sources   []Source      `yaml:"sources"`
}

// Source maps one input line to a source ID and an action.
type Source struct {
	ID        event.SourceID `yaml:"id"`
	Name      string         `yaml:"name"`
	Pin       int            `yaml:"pin"`
	ActiveLow bool           `yaml:"active_low"`
	// Actions run in order for every accepted press.
	Actions []string `yaml:"actions"`
	// LEDPin is the output toggled by the toggle action. Nil when unset so
	// that line 0 stays usable.
	LEDPin *int `yaml:"led_pin"`
	// Debounce overrides the global quiet interval when non-zero.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the two-button layout with sensible defaults: two active-low
// buttons with pull-ups, each toggling its own LED and publishing presses.
func Default() Config {
	return Config{
		Chip:          gpio.DefaultChip,
		QueueCapacity: 10,
		Debounce:      30 * time.Millisecond,
		Poll:          time.Second,
		Heartbeat:     15 * time.Minute,
		Broker:        "tcp://192.168.1.200:1883",
		Topic:         "home/buttons",
		HTTPAddr:      ":80",
		LogLevel:      "info",
		LogFormat:     "text",
		Sources: []Source{
			{ID: 1, Name: "boot", Pin: 17, ActiveLow: true, Actions: []string{ActionToggle, ActionPublish}, LEDPin: Pin(22)},
			{ID: 2, Name: "aux", Pin: 27, ActiveLow: true, Actions: []string{ActionToggle, ActionPublish}, LEDPin: Pin(23)},
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values; a sources list in the file replaces the default one.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration for mistakes that would only surface
// once the daemon is running.
func (c Config) Validate() error {
	if c.QueueCapacity < 1 {
		return ErrQueueCapacity
	}
	if c.Poll <= 0 {
		return ErrPoll
	}
	if c.Debounce < 0 {
		return ErrDebounce
	}
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	ids := make(map[event.SourceID]bool)
	pins := make(map[int]string)
	claim := func(pin int, what string) error {
		if prev, ok := pins[pin]; ok {
			return fmt.Errorf("%w: %d (%s and %s)", ErrDuplicatePin, pin, prev, what)
		}
		pins[pin] = what
		return nil
	}

	for _, s := range c.Sources {
		if ids[s.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, s.ID)
		}
		ids[s.ID] = true

		if s.Debounce < 0 {
			return fmt.Errorf("%w: source %d", ErrDebounce, s.ID)
		}
		if err := claim(s.Pin, fmt.Sprintf("source %d", s.ID)); err != nil {
			return err
		}
		for _, a := range s.Actions {
			switch a {
			case ActionToggle:
				if s.LEDPin == nil {
					return fmt.Errorf("%w: source %d", ErrMissingLED, s.ID)
				}
				if err := claim(*s.LEDPin, fmt.Sprintf("led of source %d", s.ID)); err != nil {
					return err
				}
			case ActionPublish, ActionLog:
			default:
				return fmt.Errorf("%w: %q on source %d", ErrUnknownAction, a, s.ID)
			}
		}
	}
	return nil
}

// Pin returns a pointer to offset, for optional pin fields.
func Pin(offset int) *int {
	return &offset
}

// MaxSourceID returns the highest configured source ID.
func (c Config) MaxSourceID() event.SourceID {
	var hi event.SourceID
	for _, s := range c.Sources {
		if s.ID > hi {
			hi = s.ID
		}
	}
	return hi
}
