package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-dispatch/internal/gpio"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, 30*time.Millisecond, cfg.Debounce)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Len(t, cfg.Sources, 2)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.yaml")
	yml := `
queue_capacity: 4
debounce: 50ms
timeout: 2s
broker: tcp://broker.local:1883
sources:
  - id: 3
    name: doorbell
    pin: 5
    active_low: true
    actions: [log, publish]
    debounce: 200ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.QueueCapacity)
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, ":80", cfg.HTTPAddr, "missing keys keep defaults")

	require.Len(t, cfg.Sources, 1, "file sources replace the defaults")
	s := cfg.Sources[0]
	assert.Equal(t, "doorbell", s.Name)
	assert.Equal(t, 5, s.Pin)
	assert.True(t, s.ActiveLow)
	assert.Equal(t, []string{ActionLog, ActionPublish}, s.Actions)
	assert.Equal(t, 200*time.Millisecond, s.Debounce)
	assert.EqualValues(t, 3, cfg.MaxSourceID())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("queue_capcity: 3\n"), &cfg)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }, ErrQueueCapacity},
		{"zero poll", func(c *Config) { c.Poll = 0 }, ErrPoll},
		{"no sources", func(c *Config) { c.Sources = nil }, ErrNoSources},
		{"duplicate id", func(c *Config) { c.Sources[1].ID = c.Sources[0].ID }, ErrDuplicateID},
		{"duplicate pin", func(c *Config) { c.Sources[1].Pin = c.Sources[0].Pin }, ErrDuplicatePin},
		{"led on button pin", func(c *Config) { c.Sources[1].LEDPin = Pin(c.Sources[0].Pin) }, ErrDuplicatePin},
		{"unknown action", func(c *Config) { c.Sources[0].Actions = []string{"explode"} }, ErrUnknownAction},
		{"toggle without led", func(c *Config) { c.Sources[0].LEDPin = nil }, ErrMissingLED},
		{"negative debounce", func(c *Config) { c.Debounce = -5 * time.Millisecond }, ErrDebounce},
		{"negative source debounce", func(c *Config) { c.Sources[1].Debounce = -time.Millisecond }, ErrDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDefaultUsesPiChip(t *testing.T) {
	assert.Equal(t, gpio.DefaultChip, Default().Chip)
}

func TestLEDOnLineZero(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
sources:
  - id: 1
    name: boot
    pin: 17
    actions: [toggle]
    led_pin: 0
`), &cfg)
	require.NoError(t, err)
	require.NotNil(t, cfg.Sources[0].LEDPin)
	assert.Equal(t, 0, *cfg.Sources[0].LEDPin)
	assert.NoError(t, cfg.Validate())
}

func TestLEDPinUnsetInFile(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
sources:
  - id: 1
    name: boot
    pin: 17
    actions: [toggle]
`), &cfg)
	require.NoError(t, err)
	assert.Nil(t, cfg.Sources[0].LEDPin)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingLED)
}
