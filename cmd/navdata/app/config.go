package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/navdata-relay/internal/mavros"
	"github.com/roman-kulish/navdata-relay/internal/navdata"
	"github.com/roman-kulish/navdata-relay/internal/scheduler"
)

const (
	defaultRosbridgeURL  = "ws://localhost:9090"
	defaultDataDirectory = "data"
	defaultRecorderQueue = 256
	defaultRecorderBatch = 64
	defaultRecorderFlush = time.Second
	defaultLogLevel      = "info"
)

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// Duration is a time.Duration written as a Go duration string ("500ms", "10s")
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings" json:"settings"`
	Navdata   NavdataConfig   `yaml:"navdata" json:"navdata"`
	Rosbridge RosbridgeConfig `yaml:"rosbridge" json:"rosbridge"`
	Mavros    mavros.Config   `yaml:"mavros" json:"mavros"`
	Recorder  RecorderConfig  `yaml:"recorder" json:"recorder"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// Level returns the parsed log level
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, NewConfigError("settings.logLevel: invalid level '%s'", s.LogLevel)
	}
	return level, nil
}

// NavdataConfig represents the outbound navdata stream
type NavdataConfig struct {
	Destination string `yaml:"destination" json:"destination"` // consumer IP address or hostname
	Port        int    `yaml:"port" json:"port"`
	Variant     string `yaml:"variant" json:"variant"`       // demo or full
	Rate        int    `yaml:"rate" json:"rate"`             // packets per second, 0 for the variant default
	DebugEvery  uint32 `yaml:"debugEvery" json:"debugEvery"` // sequence interval between debug dumps, 0 disables them
}

// RosbridgeConfig represents the connection to the flight controller bridge
type RosbridgeConfig struct {
	URL                 string   `yaml:"url" json:"url"`
	HandshakeTimeout    Duration `yaml:"handshakeTimeout" json:"handshakeTimeout"`
	ServicePollInterval Duration `yaml:"servicePollInterval" json:"servicePollInterval"`
}

// RecorderConfig represents the optional flight recorder
type RecorderConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	DataDirectory string   `yaml:"dataDirectory" json:"dataDirectory"`
	QueueSize     int      `yaml:"queueSize" json:"queueSize"`
	MaxBatchSize  int      `yaml:"maxBatchSize" json:"maxBatchSize"`
	FlushInterval Duration `yaml:"flushInterval" json:"flushInterval"`
}

// NewConfig returns a configuration populated with defaults
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: defaultLogLevel},
		Navdata: NavdataConfig{
			Port:       navdata.DefaultPort,
			Variant:    string(navdata.VariantDemo),
			DebugEvery: scheduler.DefaultDebugEvery,
		},
		Rosbridge: RosbridgeConfig{
			URL:                 defaultRosbridgeURL,
			HandshakeTimeout:    Duration(scheduler.DefaultHandshakeTimeout),
			ServicePollInterval: Duration(mavros.DefaultServicePollInterval),
		},
		Mavros: mavros.DefaultConfig(),
		Recorder: RecorderConfig{
			DataDirectory: defaultDataDirectory,
			QueueSize:     defaultRecorderQueue,
			MaxBatchSize:  defaultRecorderBatch,
			FlushInterval: Duration(defaultRecorderFlush),
		},
	}
}

// LoadConfig reads the YAML configuration at path over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig reads a YAML configuration over the defaults and validates it
func ParseConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	c := NewConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, NewConfigError("parsing configuration: %s", err)
	}

	c.Mavros.ServicePollInterval = time.Duration(c.Rosbridge.ServicePollInterval)

	if err = c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	n := &c.Navdata
	if strings.TrimSpace(n.Destination) == "" {
		return NewConfigError("navdata.destination: is required")
	}
	if n.Port <= 0 || n.Port > 65535 {
		return NewConfigError("navdata.port: invalid port %d", n.Port)
	}
	variant, err := navdata.ParseVariant(n.Variant)
	if err != nil {
		return NewConfigError("navdata.variant: %s", err)
	}
	if _, err = navdata.NewEncoder(variant); err != nil {
		return NewConfigError("navdata.variant: %s", err)
	}
	if n.Rate < 0 {
		return NewConfigError("navdata.rate: must not be negative: %d", n.Rate)
	}

	r := &c.Rosbridge
	if !strings.HasPrefix(r.URL, "ws://") && !strings.HasPrefix(r.URL, "wss://") {
		return NewConfigError("rosbridge.url: expected a ws:// or wss:// URL, got '%s'", r.URL)
	}
	if r.HandshakeTimeout <= 0 {
		return NewConfigError("rosbridge.handshakeTimeout: must be greater than 0")
	}

	if err = c.Mavros.Validate(); err != nil {
		return NewConfigError("%s", err)
	}

	if rc := &c.Recorder; rc.Enabled {
		if rc.QueueSize <= 0 || rc.MaxBatchSize <= 0 {
			return NewConfigError("recorder: queueSize and maxBatchSize must be greater than 0")
		}
		if rc.FlushInterval <= 0 {
			return NewConfigError("recorder.flushInterval: must be greater than 0")
		}
	}

	return nil
}

// Variant returns the parsed navdata variant. Only valid after Validate.
func (c *Config) Variant() navdata.Variant {
	v, _ := navdata.ParseVariant(c.Navdata.Variant)
	return v
}
