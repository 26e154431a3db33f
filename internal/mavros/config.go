package mavros

import (
	"fmt"
	"path"
	"time"
)

const (
	DefaultNamespace           = "mavros"
	DefaultCommandAckTopic     = "pikopter_cmd/cmd_received"
	DefaultExtendedStatusRate  = 1
	DefaultPositionRate        = 200
	DefaultQueueSize           = 10
	DefaultCommandAckQueueSize = 100
	DefaultServicePollInterval = 500 * time.Millisecond
)

// Config binds the relay to a mavros instance
type Config struct {
	Namespace           string        `yaml:"namespace"`
	CommandAckTopic     string        `yaml:"commandAckTopic"`
	ExtendedStatusRate  uint16        `yaml:"extendedStatusRate"` // Hz
	PositionRate        uint16        `yaml:"positionRate"`       // Hz
	QueueSize           int           `yaml:"queueSize"`
	CommandAckQueueSize int           `yaml:"commandAckQueueSize"`
	ServicePollInterval time.Duration `yaml:"-" json:"-"`
}

// DefaultConfig returns the configuration of a stock mavros setup
func DefaultConfig() Config {
	return Config{
		Namespace:           DefaultNamespace,
		CommandAckTopic:     DefaultCommandAckTopic,
		ExtendedStatusRate:  DefaultExtendedStatusRate,
		PositionRate:        DefaultPositionRate,
		QueueSize:           DefaultQueueSize,
		CommandAckQueueSize: DefaultCommandAckQueueSize,
		ServicePollInterval: DefaultServicePollInterval,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("mavros.Config: namespace is required")
	}
	if c.CommandAckTopic == "" {
		return fmt.Errorf("mavros.Config: commandAckTopic is required")
	}
	if c.ExtendedStatusRate == 0 || c.PositionRate == 0 {
		return fmt.Errorf("mavros.Config: stream rates must be greater than 0")
	}
	if c.QueueSize <= 0 || c.CommandAckQueueSize <= 0 {
		return fmt.Errorf("mavros.Config: queue sizes must be greater than 0")
	}
	if c.ServicePollInterval <= 0 {
		return fmt.Errorf("mavros.Config: service poll interval must be greater than 0")
	}

	return nil
}

// Topic returns name qualified with the mavros namespace
func (c *Config) Topic(name string) string {
	return path.Join(c.Namespace, name)
}

// StreamRateService returns the fully qualified stream rate service name
func (c *Config) StreamRateService() string {
	return path.Join("/", c.Namespace, "set_stream_rate")
}
