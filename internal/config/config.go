package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Verbose enables debug output when true
var Verbose bool

// Log is the process-wide logger. SetVerbose switches it to debug level.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose sets Verbose and the matching log level.
func SetVerbose(v bool) {
	Verbose = v
	if v {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// Debugf prints debug messages when Verbose is true
func Debugf(format string, args ...any) {
	if Verbose {
		Log.Debugf(format, args...)
	}
}

type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Redis    RedisConfig   `yaml:"redis"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Capture  CaptureConfig `yaml:"capture"`
}

type DeviceConfig struct {
	// Name is matched case-insensitively against advertised local names.
	Name        string        `yaml:"name"`
	Service     string        `yaml:"service"`
	WriteChar   string        `yaml:"write_char"`
	NotifyChar  string        `yaml:"notify_char"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

type TimeoutConfig struct {
	Request time.Duration `yaml:"request"`
	History time.Duration `yaml:"history"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type CaptureConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:        "2208",
			Service:     "0000FFF0-0000-1000-8000-00805F9B34FB",
			WriteChar:   "0000FFF6-0000-1000-8000-00805F9B34FB",
			NotifyChar:  "0000FFF7-0000-1000-8000-00805F9B34FB",
			ScanTimeout: 20 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Request: 5 * time.Second,
			History: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "braceletctl",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		Capture: CaptureConfig{
			Dir: ".",
		},
	}
}

// Load overlays the YAML file at path on Default. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name is empty")
	}
	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts.request must be positive, have %s", c.Timeouts.Request)
	}
	if c.Timeouts.History < c.Timeouts.Request {
		return fmt.Errorf("timeouts.history (%s) is shorter than timeouts.request (%s)", c.Timeouts.History, c.Timeouts.Request)
	}
	return nil
}
