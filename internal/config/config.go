package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Store  StoreConfig  `yaml:"store"`
	Web    WebConfig    `yaml:"web"`
	PPS    PPSConfig    `yaml:"pps"`

	// DisplayIntervalRaw is how often the running clock and staleness are
	// logged, as a time.ParseDuration string ("10s"). Parsed into
	// DisplayInterval by DefaultAndValidate.
	DisplayIntervalRaw string        `yaml:"display_interval"`
	DisplayInterval    time.Duration `yaml:"-"`

	// GSARateCycles throttles the fix-quality sentence: report every N
	// cycles. Zero is invalid (suppressing GSA would blind the time
	// authority).
	GSARateCycles int `yaml:"gsa_rate_cycles"`
}

type SerialConfig struct {
	// Device may be empty to auto-detect /dev/ttyACM* then /dev/ttyUSB*.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type PPSConfig struct {
	Enable bool `yaml:"enable"`
	// Line is the GPIO line name carrying the receiver's PPS output,
	// e.g. "GPIO18" on a Pi.
	Line string `yaml:"line"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func DefaultAndValidate(cfg *Config) error {
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 9600
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0")
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "/var/lib/gpstimed/fix.yaml"
	}
	if cfg.Web.Enable && cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.PPS.Enable && cfg.PPS.Line == "" {
		return fmt.Errorf("pps.line is required when pps.enable is true")
	}
	if cfg.DisplayIntervalRaw == "" {
		cfg.DisplayInterval = 10 * time.Second
	} else {
		d, err := time.ParseDuration(cfg.DisplayIntervalRaw)
		if err != nil {
			return fmt.Errorf("invalid display_interval %q: %w", cfg.DisplayIntervalRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("display_interval must be > 0")
		}
		cfg.DisplayInterval = d
	}
	if cfg.GSARateCycles == 0 {
		cfg.GSARateCycles = 1
	}
	if cfg.GSARateCycles < 0 {
		return fmt.Errorf("gsa_rate_cycles must be > 0")
	}
	return nil
}
