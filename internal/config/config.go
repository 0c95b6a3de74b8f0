package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hipsterbrown/acquisition-probe/bench"
	"github.com/hipsterbrown/acquisition-probe/probe"
)

const (
	defaultEndpoint  = "COM10"
	defaultExportDir = "data"
	defaultLogLevel  = "info"
)

// Duration accepts Go duration strings ("10ms") or a plain number of
// seconds. Negative values are rejected.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := decodeDuration(value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: negative duration %q", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func decodeDuration(value *yaml.Node) (time.Duration, error) {
	if value.Tag == "!!int" || value.Tag == "!!float" {
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Endpoint    string   `yaml:"endpoint"`
	BaudRate    int      `yaml:"baud_rate"`
	Warmup      int      `yaml:"warmup"`
	WarmupDelay Duration `yaml:"warmup_delay"`
	Trials      int      `yaml:"trials"`
	Delay       Duration `yaml:"delay"`
	BaselineMs  float64  `yaml:"baseline_ms"`
	TargetMs    float64  `yaml:"target_ms"`
	ExportDir   string   `yaml:"export_dir"`
	LogLevel    string   `yaml:"log_level"`
}

// Default returns the settings used when no config file is given.
func Default() Config {
	b := bench.DefaultConfig()
	return Config{
		Endpoint:    defaultEndpoint,
		BaudRate:    probe.DefaultBaudRate,
		Warmup:      b.Warmup,
		WarmupDelay: Duration(b.WarmupDelay),
		Trials:      b.Trials,
		Delay:       Duration(b.Delay),
		BaselineMs:  b.BaselineMillis,
		TargetMs:    b.TargetMillis,
		ExportDir:   defaultExportDir,
		LogLevel:    defaultLogLevel,
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, "endpoint is required")
	}
	if c.BaudRate <= 0 {
		errs = append(errs, "baud_rate must be > 0")
	}
	if c.Trials <= 0 {
		errs = append(errs, "trials must be > 0")
	}
	if c.Warmup < 0 {
		errs = append(errs, "warmup must be >= 0")
	}
	if c.WarmupDelay < 0 || c.Delay < 0 {
		errs = append(errs, "delays must be >= 0")
	}
	if c.BaselineMs < 0 || c.TargetMs < 0 {
		errs = append(errs, "baseline_ms and target_ms must be >= 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Probe returns the probe construction settings.
func (c Config) Probe() probe.Config {
	return probe.Config{
		Endpoint: c.Endpoint,
		BaudRate: c.BaudRate,
	}
}

// Bench returns the benchmark run settings.
func (c Config) Bench() bench.Config {
	return bench.Config{
		Warmup:         c.Warmup,
		WarmupDelay:    c.WarmupDelay.Duration(),
		Trials:         c.Trials,
		Delay:          c.Delay.Duration(),
		BaselineMillis: c.BaselineMs,
		TargetMillis:   c.TargetMs,
		KeepFailures:   bench.DefaultKeepFailures,
	}
}
