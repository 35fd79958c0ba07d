package config

import (
	"fmt"
	"os"

	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"gopkg.in/yaml.v3"
)

// Config is the run configuration shared by the CLI and the web service.
type Config struct {
	Mode       string  `yaml:"mode"`
	Penalty    float64 `yaml:"penalty"`
	AngleBound float64 `yaml:"angle_bound"`
	Workers    int     `yaml:"workers"`
	Tolerance  float64 `yaml:"tolerance"`

	// Steps lists the profile indices to solve, empty for the scalar snapshot.
	Steps []int `yaml:"steps"`
	// LPDir receives one LP file per island when set.
	LPDir string `yaml:"lp_dir"`
	// History is the number of results kept in memory by the dispatcher.
	History int `yaml:"history"`

	Listen string `yaml:"listen"`
	Sinks  Sinks  `yaml:"sinks"`
	// Telemetry is the path of a Modbus poller configuration. Measured
	// device powers overwrite the snapshot before the solve and the
	// dispatched set points are written back after it.
	Telemetry string `yaml:"telemetry"`
}

// Sinks holds the paths of the JSON configuration of each result sink.
// An empty path disables the sink.
type Sinks struct {
	Mongo string `yaml:"mongo"`
	NATS  string `yaml:"nats"`
	SQL   string `yaml:"sql"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	d := dcopf.DefaultOptions()
	return Config{
		Mode:       d.Mode.String(),
		Penalty:    d.Penalty,
		AngleBound: d.AngleBound,
		Workers:    d.Workers,
		Tolerance:  d.Tolerance,
		History:    100,
		Listen:     ":8080",
	}
}

// Load reads a YAML configuration on top of the defaults. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open run config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in run config: %w", err)
	}
	if _, err := cfg.Options(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Options converts the configuration into builder options.
func (c Config) Options() (dcopf.Options, error) {
	mode, err := dcopf.ParseMode(c.Mode)
	if err != nil {
		return dcopf.Options{}, err
	}
	return dcopf.Options{
		Mode:       mode,
		Penalty:    c.Penalty,
		AngleBound: c.AngleBound,
		Workers:    c.Workers,
		Tolerance:  c.Tolerance,
	}, nil
}
