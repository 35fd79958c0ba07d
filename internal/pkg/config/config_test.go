package config

import (
	"testing"

	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"gotest.tools/v3/assert"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("./config_test_config.yaml")
	assert.NilError(t, err)

	assert.Equal(t, cfg.Mode, "shedding")
	assert.Equal(t, cfg.Penalty, 250.0)
	assert.Equal(t, cfg.Workers, 4)
	assert.DeepEqual(t, cfg.Steps, []int{0, 2})
	assert.Equal(t, cfg.LPDir, "./lp")
	assert.Equal(t, cfg.History, 10)
	assert.Equal(t, cfg.Listen, ":9090")
	assert.Equal(t, cfg.Sinks.Mongo, "./config/database/mongodb_config.json")
	assert.Equal(t, cfg.Sinks.SQL, "")
	assert.Equal(t, cfg.Telemetry, "./config/comm/modbus_config.json")

	// defaults survive keys missing from the file
	assert.Equal(t, cfg.AngleBound, dcopf.DefaultAngleBound)

	opts, err := cfg.Options()
	assert.NilError(t, err)
	assert.Equal(t, opts.Mode, dcopf.LoadShedding)
	assert.Equal(t, opts.Penalty, 250.0)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, Default())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("./config_test_bad_mode.yaml")
	assert.ErrorIs(t, err, dcopf.ErrUnknownMode)

	_, err = Load("./config_test_unknown_key.yaml")
	assert.ErrorContains(t, err, "YAML syntax error")

	_, err = Load("./does_not_exist.yaml")
	assert.ErrorContains(t, err, "failed to open run config")
}
