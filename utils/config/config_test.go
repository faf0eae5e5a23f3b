package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
	"gopkg.in/yaml.v2"
)

func TestRuntimeConfigDefaults(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{})
	assert.Equal(t, 1, rc.C.Episodes)
	assert.Equal(t, "emergency", rc.E.TypeLabel)
	assert.Equal(t, 0.15, rc.A.SpawnProb)
	assert.Equal(t, 22.0, rc.A.Speed)
}

func TestRuntimeConfigExplicit(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{
		Control:   config.Control{Episodes: 3, Seed: 42},
		Emergency: config.Emergency{TypeLabel: "rescue"},
		Ambulance: config.Ambulance{SpawnProb: 0.5, Speed: 15, Routes: []string{"r1"}},
	})
	assert.Equal(t, 3, rc.C.Episodes)
	assert.Equal(t, uint64(42), rc.C.Seed)
	assert.Equal(t, "rescue", rc.E.TypeLabel)
	assert.Equal(t, 0.5, rc.A.SpawnProb)
	assert.Equal(t, 15.0, rc.A.Speed)
	assert.Equal(t, []string{"r1"}, rc.A.Routes)
}

func TestConfigYAML(t *testing.T) {
	data := `
input:
  uri: mongodb://localhost:27017
  rsu:
    file: data/rsu.yml
  scenario:
    db: sim
    col: scenario
control:
  step:
    total: 3600
    interval: 1.0
  episodes: 2
  seed: 7
emergency:
  type_label: emergency
ambulance:
  spawn_prob: 0.15
  speed: 22
  routes: [main, side]
`
	var c config.Config
	assert.NoError(t, yaml.UnmarshalStrict([]byte(data), &c))
	assert.Equal(t, "data/rsu.yml", c.Input.RSU.File)
	assert.Equal(t, "sim", c.Input.Scenario.DB)
	assert.Equal(t, 3600, c.Control.Step.Total)
	assert.Equal(t, 1.0, c.Control.Step.Interval)
	assert.Equal(t, 2, c.Control.Episodes)
	assert.Equal(t, []string{"main", "side"}, c.Ambulance.Routes)
}
