package task_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/task"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

const rsuYAML = `
- id: R1
  x: 500
  y: 0
  tier: tier1
  junction: J2
  radius: 300
- id: R2
  x: 1000
  y: 0
  tier: tier1
  junction: J3
  radius: 300
`

const scenarioYAML = `
junctions:
  - {id: J1, x: 0, y: 0}
  - {id: J2, x: 500, y: 0}
  - {id: J3, x: 1000, y: 0}
  - {id: J4, x: 1500, y: 0}
edges:
  - {id: E1, from: J1, to: J2}
  - {id: E2, from: J2, to: J3}
  - {id: E3, from: J3, to: J4}
traffic_lights:
  - id: J2
    links:
      - {from: E1_0, to: E2_0}
    phases:
      - {states: r, duration: 1000}
      - {states: G, duration: 1000}
  - id: J3
    links:
      - {from: E2_0, to: E3_0}
    phases:
      - {states: r, duration: 1000}
      - {states: G, duration: 1000}
routes:
  - id: main
    edges: [E1, E2, E3]
`

func writeFile(t *testing.T, name, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Input: config.Input{
			RSU:      config.InputPath{File: writeFile(t, "rsu.yml", rsuYAML)},
			Scenario: config.InputPath{File: writeFile(t, "scenario.yml", scenarioYAML)},
		},
		Control: config.Control{
			Step:     config.ControlStep{Total: 60, Interval: 1},
			Episodes: 1,
			Seed:     3,
		},
		Ambulance: config.Ambulance{SpawnProb: 1, Speed: 22, Routes: []string{"main"}},
	}
}

func TestNewContext(t *testing.T) {
	ctx, err := task.NewContext("job0", testConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, ctx.Clock())
	assert.NotNil(t, ctx.Simulator())
	assert.NotNil(t, ctx.RSURegistry())
	assert.NotNil(t, ctx.Topology())
	assert.NotNil(t, ctx.Coordinator())
	assert.NotNil(t, ctx.Environment())
	assert.Len(t, ctx.GetInput().RSUs, 2)
}

func TestNewContextRejectsBadRegistry(t *testing.T) {
	c := testConfig(t)
	bad := `
- id: R1
  x: 500
  y: 0
  tier: tier1
  junction: J99
  radius: 300
`
	c.Input.RSU = config.InputPath{File: writeFile(t, "rsu_bad.yml", bad)}
	_, err := task.NewContext("job0", c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "J99")
}

func TestRunEpisodeBaseline(t *testing.T) {
	ctx, err := task.NewContext("job0", testConfig(t))
	require.NoError(t, err)

	ctx.RunEpisode(0)
	assert.True(t, ctx.Clock().Done())
	// 投放概率为1：本episode必然有救护车进入RSU覆盖并被检测
	assert.NotEmpty(t, ctx.Coordinator().Detector().History())
	assert.Equal(t, 60, ctx.Coordinator().Arbiter().Stats().Ticks)
}

func TestRunMultipleEpisodes(t *testing.T) {
	c := testConfig(t)
	c.Control.Episodes = 2
	ctx, err := task.NewContext("job0", c)
	require.NoError(t, err)
	ctx.Run()
	assert.True(t, ctx.Clock().Done())
}
