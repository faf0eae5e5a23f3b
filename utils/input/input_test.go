package input_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/sim/scenario"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/input"
)

const rsuYAML = `
- id: R1
  x: 500
  y: 0
  tier: tier1
  junction: J2
  radius: 200
  description: main intersection
- id: R2
  x: 750
  y: 0
  tier: tier2
  radius: 150
`

const scenarioYAML = `
junctions:
  - {id: J1, x: 0, y: 0}
  - {id: J2, x: 500, y: 0}
  - {id: J3, x: 1000, y: 0}
edges:
  - {id: E1, from: J1, to: J2}
  - {id: E2, from: J2, to: J3}
traffic_lights:
  - id: J2
    links:
      - {from: E1_0, to: E2_0}
    phases:
      - {states: r, duration: 30}
      - {states: G, duration: 30}
routes:
  - id: main
    edges: [E1, E2]
`

func writeFile(t *testing.T, name, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestInitFromFiles(t *testing.T) {
	cfg := config.Input{
		RSU:      config.InputPath{File: writeFile(t, "rsu.yml", rsuYAML)},
		Scenario: config.InputPath{File: writeFile(t, "scenario.yml", scenarioYAML)},
	}
	res, err := input.Init(cfg)
	require.NoError(t, err)

	require.Len(t, res.RSUs, 2)
	r1 := res.RSUs[0]
	assert.Equal(t, "R1", r1.ID)
	assert.Equal(t, 500.0, r1.Position.X)
	assert.Equal(t, entity.Tier1Intersection, r1.Tier)
	assert.Equal(t, "J2", r1.JunctionID)
	assert.Equal(t, 200.0, r1.Radius)
	assert.Equal(t, entity.Tier2Segment, res.RSUs[1].Tier)
	assert.Equal(t, "", res.RSUs[1].JunctionID)

	require.NotNil(t, res.Scenario)
	assert.Len(t, res.Scenario.Junctions, 3)
	assert.Len(t, res.Scenario.Edges, 2)
	require.Len(t, res.Scenario.TrafficLights, 1)
	assert.Equal(t, "J2", res.Scenario.TrafficLights[0].ID)
	assert.Equal(t, []string{"E1", "E2"}, res.Scenario.Routes[0].Edges)
}

func TestInitBadTier(t *testing.T) {
	cfg := config.Input{
		RSU:      config.InputPath{File: writeFile(t, "rsu.yml", "- {id: R1, x: 0, y: 0, tier: tier9, radius: 100}")},
		Scenario: config.InputPath{File: writeFile(t, "scenario.yml", scenarioYAML)},
	}
	_, err := input.Init(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "R1")
}

func TestInitMissingFile(t *testing.T) {
	cfg := config.Input{
		RSU:      config.InputPath{File: filepath.Join(t.TempDir(), "nope.yml")},
		Scenario: config.InputPath{File: writeFile(t, "scenario.yml", scenarioYAML)},
	}
	_, err := input.Init(cfg)
	assert.Error(t, err)
}

func TestInitNoSourceConfigured(t *testing.T) {
	// 既无文件也无MongoDB URI
	_, err := input.Init(config.Input{})
	assert.Error(t, err)
}

func TestScenarioBSONKeys(t *testing.T) {
	// MongoDB文档与YAML共用同一套键名，多词字段（traffic_lights）
	// 不得退化到小写字段名解码
	doc := bson.M{
		"junctions": bson.A{
			bson.M{"id": "J1", "x": 0.0, "y": 0.0},
			bson.M{"id": "J2", "x": 500.0, "y": 0.0},
		},
		"edges": bson.A{
			bson.M{"id": "E1", "from": "J1", "to": "J2"},
		},
		"traffic_lights": bson.A{
			bson.M{
				"id":    "J2",
				"links": bson.A{bson.M{"from": "E1_0", "to": "E1_0"}},
				"phases": bson.A{
					bson.M{"states": "r", "duration": 30.0},
					bson.M{"states": "G", "duration": 30.0},
				},
			},
		},
		"routes": bson.A{
			bson.M{"id": "main", "edges": bson.A{"E1"}},
		},
	}
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var def scenario.Definition
	require.NoError(t, bson.Unmarshal(raw, &def))
	assert.Len(t, def.Junctions, 2)
	require.Len(t, def.TrafficLights, 1)
	assert.Equal(t, "J2", def.TrafficLights[0].ID)
	require.Len(t, def.TrafficLights[0].Links, 1)
	assert.Equal(t, "E1_0", def.TrafficLights[0].Links[0].From)
	assert.Equal(t, "G", def.TrafficLights[0].Phases[1].States)
	assert.Equal(t, []string{"E1"}, def.Routes[0].Edges)
}

func TestInitUnknownField(t *testing.T) {
	cfg := config.Input{
		RSU:      config.InputPath{File: writeFile(t, "rsu.yml", "- {id: R1, x: 0, y: 0, tier: tier1, radius: 100, bogus: 1}")},
		Scenario: config.InputPath{File: writeFile(t, "scenario.yml", scenarioYAML)},
	}
	_, err := input.Init(cfg)
	assert.Error(t, err)
}
