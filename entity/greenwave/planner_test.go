package greenwave_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/clock"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/greenwave"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/rsu"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/topology"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/sim/scenario"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

// 8路口长走廊，J2起每个路口有信控，用于验证展望窗口截断
func longCorridor() scenario.Definition {
	def := scenario.Definition{}
	for i := 1; i <= 8; i++ {
		def.Junctions = append(def.Junctions, scenario.JunctionDef{
			ID: fmt.Sprintf("J%d", i), X: float64(i-1) * 500, Y: 0,
		})
	}
	edges := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("E%d", i)
		def.Edges = append(def.Edges, scenario.EdgeDef{
			ID: id, From: fmt.Sprintf("J%d", i), To: fmt.Sprintf("J%d", i+1),
		})
		edges = append(edges, id)
	}
	for i := 2; i <= 8; i++ {
		links := []scenario.LinkDef{{
			From: fmt.Sprintf("E%d_0", i-1),
			To:   fmt.Sprintf("E%d_0", i),
		}}
		if i == 8 {
			links[0].To = "E7_0"
		}
		def.TrafficLights = append(def.TrafficLights, scenario.TrafficLightDef{
			ID:    fmt.Sprintf("J%d", i),
			Links: links,
			Phases: []scenario.PhaseDef{
				{States: "r", Duration: 1000},
				{States: "G", Duration: 1000},
			},
		})
	}
	def.Routes = []scenario.RouteDef{{ID: "main", Edges: edges}}
	return def
}

type testContext struct {
	clk  *clock.Clock
	sim  entity.ISimulator
	reg  entity.IRSURegistry
	topo entity.ITopology
	rc   *config.RuntimeConfig
}

func (c *testContext) Clock() *clock.Clock                  { return c.clk }
func (c *testContext) Simulator() entity.ISimulator         { return c.sim }
func (c *testContext) RSURegistry() entity.IRSURegistry     { return c.reg }
func (c *testContext) Topology() entity.ITopology           { return c.topo }
func (c *testContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }

func newTestContext(t *testing.T) (*testContext, *scenario.Simulator) {
	sim := scenario.New(longCorridor())
	reg := rsu.NewRegistry(nil)
	topo := topology.NewTopology()
	require.NoError(t, topo.Init(sim, reg))
	return &testContext{
		clk:  clock.New(config.ControlStep{Total: 100, Interval: 1}),
		sim:  sim,
		reg:  reg,
		topo: topo,
		rc:   config.NewRuntimeConfig(config.Config{}),
	}, sim
}

func route() []string {
	return []string{"E1", "E2", "E3", "E4", "E5", "E6", "E7"}
}

func TestPlanLookaheadWindow(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	veh := &entity.EmergencyVehicle{ID: "amb_1", EdgeID: "E1", Route: route()}
	wave := p.Plan(veh)
	// 展望5条边（E1..E5），覆盖路口J2..J6；J7/J8在窗口之外
	assert.Equal(t, []string{"J2", "J3", "J4", "J5", "J6"}, wave)
	assert.True(t, veh.GreenwaveActive)
	assert.Equal(t, wave, p.Active()["amb_1"])
}

func TestPlanAdvancesWithVehicle(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	veh := &entity.EmergencyVehicle{ID: "amb_1", EdgeID: "E4", Route: route()}
	wave := p.Plan(veh)
	// 窗口E4..E7，含终点路口J8
	assert.Equal(t, []string{"J4", "J5", "J6", "J7", "J8"}, wave)
}

func TestPlanIdempotent(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	veh := &entity.EmergencyVehicle{ID: "amb_1", EdgeID: "E2", Route: route()}
	first := p.Plan(veh)
	second := p.Plan(veh)
	assert.Equal(t, first, second)
	assert.Len(t, p.Active(), 1)
}

func TestPlanUnknownEdgeFallsBackToRouteStart(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	// 中途改道后当前边不在路线中，按路线起点处理
	veh := &entity.EmergencyVehicle{ID: "amb_1", EdgeID: "E99", Route: route()}
	wave := p.Plan(veh)
	assert.Equal(t, []string{"J2", "J3", "J4", "J5", "J6"}, wave)
}

func TestApplySwitchesToGreenPhase(t *testing.T) {
	ctx, sim := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	phase, err := sim.CurrentPhase("J2")
	require.NoError(t, err)
	require.Equal(t, 0, phase)

	p.Apply("J2", "E1")
	phase, err = sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 1, phase)
}

func TestApplyNeverReselectsCurrentPhase(t *testing.T) {
	ctx, sim := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	require.NoError(t, sim.SetPhase("J2", 1))
	// 当前相位已对目标连接放行，不存在其他可选相位，保持不变
	p.Apply("J2", "E1")
	phase, err := sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 1, phase)
}

// 多连接信号灯：来源边为[E1,E1,E2,E2]的双向双车道路口
func multiLinkCrossing() scenario.Definition {
	return scenario.Definition{
		Junctions: []scenario.JunctionDef{
			{ID: "J1", X: 0, Y: 0},
			{ID: "J2", X: 500, Y: 0},
			{ID: "J3", X: 1000, Y: 0},
		},
		Edges: []scenario.EdgeDef{
			{ID: "E1", From: "J1", To: "J2"},
			{ID: "E2", From: "J2", To: "J3"},
		},
		TrafficLights: []scenario.TrafficLightDef{
			{
				ID: "J2",
				Links: []scenario.LinkDef{
					{From: "E1_0", To: "E2_0"},
					{From: "E1_1", To: "E2_1"},
					{From: "E2_0", To: "E1_0"},
					{From: "E2_1", To: "E1_1"},
				},
				Phases: []scenario.PhaseDef{
					{States: "rrGG", Duration: 1000},
					{States: "Grrr", Duration: 1000},
					{States: "GGrr", Duration: 1000},
				},
			},
		},
	}
}

func TestApplyRequiresAllTargetLinksGreen(t *testing.T) {
	sim := scenario.New(multiLinkCrossing())
	reg := rsu.NewRegistry(nil)
	topo := topology.NewTopology()
	require.NoError(t, topo.Init(sim, reg))
	ctx := &testContext{
		clk:  clock.New(config.ControlStep{Total: 100, Interval: 1}),
		sim:  sim,
		reg:  reg,
		topo: topo,
		rc:   config.NewRuntimeConfig(config.Config{}),
	}
	p := greenwave.NewPlanner(ctx)

	// 来自E1的目标索引为[0,1]：相位"Grrr"只放行索引0不合格，
	// 取首个全绿的"GGrr"
	p.Apply("J2", "E1")
	phase, err := sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 2, phase)

	// 来自E2的目标索引为[2,3]：唯一全绿相位"rrGG"即当前相位，保持不变
	require.NoError(t, sim.SetPhase("J2", 0))
	p.Apply("J2", "E2")
	phase, err = sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 0, phase)
}

func TestApplyNoMatchingLinks(t *testing.T) {
	ctx, sim := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	// 该信号灯没有来自E5的进入连接，无事可做
	p.Apply("J2", "E5")
	phase, err := sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 0, phase)
}

func TestRemoveAndReset(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := greenwave.NewPlanner(ctx)

	p.Plan(&entity.EmergencyVehicle{ID: "amb_1", EdgeID: "E1", Route: route()})
	p.Plan(&entity.EmergencyVehicle{ID: "amb_2", EdgeID: "E3", Route: route()})
	require.Len(t, p.Active(), 2)

	p.Remove("amb_1")
	assert.NotContains(t, p.Active(), "amb_1")
	assert.Contains(t, p.Active(), "amb_2")

	p.Reset()
	assert.Empty(t, p.Active())
}
