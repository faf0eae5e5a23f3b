package scenario_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/sim/scenario"
)

func testDef() scenario.Definition {
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
				ID:    "J2",
				Links: []scenario.LinkDef{{From: "E1_0", To: "E2_0"}},
				Phases: []scenario.PhaseDef{
					{States: "r", Duration: 1000},
					{States: "G", Duration: 1000},
				},
			},
		},
		Routes: []scenario.RouteDef{
			{ID: "main", Edges: []string{"E1", "E2"}},
		},
	}
}

func TestVehicleAdvance(t *testing.T) {
	sim := scenario.New(testDef())
	require.NoError(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 100}))

	require.NoError(t, sim.Step(1))
	require.NoError(t, sim.Step(1))

	snap, err := sim.Vehicle("v1")
	require.NoError(t, err)
	assert.Equal(t, "E1", snap.EdgeID)
	assert.Equal(t, "E1_0", snap.LaneID)
	assert.Equal(t, 200.0, snap.LanePosition)
	assert.Equal(t, 200.0, snap.Position.X)
	assert.Equal(t, 0.0, snap.Heading)
	assert.Equal(t, 100.0, snap.Speed)
	assert.Equal(t, []string{"E1", "E2"}, snap.Route)
}

func TestVehicleHeldAtRedLight(t *testing.T) {
	sim := scenario.New(testDef())
	require.NoError(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 100}))

	for ri := 0; ri < 10; ri++ {
		require.NoError(t, sim.Step(1))
	}
	snap, err := sim.Vehicle("v1")
	require.NoError(t, err)
	// 停在E1末端等待红灯
	assert.Equal(t, "E1", snap.EdgeID)
	assert.Equal(t, 500.0, snap.LanePosition)
	assert.Equal(t, 0.0, snap.Speed)

	require.NoError(t, sim.SetPhase("J2", 1))
	require.NoError(t, sim.Step(1))
	snap, err = sim.Vehicle("v1")
	require.NoError(t, err)
	assert.Equal(t, "E2", snap.EdgeID)
}

func TestVehicleLeavesAtRouteEnd(t *testing.T) {
	sim := scenario.New(testDef())
	require.NoError(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 100}))
	require.NoError(t, sim.SetPhase("J2", 1))

	for ri := 0; ri < 11; ri++ {
		require.NoError(t, sim.Step(1))
	}
	ids, err := sim.VehicleIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = sim.Vehicle("v1")
	assert.ErrorIs(t, err, scenario.ErrNoSuchVehicle)
}

func TestDelayedDepart(t *testing.T) {
	def := testDef()
	def.Vehicles = []scenario.VehicleDef{
		{ID: "v1", Route: "main", Speed: 10, Depart: 3},
	}
	sim := scenario.New(def)

	ids, _ := sim.VehicleIDs()
	assert.Empty(t, ids)
	for ri := 0; ri < 3; ri++ {
		require.NoError(t, sim.Step(1))
	}
	ids, _ = sim.VehicleIDs()
	assert.Equal(t, []string{"v1"}, ids)
}

func TestSetSignalStates(t *testing.T) {
	sim := scenario.New(testDef())

	// 状态串长度必须等于连接表长度
	assert.Error(t, sim.SetSignalStates("J2", "GG"))
	assert.Error(t, sim.SetSignalStates("J9", "G"))

	require.NoError(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 100}))
	require.NoError(t, sim.SetSignalStates("J2", "G"))
	for ri := 0; ri < 6; ri++ {
		require.NoError(t, sim.Step(1))
	}
	snap, err := sim.Vehicle("v1")
	require.NoError(t, err)
	// 写入的状态串覆盖程序相位，车辆放行
	assert.Equal(t, "E2", snap.EdgeID)
}

func TestCreateVehicleValidation(t *testing.T) {
	sim := scenario.New(testDef())
	assert.Error(t, sim.CreateVehicle("v1", "nope", entity.VehicleOptions{Speed: 10}))
	require.NoError(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 10}))
	assert.Error(t, sim.CreateVehicle("v1", "main", entity.VehicleOptions{Speed: 10}))
}

func TestTrafficLightQueries(t *testing.T) {
	sim := scenario.New(testDef())

	tls, err := sim.TrafficLightIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"J2"}, tls)

	links, err := sim.ControlledLinks("J2")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "E1", links[0].SourceEdge())

	lanes, err := sim.ControlledLanes("J2")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1_0"}, lanes)

	program, err := sim.Program("J2")
	require.NoError(t, err)
	require.Len(t, program.Phases, 2)
	assert.Equal(t, "r", program.Phases[0].States)

	phase, err := sim.CurrentPhase("J2")
	require.NoError(t, err)
	assert.Equal(t, 0, phase)

	assert.Error(t, sim.SetPhase("J2", 5))
}

func TestNetworkSignature(t *testing.T) {
	a := scenario.New(testDef())
	b := scenario.New(testDef())
	assert.Equal(t, a.NetworkSignature(), b.NetworkSignature())

	changed := testDef()
	changed.Edges[0].Length = 900
	c := scenario.New(changed)
	assert.NotEqual(t, a.NetworkSignature(), c.NetworkSignature())

	// 车辆不属于路网静态部分
	withVeh := testDef()
	withVeh.Vehicles = []scenario.VehicleDef{{ID: "v1", Route: "main", Speed: 10}}
	d := scenario.New(withVeh)
	assert.Equal(t, a.NetworkSignature(), d.NetworkSignature())
}

func TestRouteQueries(t *testing.T) {
	sim := scenario.New(testDef())
	ids, err := sim.RouteIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, ids)

	edges, ok := sim.RouteEdges("main")
	assert.True(t, ok)
	assert.Equal(t, []string{"E1", "E2"}, edges)
	_, ok = sim.RouteEdges("nope")
	assert.False(t, ok)
}
