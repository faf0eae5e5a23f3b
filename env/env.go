// 强化学习环境，对外部学习器暴露Gym风格的Reset/Step接口
package env

import (
	"flag"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/coordinator"
)

var log = logrus.WithField("module", "env")

var (
	nearDistance = flag.Float64("env.near_distance", 50, "路口占用统计与拦停惩罚的距离范围（米）")
	slowSpeed    = flag.Float64("env.slow_speed", 2, "视为拦停的速度阈值（米/秒）")
	occupancyCap = flag.Float64("env.occupancy_cap", 20, "路口占用归一化上限（辆）")
	rewardClamp  = flag.Float64("env.reward_clamp", 10, "单步奖励的绝对值上限")
)

var (
	_ entity.IEnvironment = (*PhaseEnv)(nil)
	_ entity.IEnvironment = (*AmbulanceEnv)(nil)
)

// bounds 路网坐标包围盒，观测值归一化用
type bounds struct {
	minX, minY, maxX, maxY float64
}

func (b bounds) normX(x float64) float64 {
	if b.maxX <= b.minX {
		return 0
	}
	return (x - b.minX) / (b.maxX - b.minX)
}

func (b bounds) normY(y float64) float64 {
	if b.maxY <= b.minY {
		return 0
	}
	return (y - b.minY) / (b.maxY - b.minY)
}

func (b bounds) diag() float64 {
	return math.Hypot(b.maxX-b.minX, b.maxY-b.minY)
}

// PhaseEnv 相位控制环境
// 功能：把受控路口的信号相位选择暴露为逐tick的多路口决策问题
// 观测布局：每个受控路口2个值[归一化相位索引, 归一化占用]，
// 路口顺序与Junctions()一致且episode内不变
// 动作：每个受控路口一个整数，[0, 相位数)为切换到对应相位，
// 越界值视为保持不动
// 奖励：-(拦停车辆数/活跃车辆数)
type PhaseEnv struct {
	ctx      entity.ITaskContext
	coord    *coordinator.Coordinator
	resetSim func() error // episode起始时重建模拟器

	junctions   []string                  // 受控路口ID（拓扑顺序）
	tlOf        map[string]string         // 路口ID->信号灯ID
	phaseCnt    map[string]int            // 信号灯ID->相位数
	junctionPos map[string]geometry.Point // 路口ID->坐标
	box         bounds                    // 路网坐标包围盒

	episodeReward float64
}

// NewPhaseEnv 创建相位控制环境
// 参数：ctx-任务上下文，coord-应急协调器，resetSim-模拟器重建回调
func NewPhaseEnv(ctx entity.ITaskContext, coord *coordinator.Coordinator, resetSim func() error) *PhaseEnv {
	return &PhaseEnv{
		ctx:      ctx,
		coord:    coord,
		resetSim: resetSim,
	}
}

// Reset 复位环境，开始新episode
// 功能：重建模拟器、复位时钟与协调器状态、重建路口图并返回初始观测
// 说明：失败只可能来自配置级错误（静态表校验已前置），此处panic
func (e *PhaseEnv) Reset() ([]float64, map[string]any) {
	if err := e.resetSim(); err != nil {
		log.Panicf("env: reset simulator: %v", err)
	}
	e.ctx.Clock().Reset()
	e.coord.Reset()
	if err := e.coord.InitEpisode(); err != nil {
		log.Panicf("env: init episode: %v", err)
	}
	e.rebuildSpaces()
	e.episodeReward = 0

	obs := e.observe()
	info := map[string]any{
		"tick":           0,
		"episode_reward": 0.0,
	}
	return obs, info
}

// Step 推进一个tick
// 功能：施加相位动作、推进模拟、执行观测流水线并计算奖励
// 返回：terminated-模拟器整体失效，truncated-到达horizon
func (e *PhaseEnv) Step(actions []int) ([]float64, float64, bool, bool, map[string]any) {
	for i, j := range e.junctions {
		if i >= len(actions) {
			break
		}
		e.applyPhase(j, actions[i])
	}

	terminated := e.advance()
	reward := clamp(e.baseReward(e.snapshots()))
	e.episodeReward += reward

	obs := e.observe()
	info := map[string]any{
		"tick":           e.ctx.Clock().Tick,
		"episode_reward": e.episodeReward,
	}
	return obs, reward, terminated, e.ctx.Clock().Done(), info
}

// Junctions 获取受控路口ID列表（观测与动作的顺序约定）
func (e *PhaseEnv) Junctions() []string {
	out := make([]string, len(e.junctions))
	copy(out, e.junctions)
	return out
}

// PhaseCount 获取路口信号灯的相位数，未知路口返回0
func (e *PhaseEnv) PhaseCount(junctionID string) int {
	return e.phaseCnt[e.tlOf[junctionID]]
}

// rebuildSpaces 从路口图重建观测与动作空间的静态部分
func (e *PhaseEnv) rebuildSpaces() {
	sim := e.ctx.Simulator()
	e.junctions = make([]string, 0)
	e.tlOf = make(map[string]string)
	e.phaseCnt = make(map[string]int)
	e.junctionPos = make(map[string]geometry.Point)
	e.box = bounds{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, j := range e.ctx.Topology().All() {
		pos := j.Position()
		e.box.minX = math.Min(e.box.minX, pos.X)
		e.box.minY = math.Min(e.box.minY, pos.Y)
		e.box.maxX = math.Max(e.box.maxX, pos.X)
		e.box.maxY = math.Max(e.box.maxY, pos.Y)
		tlID := j.TrafficLightID()
		if tlID == "" {
			continue
		}
		program, err := sim.Program(tlID)
		if err != nil || len(program.Phases) == 0 {
			log.Warnf("junction %s: traffic light %s has no program, excluded from control", j.ID(), tlID)
			continue
		}
		e.junctions = append(e.junctions, j.ID())
		e.tlOf[j.ID()] = tlID
		e.phaseCnt[tlID] = len(program.Phases)
		e.junctionPos[j.ID()] = pos
	}
}

// applyPhase 对单个路口施加相位动作，越界动作与单灯失败均就地消化
func (e *PhaseEnv) applyPhase(junctionID string, phase int) {
	tlID := e.tlOf[junctionID]
	if tlID == "" {
		return
	}
	if phase < 0 || phase >= e.phaseCnt[tlID] {
		return
	}
	if err := e.ctx.Simulator().SetPhase(tlID, phase); err != nil {
		log.Debugf("junction %s: set phase %d: %v", junctionID, phase, err)
	}
}

// advance 推进模拟与协调流水线（不含绿波抢占），返回是否整体失效
func (e *PhaseEnv) advance() bool {
	clk := e.ctx.Clock()
	if err := e.ctx.Simulator().Step(clk.DT); err != nil {
		log.Errorf("simulator step failed at tick %d: %v", clk.Tick, err)
		return true
	}
	clk.Advance()
	if err := e.coord.Observe(); err != nil {
		log.Errorf("coordination observe failed at tick %d: %v", clk.Tick, err)
		return true
	}
	return false
}

// snapshots 拉取全部活跃车辆快照，单车失败跳过
func (e *PhaseEnv) snapshots() []entity.VehicleSnapshot {
	sim := e.ctx.Simulator()
	ids, err := sim.VehicleIDs()
	if err != nil {
		return nil
	}
	out := make([]entity.VehicleSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := sim.Vehicle(id)
		if err != nil {
			log.Debugf("vehicle %s vanished mid-tick: %v", id, err)
			continue
		}
		out = append(out, snap)
	}
	return out
}

// observe 构造基础观测向量
func (e *PhaseEnv) observe() []float64 {
	sim := e.ctx.Simulator()
	snaps := e.snapshots()
	obs := make([]float64, 0, 2*len(e.junctions))
	for _, j := range e.junctions {
		tlID := e.tlOf[j]
		phase := 0
		if p, err := sim.CurrentPhase(tlID); err == nil {
			phase = p
		}
		cnt := e.phaseCnt[tlID]
		normPhase := 0.0
		if cnt > 1 {
			normPhase = float64(phase) / float64(cnt-1)
		}
		obs = append(obs, normPhase, e.occupancy(j, snaps))
	}
	return obs
}

// occupancy 统计路口附近车辆数并归一化到[0,1]
func (e *PhaseEnv) occupancy(junctionID string, snaps []entity.VehicleSnapshot) float64 {
	pos := e.junctionPos[junctionID]
	n := 0
	for _, v := range snaps {
		if math.Hypot(v.Position.X-pos.X, v.Position.Y-pos.Y) <= *nearDistance {
			n++
		}
	}
	return math.Min(1, float64(n) / *occupancyCap)
}

// baseReward 基础奖励：活跃车辆中被拦停比例的相反数
func (e *PhaseEnv) baseReward(snaps []entity.VehicleSnapshot) float64 {
	if len(snaps) == 0 {
		return 0
	}
	stopped := 0
	for _, v := range snaps {
		if v.Speed < *slowSpeed {
			stopped++
		}
	}
	return -float64(stopped) / float64(len(snaps))
}

// clamp 将奖励截断到[-rewardClamp, rewardClamp]
func clamp(r float64) float64 {
	return math.Max(-*rewardClamp, math.Min(*rewardClamp, r))
}
