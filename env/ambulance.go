package env

import (
	"flag"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/coordinator"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/randengine"
)

var (
	clearanceScale   = flag.Float64("env.clearance_scale", 100, "救护车通关奖励常数，奖励为该值除以通关用时（秒）")
	slowPenalty      = flag.Float64("env.slow_penalty", 1, "救护车在路口附近被拦停的单步惩罚")
	likelyTargetDist = flag.Float64("env.likely_target_distance", 500, "likely-target特征的距离上限（米）")
	headingAlignDeg  = flag.Float64("env.heading_align", 45, "heading-align特征的夹角上限（度）")
	etaCap           = flag.Float64("env.eta_cap", 300, "ETA特征归一化上限（秒）")
)

// 救护车全局观测块的宽度：
// 存在标志、归一化坐标x/y、归一化目标坐标x/y、归一化速度、
// 归一化航向、朝向独热（东北西南）
const globalBlockSize = 11

// 每路口救护车观测块的宽度：归一化距离、归一化ETA、likely-target、heading-align
const perJunctionBlockSize = 4

// AmbulanceEnv 救护车感知环境
// 功能：在相位控制环境上叠加救护车投放、按路口的绿波抢占动作
// 与通关奖励塑形
// 观测布局：基础观测（每路口2值）后接全局救护车块（11值）、
// 每路口救护车块（每路口4值）；无活跃救护车时两块全零
// 动作：每个受控路口一个整数，[0, 相位数)为切换相位，
// 相位数为preempt（对该路口施加绿波抢占），相位数+1为hold（保持当前相位并重置计时）
// 说明：每episode以配置概率随机决定是否投放一辆救护车，
// 投放tick在前半程内均匀随机；同一种子下投放序列可复现
type AmbulanceEnv struct {
	*PhaseEnv

	engine *randengine.Engine

	episode     int
	spawnTick   int // 本episode的投放tick，-1表示不投放
	ambulanceID string
	spawned     bool
	cleared     bool
	clearTick   int
}

// NewAmbulanceEnv 创建救护车感知环境
// 参数：ctx-任务上下文，coord-应急协调器，resetSim-模拟器重建回调
func NewAmbulanceEnv(ctx entity.ITaskContext, coord *coordinator.Coordinator, resetSim func() error) *AmbulanceEnv {
	return &AmbulanceEnv{
		PhaseEnv: NewPhaseEnv(ctx, coord, resetSim),
		engine:   randengine.New(ctx.RuntimeConfig().C.Seed),
	}
}

// Reset 复位环境并决定本episode的救护车投放计划
func (e *AmbulanceEnv) Reset() ([]float64, map[string]any) {
	obs, info := e.PhaseEnv.Reset()
	e.episode++
	e.spawned = false
	e.cleared = false
	e.ambulanceID = ""
	e.spawnTick = -1
	cfg := e.ctx.RuntimeConfig()
	if e.engine.PTrue(cfg.A.SpawnProb) {
		half := e.ctx.Clock().HORIZON / 2
		if half < 1 {
			half = 1
		}
		e.spawnTick = e.engine.Intn(half)
		log.Debugf("episode %d: ambulance scheduled at tick %d", e.episode, e.spawnTick)
	}

	obs = append(obs, e.ambulanceObs()...)
	info["ambulance_active"] = false
	info["ambulance_cleared"] = false
	return obs, info
}

// Step 推进一个tick
// 功能：施加相位/preempt/hold动作、按计划投放救护车、推进模拟、
// 维护救护车生命周期并计算塑形后的奖励
func (e *AmbulanceEnv) Step(actions []int) ([]float64, float64, bool, bool, map[string]any) {
	sim := e.ctx.Simulator()
	for i, j := range e.junctions {
		if i >= len(actions) {
			break
		}
		a := actions[i]
		cnt := e.phaseCnt[e.tlOf[j]]
		switch {
		case a >= 0 && a < cnt:
			e.applyPhase(j, a)
		case a == cnt:
			e.preempt(j)
		case a == cnt+1:
			// hold：重设当前相位以重置计时器，防止程序自动切相
			if phase, err := sim.CurrentPhase(e.tlOf[j]); err == nil {
				e.applyPhase(j, phase)
			}
		default:
			log.Debugf("junction %s: invalid action %d ignored", j, a)
		}
	}

	e.maybeSpawn()
	terminated := e.advance()
	clearedNow := e.updateLifecycle()

	reward := e.baseReward(e.snapshots())
	reward -= e.blockedPenalty()
	if clearedNow {
		dur := float64(e.clearTick-e.spawnTick) * e.ctx.Clock().DT
		if dur > 0 {
			reward += *clearanceScale / dur
		}
		log.Infof("episode %d: ambulance %s cleared after %.0fs", e.episode, e.ambulanceID, dur)
	}
	reward = clamp(reward)
	e.episodeReward += reward

	obs := append(e.observe(), e.ambulanceObs()...)
	info := map[string]any{
		"tick":              e.ctx.Clock().Tick,
		"episode_reward":    e.episodeReward,
		"ambulance_active":  e.spawned && !e.cleared,
		"ambulance_cleared": e.cleared,
	}
	return obs, reward, terminated, e.ctx.Clock().Done(), info
}

// ActionPreempt 获取路口的preempt动作编码
func (e *AmbulanceEnv) ActionPreempt(junctionID string) int {
	return e.phaseCnt[e.tlOf[junctionID]]
}

// ActionHold 获取路口的hold动作编码
func (e *AmbulanceEnv) ActionHold(junctionID string) int {
	return e.phaseCnt[e.tlOf[junctionID]] + 1
}

// preempt 对单个路口施加绿波抢占
// 说明：只对绿波规划结果包含该路口信号灯的车辆生效，
// 无被跟踪车辆或路口不在任何绿波内时为空操作
func (e *AmbulanceEnv) preempt(junctionID string) {
	tlID := e.tlOf[junctionID]
	if tlID == "" {
		return
	}
	planner := e.coord.Planner()
	for _, veh := range e.coord.Detector().Vehicles() {
		wave := planner.Plan(veh)
		if lo.Contains(wave, tlID) {
			planner.Apply(tlID, veh.EdgeID)
		}
	}
}

// maybeSpawn 到达投放tick时创建救护车
func (e *AmbulanceEnv) maybeSpawn() {
	if e.spawned || e.spawnTick < 0 || e.ctx.Clock().Tick < e.spawnTick {
		return
	}
	sim := e.ctx.Simulator()
	cfg := e.ctx.RuntimeConfig()
	routes := cfg.A.Routes
	if len(routes) == 0 {
		all, err := sim.RouteIDs()
		if err != nil || len(all) == 0 {
			log.Warnf("episode %d: no routes available, ambulance spawn skipped", e.episode)
			e.spawnTick = -1
			return
		}
		routes = all
	}
	routeID := routes[e.engine.Intn(len(routes))]
	id := fmt.Sprintf("amb_%d_%d", e.episode, e.spawnTick)
	err := sim.CreateVehicle(id, routeID, entity.VehicleOptions{
		Speed:     cfg.A.Speed,
		TypeLabel: cfg.E.TypeLabel,
	})
	if err != nil {
		log.Warnf("episode %d: create ambulance on route %s: %v", e.episode, routeID, err)
		e.spawnTick = -1
		return
	}
	e.spawned = true
	e.ambulanceID = id
	log.Infof("episode %d: ambulance %s spawned on route %s at tick %d", e.episode, id, routeID, e.ctx.Clock().Tick)
}

// updateLifecycle 维护救护车生命周期，返回本tick是否通关
func (e *AmbulanceEnv) updateLifecycle() bool {
	if !e.spawned || e.cleared {
		return false
	}
	if _, err := e.ctx.Simulator().Vehicle(e.ambulanceID); err != nil {
		e.cleared = true
		e.clearTick = e.ctx.Clock().Tick
		return true
	}
	return false
}

// blockedPenalty 救护车在受控路口附近被拦停时的惩罚
func (e *AmbulanceEnv) blockedPenalty() float64 {
	if !e.spawned || e.cleared {
		return 0
	}
	snap, err := e.ctx.Simulator().Vehicle(e.ambulanceID)
	if err != nil || snap.Speed >= *slowSpeed {
		return 0
	}
	for _, j := range e.junctions {
		pos := e.junctionPos[j]
		if math.Hypot(snap.Position.X-pos.X, snap.Position.Y-pos.Y) <= *nearDistance {
			return *slowPenalty
		}
	}
	return 0
}

// ambulanceObs 构造救护车观测块（全局块+每路口块）
func (e *AmbulanceEnv) ambulanceObs() []float64 {
	obs := make([]float64, 0, globalBlockSize+perJunctionBlockSize*len(e.junctions))
	if !e.spawned || e.cleared {
		return append(obs, make([]float64, globalBlockSize+perJunctionBlockSize*len(e.junctions))...)
	}
	sim := e.ctx.Simulator()
	snap, err := sim.Vehicle(e.ambulanceID)
	if err != nil {
		return append(obs, make([]float64, globalBlockSize+perJunctionBlockSize*len(e.junctions))...)
	}

	// 全局块
	tx, ty := e.targetPosition(snap)
	maxSpeed := e.ctx.RuntimeConfig().A.Speed
	normSpeed := 0.0
	if maxSpeed > 0 {
		normSpeed = math.Min(1, snap.Speed/maxSpeed)
	}
	obs = append(obs,
		1,
		e.box.normX(snap.Position.X), e.box.normY(snap.Position.Y),
		tx, ty,
		normSpeed,
		snap.Heading/360,
	)
	obs = append(obs, cardinalOneHot(snap.Heading)...)

	// 每路口块
	ahead := e.edgesAhead(snap)
	diag := e.box.diag()
	for _, j := range e.junctions {
		pos := e.junctionPos[j]
		d := math.Hypot(snap.Position.X-pos.X, snap.Position.Y-pos.Y)
		normD := 0.0
		if diag > 0 {
			normD = math.Min(1, d/diag)
		}
		eta := d / math.Max(snap.Speed, 0.1)
		likely := 0.0
		if d <= *likelyTargetDist && ahead[j] {
			likely = 1
		}
		align := 0.0
		toJ := math.Atan2(pos.Y-snap.Position.Y, pos.X-snap.Position.X) * 180 / math.Pi
		if angleDiff(snap.Heading, toJ) <= *headingAlignDeg {
			align = 1
		}
		obs = append(obs, normD, math.Min(1, eta / *etaCap), likely, align)
	}
	return obs
}

// targetPosition 获取路线终点路口的归一化坐标
func (e *AmbulanceEnv) targetPosition(snap entity.VehicleSnapshot) (float64, float64) {
	if len(snap.Route) == 0 {
		return 0, 0
	}
	sim := e.ctx.Simulator()
	_, to, err := sim.EdgeEndpoints(snap.Route[len(snap.Route)-1])
	if err != nil {
		return 0, 0
	}
	pos, err := sim.JunctionPosition(to)
	if err != nil {
		return 0, 0
	}
	return e.box.normX(pos.X), e.box.normY(pos.Y)
}

// edgesAhead 获取救护车剩余路线经过的路口集合
func (e *AmbulanceEnv) edgesAhead(snap entity.VehicleSnapshot) map[string]bool {
	ahead := make(map[string]bool)
	idx := lo.IndexOf(snap.Route, snap.EdgeID)
	if idx < 0 {
		idx = 0
	}
	sim := e.ctx.Simulator()
	for _, edge := range snap.Route[idx:] {
		from, to, err := sim.EdgeEndpoints(edge)
		if err != nil {
			continue
		}
		ahead[from] = true
		ahead[to] = true
	}
	return ahead
}

// cardinalOneHot 按航向角生成东北西南独热编码
func cardinalOneHot(heading float64) []float64 {
	out := make([]float64, 4)
	h := math.Mod(heading+360, 360)
	switch {
	case h < 45 || h >= 315:
		out[0] = 1 // 东
	case h < 135:
		out[1] = 1 // 北
	case h < 225:
		out[2] = 1 // 西
	default:
		out[3] = 1 // 南
	}
	return out
}

// angleDiff 两个角度（度）的最小夹角
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
