package arbiter

import (
	"flag"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

var log = logrus.WithField("module", "arbiter")

var (
	threshold = flag.Float64("arbiter.threshold", 250, "应急车辆触发RL模式的距离阈值（米）")
)

// Arbiter 邻近仲裁器
// 功能：独立于绿波的轻量信号，逐tick为每个受控路口指定控制模式：
// 距任一应急车辆不超过阈值的路口为RL（学习策略），其余为DENSITY（反应式）
// 说明：除切换计数与上一tick模式记忆外，每tick为无状态纯重算；
// 模式表不跨episode持久化
type Arbiter struct {
	positions map[string]geometry.Point // 受控路口ID->坐标，episode起始时记录
	ordered   []string                  // 受控路口ID（记录顺序）

	modes    map[string]entity.JunctionMode // 本tick模式表
	prevMode map[string]entity.JunctionMode // 上一tick模式表

	ticks        int
	rlPairs      int
	densityPairs int
	switches     int
}

// NewArbiter 创建邻近仲裁器
func NewArbiter() *Arbiter {
	return &Arbiter{
		positions: make(map[string]geometry.Point),
		modes:     make(map[string]entity.JunctionMode),
		prevMode:  make(map[string]entity.JunctionMode),
	}
}

// Init 记录受控路口位置
// 功能：每episode起始时为每个有信控的路口记录坐标
// 参数：sim-模拟器，topo-路口图
// 算法说明：优先使用拓扑中的路口坐标；坐标缺失时退化为
// 该信号灯前几条受控车道端点坐标的平均值；两者都失败则跳过该路口
func (a *Arbiter) Init(sim entity.ISimulator, topo entity.ITopology) {
	a.positions = make(map[string]geometry.Point)
	a.ordered = make([]string, 0)
	for _, j := range topo.All() {
		if j.TrafficLightID() == "" {
			continue
		}
		pos, err := sim.JunctionPosition(j.ID())
		if err != nil {
			// 直接位置查询失败，退化为受控车道端点均值
			p, ok := lanesCentroid(sim, j.TrafficLightID())
			if !ok {
				log.Warnf("junction %s: no position available, excluded from arbitration", j.ID())
				continue
			}
			pos = p
		}
		a.positions[j.ID()] = pos
		a.ordered = append(a.ordered, j.ID())
	}
	log.Infof("arbiter tracks %d controlled junctions, threshold %.0fm", len(a.positions), *threshold)
}

// lanesCentroid 用信号灯前几条受控车道的端点均值近似路口坐标
func lanesCentroid(sim entity.ISimulator, tlID string) (geometry.Point, bool) {
	lanes, err := sim.ControlledLanes(tlID)
	if err != nil || len(lanes) == 0 {
		return geometry.Point{}, false
	}
	if len(lanes) > 3 {
		lanes = lanes[:3]
	}
	sum := geometry.Point{}
	n := 0
	for _, lane := range lanes {
		shape, err := sim.LaneShape(lane)
		if err != nil || len(shape) == 0 {
			continue
		}
		end := shape[len(shape)-1]
		sum.X += end.X
		sum.Y += end.Y
		n++
	}
	if n == 0 {
		return geometry.Point{}, false
	}
	return geometry.Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}

// Update 重算本tick的路口控制模式
// 功能：对每个受控路口检查是否有应急车辆进入阈值范围，更新模式表与统计
// 参数：vehicles-本tick分类为应急车辆的快照（复用检测器的分类规则表）
// 说明：仲裁只依赖分类与位置，与RSU覆盖无关，阈值判定不以
// 车辆已被检测为前提；模式切换（与上一tick不同）记录日志并计数
func (a *Arbiter) Update(vehicles []entity.VehicleSnapshot) {
	a.ticks++
	modes := make(map[string]entity.JunctionMode, len(a.positions))
	for _, jid := range a.ordered {
		pos := a.positions[jid]
		mode := entity.ModeDensity
		for _, v := range vehicles {
			if math.Hypot(v.Position.X-pos.X, v.Position.Y-pos.Y) <= *threshold {
				mode = entity.ModeRL
				break
			}
		}
		modes[jid] = mode
		if mode == entity.ModeRL {
			a.rlPairs++
		} else {
			a.densityPairs++
		}
		if prev, ok := a.prevMode[jid]; ok && prev != mode {
			a.switches++
			log.Debugf("junction %s mode switch %v -> %v", jid, prev, mode)
		}
	}
	a.prevMode = modes
	a.modes = modes
}

// Mode 查询路口当前模式，未知路口为DENSITY
func (a *Arbiter) Mode(junctionID string) entity.JunctionMode {
	return a.modes[junctionID]
}

// Modes 获取本tick模式表
func (a *Arbiter) Modes() map[string]entity.JunctionMode {
	return a.modes
}

// Stats 获取累计统计
// 返回：tick数、两种模式的(tick,路口)对数、切换次数、RL占比、每100tick切换次数
func (a *Arbiter) Stats() entity.ArbiterStats {
	s := entity.ArbiterStats{
		Ticks:        a.ticks,
		RLPairs:      a.rlPairs,
		DensityPairs: a.densityPairs,
		Switches:     a.switches,
	}
	if total := a.rlPairs + a.densityPairs; total > 0 {
		s.RLFraction = float64(a.rlPairs) / float64(total)
	}
	if a.ticks > 0 {
		s.SwitchesPer100 = float64(a.switches) * 100 / float64(a.ticks)
	}
	return s
}

// Reset episode间清空模式记忆与统计（受控路口位置由Init重建）
func (a *Arbiter) Reset() {
	a.modes = make(map[string]entity.JunctionMode)
	a.prevMode = make(map[string]entity.JunctionMode)
	a.ticks = 0
	a.rlPairs = 0
	a.densityPairs = 0
	a.switches = 0
}
