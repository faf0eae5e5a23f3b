package greenwave

import (
	"flag"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

var log = logrus.WithField("module", "greenwave")

var (
	lookahead = flag.Int("greenwave.lookahead", 5, "绿波规划沿路线向前展望的边数")
)

// Planner 绿波规划器
// 功能：给定被检测到的应急车辆，计算其路线前方的有序信号灯列表（绿波），
// 并对每个信号灯施加让行相位抢占
// 说明：绿波每tick整体重算而非累积，同一tick内重复规划结果幂等
type Planner struct {
	ctx entity.ITaskContext

	// 车辆ID->当前为其抢占的信号灯有序列表
	active map[string][]string
}

// NewPlanner 创建绿波规划器
func NewPlanner(ctx entity.ITaskContext) *Planner {
	return &Planner{
		ctx:    ctx,
		active: make(map[string][]string),
	}
}

// Plan 计算车辆前方的绿波
// 功能：沿车辆路线取展望窗口，收集窗口内各边关联路口的控制信号灯
// 参数：veh-被检测到的应急车辆
// 返回：有序去重的信号灯ID列表（即绿波），可能为空
// 算法说明：
// 1. 在完整路线中定位当前边；找不到（如中途改道）则视为处于路线起点，降级但安全的兜底
// 2. 从该索引起取接下来lookahead条边
// 3. 对窗口内每条边，扫描出入边包含该边的所有路口，收集其控制信号灯ID
// 4. 保序去重；非空时记录到活跃绿波表（覆盖旧条目，不累积）
func (p *Planner) Plan(veh *entity.EmergencyVehicle) []string {
	idx := lo.IndexOf(veh.Route, veh.EdgeID)
	if idx < 0 {
		idx = 0
	}
	end := idx + *lookahead
	if end > len(veh.Route) {
		end = len(veh.Route)
	}
	topo := p.ctx.Topology()
	wave := make([]string, 0)
	for _, edge := range veh.Route[idx:end] {
		for _, j := range topo.JunctionsByEdge(edge) {
			if tl := j.TrafficLightID(); tl != "" {
				wave = append(wave, tl)
			}
		}
	}
	wave = lo.Uniq(wave)
	if len(wave) > 0 {
		p.active[veh.ID] = wave
		veh.GreenwaveActive = true
		log.Debugf("greenwave for %s: %v", veh.ID, wave)
	}
	return wave
}

// Apply 对单个信号灯施加相位抢占
// 功能：为车辆当前所在边的进入连接寻找并切换到全绿相位
// 参数：tlID-信号灯ID，currentEdge-车辆当前边ID
// 算法说明：
// 1. 查询受控连接表，对每个连接取来源边（车道ID去除末尾车道序号后缀）
// 2. 来源边与当前边相等的连接索引即为需要绿灯的目标索引
// 3. 无目标索引则无事可做（没有可抢占的进入连接）
// 4. 按定义顺序扫描当前信控程序的所有相位，切换到第一个使所有目标索引均为'G'、
// 且不同于当前活跃相位的相位
// 5. 不存在合格相位则不做变更（被动尽力而为策略，绝不强造非法状态）
// 说明：任何模拟器查询失败都只记录日志并放弃本tick对该信号灯的抢占，
// 单个信号灯的失败不阻塞绿波中其余信号灯
func (p *Planner) Apply(tlID string, currentEdge string) {
	sim := p.ctx.Simulator()
	links, err := sim.ControlledLinks(tlID)
	if err != nil {
		log.Debugf("traffic light %s links unavailable: %v", tlID, err)
		return
	}
	targets := make([]int, 0)
	for i, l := range links {
		if l.SourceEdge() == currentEdge {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return
	}

	program, err := sim.Program(tlID)
	if err != nil {
		log.Debugf("traffic light %s program unavailable: %v", tlID, err)
		return
	}
	current, err := sim.CurrentPhase(tlID)
	if err != nil {
		log.Debugf("traffic light %s current phase unavailable: %v", tlID, err)
		return
	}

	for i, phase := range program.Phases {
		if i == current {
			continue
		}
		if allGreen(phase.States, targets) {
			if err := sim.SetPhase(tlID, i); err != nil {
				log.Debugf("set phase %d on traffic light %s failed: %v", i, tlID, err)
			} else {
				log.Debugf("preempt traffic light %s: phase %d for edge %s", tlID, i, currentEdge)
			}
			return
		}
	}
}

// allGreen 检查状态串在所有目标索引处是否均为绿灯
func allGreen(states string, targets []int) bool {
	for _, i := range targets {
		if i >= len(states) || entity.LightState(states[i]) != entity.LightStateGreen {
			return false
		}
	}
	return true
}

// Active 获取活跃绿波表（车辆ID->抢占的信号灯有序列表）
func (p *Planner) Active() map[string][]string {
	return p.active
}

// Remove 移除指定车辆的绿波记录
// 说明：与检测器的车辆清理在同一遍内调用，保证绿波表键集是车辆表键集的子集
func (p *Planner) Remove(vehicleID string) {
	delete(p.active, vehicleID)
}

// Reset episode间清空活跃绿波表
func (p *Planner) Reset() {
	p.active = make(map[string][]string)
}
