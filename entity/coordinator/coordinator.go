package coordinator

import (
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/arbiter"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/emergency"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/greenwave"
)

var log = logrus.WithField("module", "coordinator")

// Coordinator 应急协调器
// 功能：组合检测器、绿波规划器与邻近仲裁器，驱动每tick的
// 检测->清理->规划->施加->仲裁流水线
// 说明：整个流水线在一个tick内同步完成，无挂起点，无并发修改；
// 车辆清理与对应绿波条目移除在同一遍内完成，保证绿波表键集
// 恒为车辆表键集的子集
type Coordinator struct {
	ctx entity.ITaskContext

	detector entity.IEmergencyDetector
	planner  entity.IGreenwavePlanner
	arbiter  entity.IProximityArbiter
}

// NewCoordinator 创建应急协调器
func NewCoordinator(ctx entity.ITaskContext) *Coordinator {
	return &Coordinator{
		ctx:      ctx,
		detector: emergency.NewDetector(ctx),
		planner:  greenwave.NewPlanner(ctx),
		arbiter:  arbiter.NewArbiter(),
	}
}

// Detector 获取应急车辆检测器
func (c *Coordinator) Detector() entity.IEmergencyDetector {
	return c.detector
}

// Planner 获取绿波规划器
func (c *Coordinator) Planner() entity.IGreenwavePlanner {
	return c.planner
}

// Arbiter 获取邻近仲裁器
func (c *Coordinator) Arbiter() entity.IProximityArbiter {
	return c.arbiter
}

// InitEpisode episode起始时的准备
// 功能：构建（或复用）路口图并记录仲裁器的受控路口位置
// 返回：拓扑构建中的静态配置校验错误
func (c *Coordinator) InitEpisode() error {
	if err := c.ctx.Topology().Init(c.ctx.Simulator(), c.ctx.RSURegistry()); err != nil {
		return err
	}
	c.arbiter.Init(c.ctx.Simulator(), c.ctx.Topology())
	return nil
}

// Observe 执行一个tick的观测阶段
// 功能：检测应急车辆、原子清理离场车辆及其绿波、更新路口控制模式
// 返回：模拟器整体失效（活跃车辆列表不可得）时返回错误，episode应终止
// 说明：单实体失败均已在各组件内就地消化，不会传播到这里
func (c *Coordinator) Observe() error {
	tick := c.ctx.Clock().Tick
	activeIDs, err := c.ctx.Simulator().VehicleIDs()
	if err != nil {
		// 模拟器连接级失败，本地不可恢复，交由调用方干净地终止episode
		return err
	}

	removed := c.detector.Update(tick, activeIDs)
	for _, id := range removed {
		c.planner.Remove(id)
		log.Debugf("emergency vehicle %s left simulation, greenwave cleared", id)
	}

	// 仲裁基于本tick的分类快照：尚未进入任何RSU覆盖范围的应急车辆
	// 同样参与阈值判定
	c.arbiter.Update(c.detector.Classified())
	return nil
}

// PreemptAll 为所有被跟踪的应急车辆重算并施加绿波
// 说明：反应式控制路径；学习环境中由preempt动作按路口触发，不走这里
func (c *Coordinator) PreemptAll() {
	for _, veh := range c.detector.Vehicles() {
		wave := c.planner.Plan(veh)
		for _, tlID := range wave {
			c.planner.Apply(tlID, veh.EdgeID)
		}
	}
}

// Tick 执行一个tick的完整协调流水线（观测+全量绿波抢占）
func (c *Coordinator) Tick() error {
	if err := c.Observe(); err != nil {
		return err
	}
	c.PreemptAll()
	return nil
}

// Reset episode间复位全部可变状态
// 功能：清空车辆表、绿波表、检测历史与仲裁统计；
// RSU注册表与拓扑静态数据保持不变
func (c *Coordinator) Reset() {
	c.detector.Reset()
	c.planner.Reset()
	c.arbiter.Reset()
}
