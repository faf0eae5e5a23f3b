package task

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/clock"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/coordinator"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/rsu"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity/topology"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/env"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/sim/scenario"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/input"
)

var log = logrus.WithField("module", "task")

// Context 协调任务上下文
// 功能：包含一次协调任务的所有变量和状态，替代全局变量
// 说明：管理系统的所有组件，包括时钟、模拟器、RSU注册表、
// 路口图、应急协调器与学习环境
type Context struct {
	// 任务名
	job string

	// 时钟
	clock *clock.Clock

	// 场景定义，每episode据此重建模拟器
	scenarioDef scenario.Definition
	// 当前episode的模拟器
	sim entity.ISimulator

	// RSU注册表
	rsuRegistry entity.IRSURegistry
	// 路口图
	topology entity.ITopology
	// 应急协调器
	coordinator *coordinator.Coordinator
	// 救护车感知环境
	environment *env.AmbulanceEnv

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 用于初始化的输入
	initRes *input.Input
}

// NewContext 创建新的协调任务上下文
// 功能：加载输入数据并初始化系统的所有组件
// 参数：job-任务名称，c-配置对象
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 初始化时钟与运行时配置
// 2. 加载输入数据（RSU静态表、场景定义）
// 3. 构建模拟器与RSU注册表
// 4. 静态配置校验：在任何episode开始前聚合上报所有违例
// 5. 创建路口图、应急协调器与学习环境
func NewContext(job string, c config.Config) (*Context, error) {
	ctx := &Context{job: job}
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	initRes, err := input.Init(c.Input)
	if err != nil {
		return nil, err
	}
	ctx.initRes = initRes
	ctx.scenarioDef = *initRes.Scenario
	ctx.sim = scenario.New(ctx.scenarioDef)
	ctx.rsuRegistry = rsu.NewRegistry(initRes.RSUs)

	// 静态表校验，fail fast
	junctionIDs, err := ctx.sim.JunctionIDs()
	if err != nil {
		return nil, fmt.Errorf("task: list junctions: %w", err)
	}
	expected := make(map[string]struct{}, len(junctionIDs))
	for _, id := range junctionIDs {
		expected[id] = struct{}{}
	}
	if err := ctx.rsuRegistry.Validate(expected); err != nil {
		return nil, fmt.Errorf("task: rsu registry validation: %w", err)
	}

	ctx.topology = topology.NewTopology()
	ctx.coordinator = coordinator.NewCoordinator(ctx)
	ctx.environment = env.NewAmbulanceEnv(ctx, ctx.coordinator, ctx.resetSimulator)
	return ctx, nil
}

// resetSimulator episode起始时从场景定义重建模拟器
// 说明：路网静态部分不变，签名不变，路口图可跨episode复用
func (ctx *Context) resetSimulator() error {
	ctx.sim = scenario.New(ctx.scenarioDef)
	return nil
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Simulator() entity.ISimulator {
	return ctx.sim
}

func (ctx *Context) RSURegistry() entity.IRSURegistry {
	return ctx.rsuRegistry
}

func (ctx *Context) Topology() entity.ITopology {
	return ctx.topology
}

func (ctx *Context) Coordinator() *coordinator.Coordinator {
	return ctx.coordinator
}

func (ctx *Context) Environment() *env.AmbulanceEnv {
	return ctx.environment
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}
