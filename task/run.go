package task

import (
	"flag"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

const (
	SelfName = "greenwave" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔tick数")
)

// baselineActions 内置基线策略
// 功能：为每个受控路口选择动作
// 算法说明：
// 1. 有活跃救护车且仲裁器判定该路口为RL模式时选preempt
// 2. 其余情况选hold，信号灯按原程序自然推进
// 说明：外部学习器接入时绕过本函数直接调用环境的Step
func (ctx *Context) baselineActions(junctions []string, ambulanceActive bool) []int {
	e := ctx.environment
	actions := make([]int, len(junctions))
	for i, j := range junctions {
		if ambulanceActive && ctx.coordinator.Arbiter().Mode(j) == entity.ModeRL {
			actions[i] = e.ActionPreempt(j)
		} else {
			actions[i] = e.ActionHold(j)
		}
	}
	return actions
}

// RunEpisode 运行单个episode
// 功能：复位环境后以内置基线策略逐tick推进，直到到达horizon
// 或模拟器整体失效（干净终止，不中断后续episode）
func (ctx *Context) RunEpisode(episode int) {
	e := ctx.environment
	_, info := e.Reset()
	junctions := e.Junctions()
	log.Infof("episode %d: start, %d controlled junctions, horizon %d",
		episode, len(junctions), ctx.clock.HORIZON)

	for {
		active, _ := info["ambulance_active"].(bool)
		actions := ctx.baselineActions(junctions, active)
		var terminated, truncated bool
		_, _, terminated, truncated, info = e.Step(actions)

		if ctx.clock.Tick%*heartBeatInterval == 0 {
			log.Infof("TICK: %d(%s)", ctx.clock.Tick, ctx.clock)
		}
		if terminated {
			log.Errorf("episode %d: terminated early at tick %d", episode, ctx.clock.Tick)
			break
		}
		if truncated {
			break
		}
	}

	stats := ctx.coordinator.Arbiter().Stats()
	log.Infof("episode %d: done, reward %.3f, detections %d, rl fraction %.3f, switches/100 %.2f",
		episode, info["episode_reward"], len(ctx.coordinator.Detector().History()),
		stats.RLFraction, stats.SwitchesPer100)
}

// Run 运行
// 功能：按配置的episode数依次运行
func (ctx *Context) Run() {
	episodes := ctx.runtimeConfig.C.Episodes
	for ep := 0; ep < episodes; ep++ {
		ctx.RunEpisode(ep)
	}
	log.Infof("engine complete")
}
