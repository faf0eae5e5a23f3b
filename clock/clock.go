package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

// Clock 仿真时钟
// 功能：管理单个episode内的时间推进，维护当前tick与仿真时间
// 说明：episode之间通过Reset复位，静态参数（DT、HORIZON）保持不变
type Clock struct {
	DT      float64 // 每个tick的时间间隔（秒）
	HORIZON int     // 每个episode的最大tick数，模拟区间[0, HORIZON)

	Tick int     // 当前tick
	T    float64 // 当前时间（秒）
}

// New 根据配置创建新的时钟实例
// 功能：根据控制步配置初始化时钟
// 参数：stepConfig-控制步配置，包含tick总数与时间间隔
// 返回：初始化完成的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:      stepConfig.Interval,
		HORIZON: stepConfig.Total,
	}
	c.Reset()
	return c
}

// Reset 复位时钟状态
// 功能：episode起始时将tick与时间归零
func (c *Clock) Reset() {
	c.Tick = 0
	c.T = 0
}

// Advance 推进一个tick
// 功能：tick加一并重算当前时间
func (c *Clock) Advance() {
	c.Tick++
	c.T = float64(c.Tick) * c.DT
}

// Done 检查episode是否到达horizon
func (c *Clock) Done() bool {
	return c.Tick >= c.HORIZON
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	t := c.T
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
