// 随机数引擎，包装了golang.org/x/exp/rand，提供常用的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于在不改配置的情况下调整随机序列
)

// Engine 随机数引擎
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 参数：seed-随机数种子（实际种子为seed+偏移量）
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Choice 从权重数组定义的离散分布中采样索引
// 参数：weight-权重数组
// 返回：随机索引（0到len(weight)-1），权重和为0时返回-1
func (e *Engine) Choice(weight []float64) int {
	total := .0
	for _, w := range weight {
		total += w
	}
	if total <= 0 {
		return -1
	}
	random := total * e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return i
		}
	}
	return len(weight) - 1
}
