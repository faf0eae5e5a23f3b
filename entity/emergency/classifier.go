package emergency

import (
	"strings"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

// 应急车辆ID关键词表，按顺序匹配（大小写不敏感的子串匹配）
var idKeywords = []string{"emergency", "ambulance", "fire", "police"}

// Classifier 应急车辆分类器
// 功能：集中定义应急车辆判定规则，规则有序、首个命中生效
// 规则表：
// 1. 车辆类型标签与配置的应急类型相等
// 2. 车辆ID大小写不敏感地包含固定词表{emergency, ambulance, fire, police}中任意词
// 说明：两条规则都不命中的车辆不是应急车辆，调用方应立即跳过（廉价早退，
// 大多数车辆永远不是应急车辆，这条路径主导每tick开销）
type Classifier struct {
	typeLabel string
}

// NewClassifier 创建分类器
// 参数：typeLabel-应急车辆类型标签（如emergency）
func NewClassifier(typeLabel string) *Classifier {
	return &Classifier{typeLabel: typeLabel}
}

// IsEmergency 判定车辆是否为应急车辆
func (c *Classifier) IsEmergency(v entity.VehicleSnapshot) bool {
	if c.typeLabel != "" && v.TypeLabel == c.typeLabel {
		return true
	}
	lower := strings.ToLower(v.ID)
	for _, kw := range idKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
