package rsu

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

var log = logrus.WithField("module", "rsu")

var (
	ErrNotFound = errors.New("rsu: no such rsu")
)

// Registry RSU静态注册表
// 功能：保存路侧单元的静态目录（标识、坐标、级别、覆盖半径），提供查找与校验
// 说明：进程启动时从静态表构建一次，之后只读，无并发修改问题
type Registry struct {
	raw        []entity.RSUDefinition // 原始定义表（含重复项，供校验使用）
	data       map[string]entity.RSUDefinition
	ordered    []entity.RSUDefinition // 去重后保持定义顺序，保证枚举结果确定
	byJunction map[string]entity.RSUDefinition
}

// NewRegistry 创建RSU注册表
// 功能：根据静态定义表构建注册表与各索引
// 参数：defs-RSU静态定义列表
// 返回：构建完成的注册表实例
// 说明：重复ID保留首个出现的定义，重复本身由Validate聚合上报
func NewRegistry(defs []entity.RSUDefinition) *Registry {
	r := &Registry{
		raw:        defs,
		data:       make(map[string]entity.RSUDefinition, len(defs)),
		ordered:    make([]entity.RSUDefinition, 0, len(defs)),
		byJunction: make(map[string]entity.RSUDefinition),
	}
	for _, d := range defs {
		if _, ok := r.data[d.ID]; ok {
			continue
		}
		r.data[d.ID] = d
		r.ordered = append(r.ordered, d)
		if d.JunctionID != "" {
			if _, ok := r.byJunction[d.JunctionID]; !ok {
				r.byJunction[d.JunctionID] = d
			}
		}
	}
	return r
}

// Get 根据ID获取RSU定义
// 功能：通过RSU ID查找定义，如果不存在则panic
func (r *Registry) Get(id string) entity.RSUDefinition {
	d, ok := r.data[id]
	if !ok {
		log.Panicf("no id %s in rsu registry", id)
	}
	return d
}

// GetOrError 根据ID获取RSU定义（带错误处理）
func (r *Registry) GetOrError(id string) (entity.RSUDefinition, error) {
	d, ok := r.data[id]
	if !ok {
		return entity.RSUDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// ByJunction 根据路口ID查找共址RSU
// 返回：RSU定义与是否存在，每个路口至多一个共址RSU
func (r *Registry) ByJunction(junctionID string) (entity.RSUDefinition, bool) {
	d, ok := r.byJunction[junctionID]
	return d, ok
}

// All 枚举所有RSU（按定义顺序）
func (r *Registry) All() []entity.RSUDefinition {
	out := make([]entity.RSUDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ByTier 按级别枚举RSU
func (r *Registry) ByTier(t entity.Tier) []entity.RSUDefinition {
	return lo.Filter(r.ordered, func(d entity.RSUDefinition, _ int) bool {
		return d.Tier == t
	})
}

// Validate 校验静态配置
// 功能：检查RSU静态表的全部不变量，聚合上报所有违例而非只报第一个
// 参数：expectedJunctions-预期存在的路口ID集合（来自实时拓扑），nil表示跳过路口存在性检查
// 返回：聚合后的校验错误，nil表示全部通过
// 算法说明：
// 1. 所有ID唯一
// 2. 关联路口的RSU其路口ID必须出现在预期路口集合中
// 3. 覆盖半径必须大于0
// 说明：静态配置错误属于启动期缺陷，调用方应fail fast
func (r *Registry) Validate(expectedJunctions map[string]struct{}) error {
	errs := make([]error, 0)
	seen := make(map[string]struct{}, len(r.raw))
	for _, d := range r.raw {
		if _, ok := seen[d.ID]; ok {
			errs = append(errs, fmt.Errorf("rsu %s: duplicated id", d.ID))
		}
		seen[d.ID] = struct{}{}
		if d.Radius <= 0 {
			errs = append(errs, fmt.Errorf("rsu %s: coverage radius %f must be > 0", d.ID, d.Radius))
		}
		if d.JunctionID != "" && expectedJunctions != nil {
			if _, ok := expectedJunctions[d.JunctionID]; !ok {
				errs = append(errs, fmt.Errorf("rsu %s: associated junction %s not found in junction set", d.ID, d.JunctionID))
			}
		}
	}
	return errors.Join(errs...)
}
