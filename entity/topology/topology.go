package topology

import (
	"errors"
	"flag"
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

var log = logrus.WithField("module", "topology")

var (
	positionTolerance = flag.Float64("topology.position_tolerance", 1.0, "RSU静态坐标与实时路口坐标允许的最大偏差（米）")
)

// Topology 路口图管理器
// 功能：将模拟器的实时路网描述转换为Junction数据模型，并维护RSU部署坐标表
// 说明：路网签名不变则跨episode复用缓存；单个路口构建失败只跳过该路口
type Topology struct {
	data      map[string]*Junction
	ordered   []*Junction
	byEdge    map[string][]*Junction // 边ID->出入边包含该边的路口（构建序）
	rsuPos    map[string]geometry.Point
	signature string // 构建时的路网签名，用于缓存判定
}

// NewTopology 创建路口图管理器实例
func NewTopology() *Topology {
	return &Topology{
		data:   make(map[string]*Junction),
		byEdge: make(map[string][]*Junction),
		rsuPos: make(map[string]geometry.Point),
	}
}

// Init 构建路口图
// 功能：每episode起始时从模拟器实时状态构建Junction集合与RSU坐标表
// 参数：sim-模拟器，registry-RSU注册表
// 返回：静态配置与实时拓扑不一致时的聚合校验错误
// 算法说明：
// 1. 缓存判定：路网签名与上次构建一致则直接复用
// 2. 枚举所有路口，逐个查询坐标；单个路口失败记录日志后跳过，结果为尽力而为的并集
// 3. 遍历所有非内部边，按端点路口ID归类为入边或出边
// 4. 信号灯匹配：先找ID与路口ID相等的信号灯，再查受控路口集合，首个命中生效
// 5. 受控路口查询不可用时退化为仅ID相等匹配（优雅降级，不致命）
// 6. RSU坐标合并：关联路口的RSU固定在实时路口坐标上，补盲RSU用静态坐标，已知ID优先
// 7. 位置校验：关联路口RSU的静态坐标与实时路口坐标偏差超过容差视为配置错误，聚合上报
// 说明：位置以实时查询为准，绝不静默采信静态值
func (t *Topology) Init(sim entity.ISimulator, registry entity.IRSURegistry) error {
	sig := sim.NetworkSignature()
	if sig != "" && sig == t.signature && len(t.ordered) > 0 {
		log.Debugf("network signature unchanged, reuse cached topology of %d junctions", len(t.ordered))
		return nil
	}

	t.data = make(map[string]*Junction)
	t.ordered = make([]*Junction, 0)
	t.byEdge = make(map[string][]*Junction)
	t.rsuPos = make(map[string]geometry.Point)

	junctionIDs, err := sim.JunctionIDs()
	if err != nil {
		return fmt.Errorf("topology: list junctions: %w", err)
	}
	edgeIDs, err := sim.EdgeIDs()
	if err != nil {
		return fmt.Errorf("topology: list edges: %w", err)
	}
	tlIDs, err := sim.TrafficLightIDs()
	if err != nil {
		log.Warnf("list traffic lights failed, junctions will be uncontrolled: %v", err)
		tlIDs = nil
	}

	built := parallel.GoMap(junctionIDs, func(jid string) *Junction {
		j, err := t.buildJunction(sim, jid, edgeIDs, tlIDs)
		if err != nil {
			// 个别畸形路口不允许中断整个路网的构建
			log.Warnf("skip junction %s: %v", jid, err)
			return nil
		}
		return j
	})
	for _, j := range built {
		if j == nil {
			continue
		}
		t.data[j.id] = j
		t.ordered = append(t.ordered, j)
		for _, e := range j.inEdges {
			t.byEdge[e] = append(t.byEdge[e], j)
		}
		for _, e := range j.outEdges {
			if !containsJunction(t.byEdge[e], j) {
				t.byEdge[e] = append(t.byEdge[e], j)
			}
		}
	}
	t.signature = sig

	errs := t.mergeRSUPositions(registry)
	log.Infof("topology built: %d junctions, %d rsu positions", len(t.ordered), len(t.rsuPos))
	return errors.Join(errs...)
}

// buildJunction 构建单个路口
func (t *Topology) buildJunction(sim entity.ISimulator, jid string, edgeIDs, tlIDs []string) (*Junction, error) {
	pos, err := sim.JunctionPosition(jid)
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	j := &Junction{
		id:       jid,
		position: pos,
		inEdges:  make([]string, 0),
		outEdges: make([]string, 0),
	}
	for _, eid := range edgeIDs {
		from, to, err := sim.EdgeEndpoints(eid)
		if err != nil {
			log.Debugf("edge %s endpoints unavailable: %v", eid, err)
			continue
		}
		if to == jid {
			j.inEdges = append(j.inEdges, eid)
		}
		if from == jid {
			j.outEdges = append(j.outEdges, eid)
		}
	}
	j.trafficLightID = t.matchTrafficLight(sim, jid, tlIDs)
	return j, nil
}

// matchTrafficLight 为路口匹配控制信号灯
// 算法说明：先按ID相等匹配；否则查询每个信号灯的受控路口集合，首个命中生效；
// 受控路口查询失败时退化为仅ID相等（已在第一步完成），返回空字符串
func (t *Topology) matchTrafficLight(sim entity.ISimulator, jid string, tlIDs []string) string {
	for _, tl := range tlIDs {
		if tl == jid {
			return tl
		}
	}
	for _, tl := range tlIDs {
		ctrl, err := sim.ControlledJunctions(tl)
		if err != nil {
			log.Debugf("traffic light %s controlled junctions unavailable: %v", tl, err)
			continue
		}
		if lo.Contains(ctrl, jid) {
			return tl
		}
	}
	return ""
}

// mergeRSUPositions 合并RSU部署坐标
// 返回：静态坐标与实时坐标不一致的校验错误列表
func (t *Topology) mergeRSUPositions(registry entity.IRSURegistry) []error {
	errs := make([]error, 0)
	for _, d := range registry.All() {
		if d.JunctionID != "" {
			j, ok := t.data[d.JunctionID]
			if !ok {
				// 注册表校验已在启动期覆盖，episode期间路口缺失只降级为静态坐标
				log.Warnf("rsu %s: junction %s not in live topology, fall back to static position", d.ID, d.JunctionID)
				t.putRSUPosition(d.ID, d.Position)
				continue
			}
			if dist := distance(d.Position, j.position); dist > *positionTolerance {
				errs = append(errs, fmt.Errorf(
					"rsu %s: static position (%.1f, %.1f) disagrees with live junction %s position (%.1f, %.1f) by %.2f",
					d.ID, d.Position.X, d.Position.Y, d.JunctionID, j.position.X, j.position.Y, dist))
			}
			// 以实时查询到的路口坐标为准
			t.putRSUPosition(d.ID, j.position)
		} else {
			t.putRSUPosition(d.ID, d.Position)
		}
	}
	return errs
}

// putRSUPosition 写入RSU坐标，已知ID优先，不重复覆盖
func (t *Topology) putRSUPosition(id string, pos geometry.Point) {
	if _, ok := t.rsuPos[id]; ok {
		return
	}
	t.rsuPos[id] = pos
}

// Get 根据ID获取路口，如果不存在则panic
func (t *Topology) Get(id string) entity.IJunction {
	j, ok := t.data[id]
	if !ok {
		log.Panicf("no id %s in topology", id)
	}
	return j
}

// GetOrError 根据ID获取路口（带错误处理）
func (t *Topology) GetOrError(id string) (entity.IJunction, error) {
	j, ok := t.data[id]
	if !ok {
		return nil, fmt.Errorf("no id %s in topology", id)
	}
	return j, nil
}

// All 枚举所有路口（构建顺序）
func (t *Topology) All() []entity.IJunction {
	return lo.Map(t.ordered, func(j *Junction, _ int) entity.IJunction { return j })
}

// JunctionsByEdge 查找入边或出边包含该边的路口
func (t *Topology) JunctionsByEdge(edgeID string) []entity.IJunction {
	return lo.Map(t.byEdge[edgeID], func(j *Junction, _ int) entity.IJunction { return j })
}

// RSUPositions 获取RSU部署坐标表（RSU ID->坐标）
func (t *Topology) RSUPositions() map[string]geometry.Point {
	return t.rsuPos
}

func containsJunction(js []*Junction, j *Junction) bool {
	for _, x := range js {
		if x == j {
			return true
		}
	}
	return false
}

func distance(a, b geometry.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
