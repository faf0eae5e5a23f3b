package emergency

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/container"
)

var log = logrus.WithField("module", "emergency")

// DetectionHandler 首次检测事件回调
type DetectionHandler func(ev entity.DetectionEvent)

// Detector 应急车辆检测器
// 功能：每tick扫描所有活跃车辆，分类应急车辆，确定当前观测到它的RSU，
// 维护车辆生命周期表与首次检测历史
// 说明：tick内无并发，所有状态每tick幂等重算而非增量累积，
// episode可在tick边界被外部终止
type Detector struct {
	ctx        entity.ITaskContext
	classifier *Classifier

	vehicles   map[string]*entity.EmergencyVehicle
	classified []entity.VehicleSnapshot
	history    []entity.DetectionEvent
	handlers   []DetectionHandler
}

// NewDetector 创建应急车辆检测器
// 参数：ctx-任务上下文
func NewDetector(ctx entity.ITaskContext) *Detector {
	return &Detector{
		ctx:        ctx,
		classifier: NewClassifier(ctx.RuntimeConfig().E.TypeLabel),
		vehicles:   make(map[string]*entity.EmergencyVehicle),
		history:    make([]entity.DetectionEvent, 0),
	}
}

// OnDetection 注册首次检测事件回调
func (d *Detector) OnDetection(h DetectionHandler) {
	d.handlers = append(d.handlers, h)
}

// IsEmergency 判定车辆是否为应急车辆（复用分类器规则表）
func (d *Detector) IsEmergency(v entity.VehicleSnapshot) bool {
	return d.classifier.IsEmergency(v)
}

// Update 每tick的检测与生命周期维护
// 功能：分类应急车辆、匹配覆盖RSU、更新车辆表、清理离场车辆
// 参数：tick-当前tick，activeIDs-模拟器当前活跃车辆ID列表
// 返回：本tick被清理（离场）的车辆ID列表，调用方必须在同一遍清理中
// 移除这些车辆对应的绿波条目（原子性不变量）
// 算法说明：
// 1. 清理：车辆表中不在活跃列表里的ID全部移除
// 2. 对每个活跃车辆先做分类早退（多数车辆在此被跳过）
// 3. 查询车辆快照失败视为本tick跳过该车辆（实体可能已离场）
// 4. 分类通过的车辆进入本tick分类快照表（与RSU覆盖无关，供仲裁用）
// 5. RSU匹配：对所有已知RSU坐标计算欧氏距离入小顶堆，取最近且覆盖到车辆的RSU
// 6. 无命中时车辆保持被跟踪但无检测RSU，检测可中断并恢复，不销毁生命周期记录
// 7. 首次出现的车辆ID追加检测事件并触发回调
func (d *Detector) Update(tick int, activeIDs []string) (removed []string) {
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}
	for id := range d.vehicles {
		if _, ok := active[id]; !ok {
			delete(d.vehicles, id)
			removed = append(removed, id)
		}
	}

	sim := d.ctx.Simulator()
	rsuPos := d.ctx.Topology().RSUPositions()
	registry := d.ctx.RSURegistry()

	d.classified = d.classified[:0]
	for _, id := range activeIDs {
		snap, err := sim.Vehicle(id)
		if err != nil {
			log.Debugf("vehicle %s vanished mid-tick: %v", id, err)
			continue
		}
		// 廉价早退：多数车辆不是应急车辆，在此被跳过
		if !d.classifier.IsEmergency(snap) {
			continue
		}
		d.classified = append(d.classified, snap)

		detectedBy := d.nearestCoveringRSU(snap, rsuPos, registry)

		veh, tracked := d.vehicles[id]
		if !tracked {
			if detectedBy == "" {
				// 尚未进入任何RSU覆盖范围，不建立生命周期记录
				continue
			}
			veh = &entity.EmergencyVehicle{ID: id}
			d.vehicles[id] = veh
			ev := entity.DetectionEvent{Tick: tick, VehicleID: id, RSUID: detectedBy}
			d.history = append(d.history, ev)
			log.Infof("emergency vehicle %s first detected by rsu %s at tick %d", id, detectedBy, tick)
			for _, h := range d.handlers {
				h(ev)
			}
		}
		veh.EdgeID = snap.EdgeID
		veh.LaneID = snap.LaneID
		veh.LanePosition = snap.LanePosition
		veh.Speed = snap.Speed
		veh.Position = snap.Position
		veh.Route = snap.Route
		veh.DetectedBy = detectedBy
		veh.LastSeenTick = tick
	}
	return removed
}

// nearestCoveringRSU 求距离最近且覆盖到车辆的RSU
// 返回：RSU ID，无命中时返回空字符串
// 说明：O(车辆×RSU)的距离检查，RSU数量为数十量级可接受；
// 车辆规模增大时空间索引是自然的优化方向，当前规格不要求
func (d *Detector) nearestCoveringRSU(snap entity.VehicleSnapshot, rsuPos map[string]geometry.Point, registry entity.IRSURegistry) string {
	heap := container.NewPriorityQueue[string]()
	for id, pos := range rsuPos {
		dist := math.Hypot(snap.Position.X-pos.X, snap.Position.Y-pos.Y)
		heap.Push(id, dist)
	}
	heap.Heapify()
	for heap.Len() > 0 {
		id, dist := heap.HeapPop()
		def, err := registry.GetOrError(id)
		if err != nil {
			// 拓扑合并进来的坐标必然来自注册表，这里只防御性跳过
			continue
		}
		if dist <= def.Radius {
			return id
		}
		// 堆序保证后续RSU更远，但覆盖半径各不相同，仍需继续检查
	}
	return ""
}

// Vehicles 获取当前跟踪的应急车辆表
func (d *Detector) Vehicles() map[string]*entity.EmergencyVehicle {
	return d.vehicles
}

// Classified 获取本tick分类为应急车辆的全部快照
// 说明：只看分类规则表，与RSU覆盖无关，尚未被任何RSU观测到的
// 应急车辆也在内；邻近仲裁基于此表而非生命周期表
func (d *Detector) Classified() []entity.VehicleSnapshot {
	return d.classified
}

// History 获取首次检测事件历史（本episode内追加式）
func (d *Detector) History() []entity.DetectionEvent {
	return d.history
}

// Reset episode间清空车辆表与检测历史
// 说明：检测历史按每episode清理处理，跨episode分析不在当前需求内
func (d *Detector) Reset() {
	d.vehicles = make(map[string]*entity.EmergencyVehicle)
	d.classified = nil
	d.history = make([]entity.DetectionEvent, 0)
}
