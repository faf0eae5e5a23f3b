package entity

import "git.fiblab.net/general/common/v2/geometry"

// 组件依赖倒置

// entity/rsu/registry.go的依赖倒置
type IRSURegistry interface {
	// 输入RSU ID，查找RSU，如果不存在则panic
	Get(id string) RSUDefinition
	// 输入RSU ID，查找RSU，如果不存在则返回error
	GetOrError(id string) (RSUDefinition, error)
	// 输入路口ID，查找共址RSU（每个路口至多一个）
	ByJunction(junctionID string) (RSUDefinition, bool)

	All() []RSUDefinition          // 枚举所有RSU（确定性顺序）
	ByTier(t Tier) []RSUDefinition // 按级别枚举

	// 校验静态配置，聚合上报所有违例而非只报第一个
	Validate(expectedJunctions map[string]struct{}) error
}

// entity/topology/junction.go的依赖倒置
type IJunction interface {
	ID() string               // 获取路口ID
	TrafficLightID() string   // 获取控制信号灯ID，空字符串表示无信控
	Position() geometry.Point // 获取路口坐标
	InEdges() []string        // 获取入边ID列表
	OutEdges() []string       // 获取出边ID列表
}

// entity/topology/topology.go的依赖倒置
type ITopology interface {
	// 每episode起始时从模拟器实时状态构建路口图，路网签名不变则复用缓存
	Init(sim ISimulator, registry IRSURegistry) error

	// 输入路口ID，查找路口，如果不存在则panic
	Get(id string) IJunction
	// 输入路口ID，查找路口，如果不存在则返回error
	GetOrError(id string) (IJunction, error)

	All() []IJunction                          // 枚举所有路口（确定性顺序）
	JunctionsByEdge(edgeID string) []IJunction // 查找入边或出边包含该边的路口
	RSUPositions() map[string]geometry.Point   // RSU ID->部署坐标（已与实时路口位置合并）
}

// entity/emergency/detector.go的依赖倒置
type IEmergencyDetector interface {
	// 每tick执行检测与生命周期维护，返回本tick被清理的车辆ID
	Update(tick int, activeIDs []string) (removed []string)

	IsEmergency(v VehicleSnapshot) bool     // 判定车辆是否为应急车辆
	Vehicles() map[string]*EmergencyVehicle // 获取当前跟踪的应急车辆表
	Classified() []VehicleSnapshot          // 获取本tick分类为应急车辆的快照（与RSU覆盖无关）
	History() []DetectionEvent              // 获取首次检测事件历史（本episode内追加式）

	Reset() // episode间清空车辆表与检测历史
}

// entity/greenwave/planner.go的依赖倒置
type IGreenwavePlanner interface {
	// 计算车辆前方的绿波（有序去重信号灯ID列表）并记录
	Plan(veh *EmergencyVehicle) []string
	// 对绿波中单个信号灯施加相位抢占
	Apply(tlID string, currentEdge string)

	Active() map[string][]string // 车辆ID->当前抢占的信号灯列表
	Remove(vehicleID string)     // 移除指定车辆的绿波记录
	Reset()                      // episode间清空
}

// entity/arbiter/arbiter.go的依赖倒置
type IProximityArbiter interface {
	// 每episode起始时记录受控路口位置
	Init(sim ISimulator, topo ITopology)
	// 每tick根据本tick分类出的应急车辆位置重算各路口控制模式
	Update(vehicles []VehicleSnapshot)

	Mode(junctionID string) JunctionMode // 查询路口当前模式（未知路口为DENSITY）
	Modes() map[string]JunctionMode      // 获取本tick模式表
	Stats() ArbiterStats                 // 获取累计统计

	Reset() // episode间清空模式记忆与统计
}

// ArbiterStats 邻近仲裁器的累计统计
type ArbiterStats struct {
	Ticks          int     // 已统计tick数
	RLPairs        int     // 模式为RL的(tick,路口)对数
	DensityPairs   int     // 模式为DENSITY的(tick,路口)对数
	Switches       int     // 模式切换次数
	RLFraction     float64 // RL模式占比
	SwitchesPer100 float64 // 每100tick切换次数
}

// env/env.go的依赖倒置，对外部学习器暴露的环境接口
type IEnvironment interface {
	Reset() (obs []float64, info map[string]any)
	Step(actions []int) (obs []float64, reward float64, terminated, truncated bool, info map[string]any)
}
