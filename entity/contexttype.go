package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/clock"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

// 外部交通模拟器接口（消费能力集，spec意义上的黑盒边界）
// 所有查询与指令都可能失败（实体中途消失、路线不存在、信号灯无程序等），
// 每个调用点必须把单实体失败限制在当前tick对当前实体的处理范围内
type ISimulator interface {
	// 车辆查询

	VehicleIDs() ([]string, error)              // 获取当前所有活跃车辆ID
	Vehicle(id string) (VehicleSnapshot, error) // 获取单个车辆的运行时快照

	// 路网查询

	JunctionIDs() ([]string, error)                              // 获取所有路口ID
	JunctionPosition(id string) (geometry.Point, error)          // 获取路口坐标
	EdgeIDs() ([]string, error)                                  // 获取所有非内部边ID
	EdgeEndpoints(id string) (from string, to string, err error) // 获取边的起止路口ID

	// 信号灯查询

	TrafficLightIDs() ([]string, error)                // 获取所有信号灯ID
	ControlledJunctions(tlID string) ([]string, error) // 获取信号灯控制的路口集合
	ControlledLinks(tlID string) ([]Link, error)       // 获取信号灯的受控连接表
	ControlledLanes(tlID string) ([]string, error)     // 获取信号灯的受控车道列表
	Program(tlID string) (Program, error)              // 获取当前信控程序
	CurrentPhase(tlID string) (int, error)             // 获取当前相位索引

	// 信号灯指令

	SetPhase(tlID string, index int) error            // 切换到指定相位
	SetSignalStates(tlID string, states string) error // 直接写入状态串

	// 车道几何（用于路口位置兜底计算）

	LaneShape(laneID string) ([]geometry.Point, error)

	// 车辆指令

	RouteIDs() ([]string, error)                                 // 获取所有命名路线ID
	CreateVehicle(id, routeID string, opts VehicleOptions) error // 在命名路线上创建车辆
	RemoveVehicle(id string) error                               // 移除车辆

	// 推进模拟一个tick（同步调用，返回前完成全部内部推进）
	Step(dt float64) error

	// 路网签名，路网定义不变则签名不变，用于跨episode复用拓扑
	NetworkSignature() string
}

type ITaskContext interface {
	Clock() *clock.Clock
	Simulator() ISimulator
	RSURegistry() IRSURegistry
	Topology() ITopology
	RuntimeConfig() *config.RuntimeConfig
}
