package topology

import (
	"git.fiblab.net/general/common/v2/geometry"
)

// Junction 路口数据模型
// 功能：保存单个路口的拓扑视图（坐标、出入边、控制信号灯）
// 说明：每episode起始时从模拟器实时状态构建一次，episode内不可变
type Junction struct {
	id             string
	trafficLightID string // 空字符串表示该路口无信控
	position       geometry.Point
	inEdges        []string
	outEdges       []string
}

// ID 获取路口ID
func (j *Junction) ID() string {
	return j.id
}

// TrafficLightID 获取控制信号灯ID，空字符串表示无信控
func (j *Junction) TrafficLightID() string {
	return j.trafficLightID
}

// Position 获取路口坐标
func (j *Junction) Position() geometry.Point {
	return j.position
}

// InEdges 获取入边ID列表
func (j *Junction) InEdges() []string {
	return j.inEdges
}

// OutEdges 获取出边ID列表
func (j *Junction) OutEdges() []string {
	return j.outEdges
}
