package entity

import (
	"fmt"
	"strings"

	"git.fiblab.net/general/common/v2/geometry"
)

// 信号灯状态，单字符与SUMO状态串保持一致
type LightState byte

const (
	LightStateGreen      LightState = 'G' // 绿灯（优先通行）
	LightStateGreenMinor LightState = 'g' // 绿灯（让行）
	LightStateYellow     LightState = 'y' // 黄灯
	LightStateRed        LightState = 'r' // 红灯
)

// Phase 信控程序中的单个相位
// States为状态串，每个受控连接对应一个字符，按连接表顺序索引
type Phase struct {
	States   string  // 状态串，如"GGrr"
	Duration float64 // 相位时长（秒）
}

// Program 信号灯的当前信控程序（有序相位列表）
type Program struct {
	Phases []Phase
}

// Link 信号灯受控连接表中的一个连接
type Link struct {
	FromLane string // 入口车道ID
	ToLane   string // 出口车道ID
}

// SourceEdge 获取连接的来源边ID
// 算法说明：去除车道ID末尾的"_<车道序号>"后缀（如"E1_0"->"E1"）
func (l Link) SourceEdge() string {
	if i := strings.LastIndex(l.FromLane, "_"); i > 0 {
		return l.FromLane[:i]
	}
	return l.FromLane
}

// VehicleSnapshot 模拟器返回的车辆运行时快照
type VehicleSnapshot struct {
	ID           string         // 车辆ID
	Position     geometry.Point // 车辆坐标
	Speed        float64        // 速度（米/秒）
	Heading      float64        // 航向角（度，0为正东，逆时针）
	EdgeID       string         // 当前边ID
	LaneID       string         // 当前车道ID
	LanePosition float64        // 车道内位置（米）
	TypeLabel    string         // 车辆类型标签
	Route        []string       // 完整规划路线（有序边ID列表）
}

// VehicleOptions 创建车辆时的初始参数
type VehicleOptions struct {
	Speed      float64 // 初始速度（米/秒）
	TypeLabel  string  // 车辆类型标签
	Color      string  // 显示颜色（模拟器自用）
	SafetyMode string  // 安全模式（模拟器自用）
}

// RSU级别
type Tier int

const (
	Tier1Intersection Tier = iota + 1 // 大流量路口RSU
	Tier2Segment                      // 路段RSU
	Tier3GapFiller                    // 覆盖补盲RSU
)

func (t Tier) String() string {
	switch t {
	case Tier1Intersection:
		return "tier1"
	case Tier2Segment:
		return "tier2"
	case Tier3GapFiller:
		return "tier3"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier 解析RSU级别字符串（tier1/tier2/tier3）
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tier1":
		return Tier1Intersection, nil
	case "tier2":
		return Tier2Segment, nil
	case "tier3":
		return Tier3GapFiller, nil
	default:
		return 0, fmt.Errorf("unknown rsu tier %q", s)
	}
}

// RSUDefinition 单个RSU的静态定义，进程启动时从静态表创建，创建后不可变
type RSUDefinition struct {
	ID          string         // 唯一标识
	Position    geometry.Point // 部署坐标
	Tier        Tier           // 级别
	JunctionID  string         // 关联路口ID，空字符串表示无关联（补盲RSU）
	Radius      float64        // 覆盖半径（米）
	Description string         // 描述
}

// EmergencyVehicle 被跟踪的应急车辆（生命周期记录）
// 首次进入RSU覆盖范围时创建，被检测期间每tick更新，
// 离开模拟（到达终点或teleport）时移除
type EmergencyVehicle struct {
	ID              string         // 车辆ID
	EdgeID          string         // 当前边ID
	LaneID          string         // 当前车道ID
	LanePosition    float64        // 车道内位置（米）
	Speed           float64        // 速度（米/秒）
	Position        geometry.Point // 坐标
	Route           []string       // 完整规划路线
	DetectedBy      string         // 最近一次检测到它的RSU ID，空字符串表示当前无RSU覆盖
	GreenwaveActive bool           // 是否有激活的绿波
	LastSeenTick    int            // 最近一次更新的tick
}

// DetectionEvent 首次检测事件记录（追加式历史）
type DetectionEvent struct {
	Tick      int    // 检测发生的tick
	VehicleID string // 车辆ID
	RSUID     string // 检测RSU的ID
}

// JunctionMode 路口控制模式（邻近仲裁器输出）
type JunctionMode int

const (
	ModeDensity JunctionMode = iota // 反应式密度控制
	ModeRL                          // 学习策略控制
)

func (m JunctionMode) String() string {
	if m == ModeRL {
		return "RL"
	}
	return "DENSITY"
}
