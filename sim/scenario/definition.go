package scenario

// 场景定义，可由YAML加载、从MongoDB解码或在代码中直接构造
// 每条边只有一条行车道，车道ID为"<边ID>_0"
// yaml与bson标签保持同一套键名，两条加载路径解码结果一致

// JunctionDef 路口定义
type JunctionDef struct {
	ID string  `yaml:"id" bson:"id"`
	X  float64 `yaml:"x" bson:"x"`
	Y  float64 `yaml:"y" bson:"y"`
}

// EdgeDef 边定义
// Length为0时用两端路口坐标的直线距离
type EdgeDef struct {
	ID     string  `yaml:"id" bson:"id"`
	From   string  `yaml:"from" bson:"from"`
	To     string  `yaml:"to" bson:"to"`
	Length float64 `yaml:"length,omitempty" bson:"length,omitempty"`
}

// LinkDef 信号灯受控连接定义（入口车道->出口车道）
type LinkDef struct {
	From string `yaml:"from" bson:"from"`
	To   string `yaml:"to" bson:"to"`
}

// PhaseDef 相位定义，状态串每字符对应连接表中的一个连接
type PhaseDef struct {
	States   string  `yaml:"states" bson:"states"`
	Duration float64 `yaml:"duration" bson:"duration"`
}

// TrafficLightDef 信号灯定义
// Junctions为受控路口集合；信号灯ID与路口ID相同时可省略
type TrafficLightDef struct {
	ID        string     `yaml:"id" bson:"id"`
	Junctions []string   `yaml:"junctions,omitempty" bson:"junctions,omitempty"`
	Links     []LinkDef  `yaml:"links" bson:"links"`
	Phases    []PhaseDef `yaml:"phases" bson:"phases"`
}

// RouteDef 命名路线定义（有序边ID列表）
type RouteDef struct {
	ID    string   `yaml:"id" bson:"id"`
	Edges []string `yaml:"edges" bson:"edges"`
}

// VehicleDef 初始车辆定义
type VehicleDef struct {
	ID     string  `yaml:"id" bson:"id"`
	Route  string  `yaml:"route" bson:"route"`
	Type   string  `yaml:"type,omitempty" bson:"type,omitempty"`
	Speed  float64 `yaml:"speed,omitempty" bson:"speed,omitempty"`
	Depart int     `yaml:"depart,omitempty" bson:"depart,omitempty"` // 进入模拟的tick
}

// Definition 场景根定义
type Definition struct {
	Junctions     []JunctionDef     `yaml:"junctions" bson:"junctions"`
	Edges         []EdgeDef         `yaml:"edges" bson:"edges"`
	TrafficLights []TrafficLightDef `yaml:"traffic_lights,omitempty" bson:"traffic_lights,omitempty"`
	Routes        []RouteDef        `yaml:"routes,omitempty" bson:"routes,omitempty"`
	Vehicles      []VehicleDef      `yaml:"vehicles,omitempty" bson:"vehicles,omitempty"`
}
