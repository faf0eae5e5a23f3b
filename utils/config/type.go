package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 说明：File优先级高于MongoDB
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// Input 指定所有输入数据的配置项
type Input struct {
	URI      string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	RSU      InputPath `yaml:"rsu"`           // RSU静态表
	Scenario InputPath `yaml:"scenario"`      // 路网与路线场景定义
}

// ControlStep 指定模拟时间范围和间隔的配置项
type ControlStep struct {
	Total    int     `yaml:"total"`    // 每个episode的tick总数（horizon）
	Interval float64 `yaml:"interval"` // 每个tick的时间间隔（秒）
}

// Control 模拟控制配置
type Control struct {
	Step     ControlStep `yaml:"step"`
	Episodes int         `yaml:"episodes,omitempty"` // episode数量，默认1
	Seed     uint64      `yaml:"seed,omitempty"`     // 随机种子
}

// Emergency 应急车辆检测配置
type Emergency struct {
	TypeLabel string `yaml:"type_label,omitempty"` // 应急车辆类型标签，默认emergency
}

// Ambulance 救护车环境配置
type Ambulance struct {
	SpawnProb float64  `yaml:"spawn_prob,omitempty"` // 每episode投放救护车的概率，默认0.15
	Speed     float64  `yaml:"speed,omitempty"`      // 救护车初始速度（米/秒），默认22
	Routes    []string `yaml:"routes,omitempty"`     // 可选投放路线（场景中定义的路线名）
}

// Config YAML配置文件的根结构
type Config struct {
	Input     Input     `yaml:"input"`               // 输入
	Control   Control   `yaml:"control"`             // 模拟过程控制
	Emergency Emergency `yaml:"emergency,omitempty"` // 应急检测
	Ambulance Ambulance `yaml:"ambulance,omitempty"` // 救护车环境
}
