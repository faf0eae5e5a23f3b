package config

// RuntimeConfig 运行时配置
// 功能：存储运行时使用的配置信息，补全默认值后的结果
type RuntimeConfig struct {
	All Config // 全部配置
	C   Control
	E   Emergency
	A   Ambulance
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，补全缺省项
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. episode数缺省为1
// 2. 应急类型标签缺省为emergency
// 3. 救护车投放概率缺省为0.15，初始速度缺省为22米/秒
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	rc.E = config.Emergency
	rc.A = config.Ambulance

	if rc.C.Episodes <= 0 {
		rc.C.Episodes = 1
	}
	if rc.E.TypeLabel == "" {
		rc.E.TypeLabel = "emergency"
	}
	if rc.A.SpawnProb <= 0 {
		rc.A.SpawnProb = 0.15
	}
	if rc.A.Speed <= 0 {
		rc.A.Speed = 22
	}

	return rc
}
