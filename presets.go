package acceptor

import (
	"github.com/dep2p/go-acceptor/config"
)

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置
// ════════════════════════════════════════════════════════════════════════════

// 预设名称常量
const (
	// PresetDefault 默认预设：不限连接数，60s 空闲超时
	PresetDefault = config.PresetDefault

	// PresetProduction 公网部署：限制连接数、开启接入限速、JSON 日志
	PresetProduction = config.PresetProduction

	// PresetTest 测试：本地随机端口、短超时、不收集指标
	PresetTest = config.PresetTest
)

// PresetInfo 预设信息
type PresetInfo struct {
	// Name 预设名称
	Name string

	// Description 预设描述
	Description string
}

// AvailablePresets 返回所有可用预设的信息
//
// 示例：
//
//	for _, preset := range acceptor.AvailablePresets() {
//	    fmt.Printf("%s: %s\n", preset.Name, preset.Description)
//	}
func AvailablePresets() []PresetInfo {
	return []PresetInfo{
		{Name: PresetDefault, Description: "默认配置，不限连接数"},
		{Name: PresetProduction, Description: "公网部署配置，限制连接数并开启接入限速"},
		{Name: PresetTest, Description: "测试配置，本地随机端口和短超时"},
	}
}

// IsValidPreset 检查预设名称是否有效
func IsValidPreset(name string) bool {
	_, err := config.NewConfigByPreset(name)
	return err == nil && name != ""
}
