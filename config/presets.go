package config

import (
	"fmt"
	"time"
)

// 预设名称
const (
	PresetDefault    = "default"
	PresetProduction = "production"
	PresetTest       = "test"
)

// NewProductionConfig 返回面向公网部署的配置
//
// 限制连接数并开启接入限速，空闲超时更短。
func NewProductionConfig() *Config {
	cfg := NewConfig()
	cfg.Listen = cfg.Listen.WithAcceptRate(1000, 256)
	cfg.ConnMgr = cfg.ConnMgr.WithIdleTimeout(30 * time.Second)
	cfg.ConnMgr.LoweredIdleTimeout = Duration(2 * time.Second)
	cfg.ConnMgr = cfg.ConnMgr.WithMaxConnections(10000, 9000)
	cfg.Shutdown = cfg.Shutdown.WithIdleGrace(10 * time.Second)
	cfg.Shutdown.DrainTimeout = Duration(30 * time.Second)
	cfg.Log.JSON = true
	return cfg
}

// NewTestConfig 返回测试用配置
//
// 监听本地随机端口，超时都很短，不收集指标。
func NewTestConfig() *Config {
	cfg := NewConfig()
	cfg.Listen = cfg.Listen.WithAddr("127.0.0.1:0")
	cfg.ConnMgr = cfg.ConnMgr.WithIdleTimeout(2 * time.Second)
	cfg.ConnMgr.LoweredIdleTimeout = Duration(200 * time.Millisecond)
	cfg.Shutdown = cfg.Shutdown.WithIdleGrace(500 * time.Millisecond)
	cfg.Shutdown.DrainTimeout = Duration(2 * time.Second)
	cfg.Metrics.Enable = false
	cfg.Log.Level = "warn"
	return cfg
}

// NewConfigByPreset 按名称创建预设配置
func NewConfigByPreset(name string) (*Config, error) {
	switch name {
	case "", PresetDefault:
		return NewConfig(), nil
	case PresetProduction:
		return NewProductionConfig(), nil
	case PresetTest:
		return NewTestConfig(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}
}
