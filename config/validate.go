package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，额外处理 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 提前回收阈值大于默认空闲超时 -> 取默认空闲超时
//   - 恢复水位不低于连接数上限 -> 取上限的 90%
//   - 未设置指标路径 -> 使用默认路径
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.ConnMgr.LoweredIdleTimeout > c.ConnMgr.IdleTimeout {
		c.ConnMgr.LoweredIdleTimeout = c.ConnMgr.IdleTimeout
	}
	if c.ConnMgr.MaxConnections > 0 && c.ConnMgr.LowWater >= c.ConnMgr.MaxConnections {
		c.ConnMgr.LowWater = 0
		c.ConnMgr.LowWater = c.ConnMgr.EffectiveLowWater()
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsConfig().Path
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
