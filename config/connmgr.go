package config

import (
	"errors"
	"time"
)

// ConnManagerConfig 连接管理配置
//
// 配置连接管理策略：
//   - 空闲超时与负载高时的提前回收阈值
//   - 连接数上限与恢复水位
//   - 优雅关闭的分批大小和时间轮精度
type ConnManagerConfig struct {
	// IdleTimeout 默认空闲超时
	IdleTimeout Duration `json:"idle_timeout"`

	// LoweredIdleTimeout 连接数达到上限时使用的空闲超时
	// 必须在 [0, IdleTimeout] 内
	LoweredIdleTimeout Duration `json:"lowered_idle_timeout"`

	// MaxConnections 连接数上限，0 表示不限制
	MaxConnections int `json:"max_connections"`

	// LowWater 恢复水位
	// 负载回收后连接数低于此值时恢复默认空闲超时
	LowWater int `json:"low_water,omitempty"`

	// DrainBatchSize 优雅关闭时每轮循环处理的连接数
	DrainBatchSize int `json:"drain_batch_size,omitempty"`

	// WheelTickInterval 时间轮精度
	WheelTickInterval Duration `json:"wheel_tick_interval,omitempty"`
}

// DefaultConnManagerConfig 返回默认连接管理配置
func DefaultConnManagerConfig() ConnManagerConfig {
	return ConnManagerConfig{
		IdleTimeout:        Duration(60 * time.Second), // 默认空闲 60 秒关闭
		LoweredIdleTimeout: Duration(5 * time.Second),  // 满载时空闲 5 秒即可回收
		MaxConnections:     0,                          // 默认不限制
		LowWater:           0,
		DrainBatchSize:     64,
		WheelTickInterval:  Duration(10 * time.Millisecond),
	}
}

// Validate 验证连接管理配置
func (c ConnManagerConfig) Validate() error {
	if c.IdleTimeout < 0 {
		return errors.New("idle timeout must be non-negative")
	}
	if c.LoweredIdleTimeout < 0 || c.LoweredIdleTimeout > c.IdleTimeout {
		return errors.New("lowered idle timeout must be within [0, idle timeout]")
	}
	if c.MaxConnections < 0 {
		return errors.New("max connections must be non-negative")
	}
	if c.LowWater < 0 {
		return errors.New("low water must be non-negative")
	}
	if c.MaxConnections > 0 && c.LowWater >= c.MaxConnections {
		return errors.New("low water must be below max connections")
	}
	if c.DrainBatchSize < 0 {
		return errors.New("drain batch size must be non-negative")
	}
	if c.WheelTickInterval < 0 {
		return errors.New("wheel tick interval must be non-negative")
	}
	return nil
}

// EffectiveLowWater 返回恢复水位，未配置时取上限的 90%
func (c ConnManagerConfig) EffectiveLowWater() int {
	if c.LowWater > 0 || c.MaxConnections == 0 {
		return c.LowWater
	}
	return c.MaxConnections * 9 / 10
}

// WithIdleTimeout 设置默认空闲超时
func (c ConnManagerConfig) WithIdleTimeout(d time.Duration) ConnManagerConfig {
	c.IdleTimeout = Duration(d)
	if c.LoweredIdleTimeout > c.IdleTimeout {
		c.LoweredIdleTimeout = c.IdleTimeout
	}
	return c
}

// WithMaxConnections 设置连接数上限和恢复水位
func (c ConnManagerConfig) WithMaxConnections(max, lowWater int) ConnManagerConfig {
	c.MaxConnections = max
	c.LowWater = lowWater
	return c
}
