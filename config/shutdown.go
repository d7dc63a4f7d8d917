package config

import (
	"errors"
	"time"
)

// ShutdownConfig 优雅关闭配置
type ShutdownConfig struct {
	// IdleGrace 关闭预告送达后，忙碌连接最多还能保留多久
	IdleGrace Duration `json:"idle_grace"`

	// DrainTimeout 等待连接全部关闭的上限，超时后强制关闭剩余连接
	DrainTimeout Duration `json:"drain_timeout"`
}

// DefaultShutdownConfig 返回默认关闭配置
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		IdleGrace:    Duration(5 * time.Second),
		DrainTimeout: Duration(15 * time.Second),
	}
}

// Validate 验证关闭配置
func (c ShutdownConfig) Validate() error {
	if c.IdleGrace < 0 {
		return errors.New("idle grace must be non-negative")
	}
	if c.DrainTimeout < 0 {
		return errors.New("drain timeout must be non-negative")
	}
	return nil
}

// WithIdleGrace 设置宽限期
func (c ShutdownConfig) WithIdleGrace(d time.Duration) ShutdownConfig {
	c.IdleGrace = Duration(d)
	return c
}
