package connmgr

import (
	"fmt"
	"time"

	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/internal/core/timerwheel"
)

// DefaultDrainBatchSize 每轮排空处理的连接数
const DefaultDrainBatchSize = 64

// Config 连接管理器配置
type Config struct {
	// IdleTimeout 默认空闲超时
	//
	// 构造后不可修改；负载高时可用 SetLoweredIdleTimeout 临时收紧。
	IdleTimeout time.Duration

	// DrainBatchSize 优雅关闭时每轮循环处理的连接数
	DrainBatchSize int

	// WheelTickInterval 时间轮精度
	WheelTickInterval time.Duration

	// WheelSlots 时间轮槽数量
	WheelSlots int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       60 * time.Second,
		DrainBatchSize:    DefaultDrainBatchSize,
		WheelTickInterval: timerwheel.DefaultTickInterval,
		WheelSlots:        timerwheel.DefaultSlots,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: negative idle timeout %s", ErrInvalidConfig, c.IdleTimeout)
	}
	if c.DrainBatchSize <= 0 {
		return fmt.Errorf("%w: drain batch size must be positive", ErrInvalidConfig)
	}
	if c.WheelTickInterval <= 0 {
		return fmt.Errorf("%w: wheel tick interval must be positive", ErrInvalidConfig)
	}
	if c.WheelSlots <= 0 {
		return fmt.Errorf("%w: wheel slots must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithIdleTimeout 设置默认空闲超时
func (c Config) WithIdleTimeout(d time.Duration) Config {
	c.IdleTimeout = d
	return c
}

// WithDrainBatchSize 设置排空批大小
func (c Config) WithDrainBatchSize(n int) Config {
	c.DrainBatchSize = n
	return c
}

// ConfigFromUnified 从统一配置创建连接管理配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	out := DefaultConfig()
	out.IdleTimeout = cfg.ConnMgr.IdleTimeout.Duration()
	if cfg.ConnMgr.DrainBatchSize > 0 {
		out.DrainBatchSize = cfg.ConnMgr.DrainBatchSize
	}
	if cfg.ConnMgr.WheelTickInterval > 0 {
		out.WheelTickInterval = cfg.ConnMgr.WheelTickInterval.Duration()
	}
	return out
}
