package listener

import (
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-acceptor/config"
)

// 默认值
const (
	DefaultAddr          = ":9000"
	DefaultAcceptBurst   = 128
	DefaultMaxLineLength = 64 * 1024
	DefaultIdleGrace     = 5 * time.Second
	DefaultDrainTimeout  = 15 * time.Second
)

// Config 监听器配置
type Config struct {
	// Addr 监听地址
	Addr string

	// AcceptRate 每秒最多接入的连接数，0 表示不限速
	AcceptRate float64

	// AcceptBurst 接入限速的突发容量
	AcceptBurst int

	// MaxLineLength 单个请求行的最大字节数（含换行）
	MaxLineLength int

	// MaxConnections 连接数上限，0 表示不限制
	MaxConnections int

	// LowWater 负载回收后恢复默认超时的水位
	LowWater int

	// LoweredIdleTimeout 达到上限后使用的空闲超时
	LoweredIdleTimeout time.Duration

	// IdleGrace 优雅关闭时忙碌连接的宽限期
	IdleGrace time.Duration

	// DrainTimeout 生命周期停止时等待连接关闭的上限
	DrainTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Addr:               DefaultAddr,
		AcceptBurst:        DefaultAcceptBurst,
		MaxLineLength:      DefaultMaxLineLength,
		LoweredIdleTimeout: 5 * time.Second,
		IdleGrace:          DefaultIdleGrace,
		DrainTimeout:       DefaultDrainTimeout,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, c.Addr, err)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("%w: accept rate must be non-negative", ErrInvalidConfig)
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		return fmt.Errorf("%w: accept burst must be positive", ErrInvalidConfig)
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("%w: max line length must be non-negative", ErrInvalidConfig)
	}
	if c.MaxConnections < 0 || c.LowWater < 0 {
		return fmt.Errorf("%w: connection limits must be non-negative", ErrInvalidConfig)
	}
	// 恢复水位必须低于上限，否则回收的同时就恢复了默认超时
	if c.MaxConnections > 0 && c.LowWater >= c.MaxConnections {
		return fmt.Errorf("%w: low water %d must be below max connections %d", ErrInvalidConfig, c.LowWater, c.MaxConnections)
	}
	if c.LoweredIdleTimeout < 0 || c.IdleGrace < 0 || c.DrainTimeout < 0 {
		return fmt.Errorf("%w: durations must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// lineLimit 返回读缓冲大小
func (c Config) lineLimit() int {
	if c.MaxLineLength <= 0 {
		return DefaultMaxLineLength
	}
	return c.MaxLineLength
}

// ConfigFromUnified 从统一配置创建监听器配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Addr:               cfg.Listen.Addr,
		AcceptRate:         cfg.Listen.AcceptRate,
		AcceptBurst:        cfg.Listen.AcceptBurst,
		MaxLineLength:      cfg.Listen.MaxLineLength,
		MaxConnections:     cfg.ConnMgr.MaxConnections,
		LowWater:           cfg.ConnMgr.EffectiveLowWater(),
		LoweredIdleTimeout: cfg.ConnMgr.LoweredIdleTimeout.Duration(),
		IdleGrace:          cfg.Shutdown.IdleGrace.Duration(),
		DrainTimeout:       cfg.Shutdown.DrainTimeout.Duration(),
	}
}
