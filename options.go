package acceptor

import (
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-acceptor/config"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*serverConfig) error

// serverConfig 内部选项结构
type serverConfig struct {
	// config 统一配置，选项直接在其上修改
	config *config.Config

	// handler 请求处理器，nil 表示回显
	handler pkgif.Handler

	// fxDebug 输出 Fx 依赖注入日志
	fxDebug bool

	// userFxOptions 用户追加的 Fx 选项
	userFxOptions []fx.Option
}

// newServerConfig 创建默认选项
func newServerConfig() *serverConfig {
	return &serverConfig{config: config.NewConfig()}
}

// WithConfig 使用完整配置替换默认配置
//
// 应放在其它选项之前，之后的选项在该配置上继续修改。
func WithConfig(cfg *config.Config) Option {
	return func(c *serverConfig) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidOption)
		}
		c.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithPreset 使用预设配置（default/production/test）
func WithPreset(name string) Option {
	return func(c *serverConfig) error {
		cfg, err := config.NewConfigByPreset(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		c.config = cfg
		return nil
	}
}

// WithListenAddr 设置监听地址
//
// 示例：
//
//	acceptor.WithListenAddr("127.0.0.1:9000")
func WithListenAddr(addr string) Option {
	return func(c *serverConfig) error {
		c.config.Listen = c.config.Listen.WithAddr(addr)
		return nil
	}
}

// WithIdleTimeout 设置默认空闲超时
func WithIdleTimeout(d time.Duration) Option {
	return func(c *serverConfig) error {
		if d < 0 {
			return fmt.Errorf("%w: negative idle timeout", ErrInvalidOption)
		}
		c.config.ConnMgr = c.config.ConnMgr.WithIdleTimeout(d)
		return nil
	}
}

// WithMaxConnections 设置连接数上限和恢复水位
//
// 达到上限后降低空闲超时并回收空闲连接；lowWater 为 0 时取上限的 90%。
func WithMaxConnections(max, lowWater int) Option {
	return func(c *serverConfig) error {
		c.config.ConnMgr = c.config.ConnMgr.WithMaxConnections(max, lowWater)
		return nil
	}
}

// WithIdleGrace 设置优雅关闭的宽限期
func WithIdleGrace(d time.Duration) Option {
	return func(c *serverConfig) error {
		c.config.Shutdown = c.config.Shutdown.WithIdleGrace(d)
		return nil
	}
}

// WithDrainTimeout 设置 Stop 等待连接关闭的上限
func WithDrainTimeout(d time.Duration) Option {
	return func(c *serverConfig) error {
		c.config.Shutdown.DrainTimeout = config.Duration(d)
		return nil
	}
}

// WithAcceptRate 设置接入限速
func WithAcceptRate(perSecond float64, burst int) Option {
	return func(c *serverConfig) error {
		c.config.Listen = c.config.Listen.WithAcceptRate(perSecond, burst)
		return nil
	}
}

// WithHandler 设置请求处理器
func WithHandler(h pkgif.Handler) Option {
	return func(c *serverConfig) error {
		if h == nil {
			return fmt.Errorf("%w: nil handler", ErrInvalidOption)
		}
		c.handler = h
		return nil
	}
}

// WithMetricsAddr 设置指标 HTTP 服务地址并启用指标
func WithMetricsAddr(addr string) Option {
	return func(c *serverConfig) error {
		c.config.Metrics.Enable = true
		c.config.Metrics.Addr = addr
		return nil
	}
}

// WithoutMetrics 关闭指标收集
func WithoutMetrics() Option {
	return func(c *serverConfig) error {
		c.config.Metrics.Enable = false
		c.config.Metrics.Addr = ""
		return nil
	}
}

// WithFxDebug 输出 Fx 依赖注入过程日志
func WithFxDebug(enable bool) Option {
	return func(c *serverConfig) error {
		c.fxDebug = enable
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(c *serverConfig) error {
		c.userFxOptions = append(c.userFxOptions, opts...)
		return nil
	}
}
