package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Config 指标配置
type Config struct {
	// Enabled 是否启用指标收集
	Enabled bool

	// Addr HTTP 服务地址，空字符串表示不启动
	Addr string

	// Path 指标路径
	Path string

	// Namespace 指标名前缀
	Namespace string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Path:      DefaultPath,
		Namespace: "acceptor",
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:   cfg.Metrics.Enable,
		Addr:      cfg.Metrics.Addr,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	}
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 metrics 的 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			func(p Params) Config { return ConfigFromUnified(p.UnifiedCfg) },
			NewRegistry,
			ProvideConnMetrics,
			ProvideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// NewRegistry 创建带进程与运行时指标的注册表
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideConnMetrics 提供连接指标，未启用时返回 nil
func ProvideConnMetrics(cfg Config, reg *prometheus.Registry) (*ConnMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return NewConnMetrics(reg, cfg.Namespace)
}

// ProvideServer 提供指标 HTTP 服务，未配置地址时返回 nil
func ProvideServer(cfg Config, reg *prometheus.Registry) *Server {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	return NewServer(cfg.Addr, cfg.Path, reg)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Server *Server `optional:"true"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	if input.Server == nil {
		return
	}
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Server.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return input.Server.Stop(ctx)
		},
	})
}
