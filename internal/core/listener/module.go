package listener

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-acceptor/config"
	"github.com/dep2p/go-acceptor/internal/core/connmgr"
	"github.com/dep2p/go-acceptor/internal/core/metrics"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("listener",
		fx.Provide(
			func(p configParams) Config { return ConfigFromUnified(p.UnifiedCfg) },
			ProvideAcceptor,
		),
		fx.Invoke(registerLifecycle),
	)
}

type configParams struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Params 接入器依赖参数
type Params struct {
	fx.In

	Config  Config
	Loop    pkgif.EventLoop
	Factory connmgr.Factory
	Handler pkgif.Handler        `optional:"true"`
	Metrics *metrics.ConnMetrics `optional:"true"`
}

// ProvideAcceptor 提供接入器
func ProvideAcceptor(p Params) (*Acceptor, error) {
	return New(p.Config, p.Loop, p.Factory, p.Handler, p.Metrics)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Acceptor *Acceptor
}

// registerLifecycle 注册生命周期
//
// 停止时最多等待 DrainTimeout，随后强制关闭剩余连接。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Acceptor.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			drainTimeout := input.Acceptor.cfg.DrainTimeout
			if drainTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, drainTimeout)
				defer cancel()
			}
			return input.Acceptor.Shutdown(ctx)
		},
	})
}
