package connmgr

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-acceptor/config"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 管理器与事件循环一一对应，由持有循环的组件（监听器）通过 Factory 创建。
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(
			func(p Params) Config { return ConfigFromUnified(p.UnifiedCfg) },
			ProvideFactory,
		),
	)
}

// Params 配置依赖参数，未提供统一配置时使用默认值
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Factory 创建绑定到指定事件循环的连接管理器
type Factory func(loop pkgif.EventLoop, observer pkgif.ConnManagerObserver) (*Manager, error)

// ProvideFactory 提供连接管理器工厂
func ProvideFactory(cfg Config) (Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func(loop pkgif.EventLoop, observer pkgif.ConnManagerObserver) (*Manager, error) {
		return New(loop, cfg, observer)
	}, nil
}
