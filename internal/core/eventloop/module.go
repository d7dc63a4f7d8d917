package eventloop

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventloop",
		fx.Provide(
			ProvideLoop,
			func(l *Loop) pkgif.EventLoop { return l },
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideLoop 提供事件循环
func ProvideLoop() *Loop {
	return New()
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC   fx.Lifecycle
	Loop *Loop
}

// registerLifecycle 注册生命周期
//
// 循环在 OnStart 时于独立 goroutine 启动；OnStop 停止循环并等待退出。
// 依赖循环的模块（listener）先于本模块停止，保证关闭流程里提交的任务
// 仍能执行。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := input.Loop.Run(context.Background()); err != nil {
					logger.Warn("事件循环异常退出", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			input.Loop.Stop()
			select {
			case <-input.Loop.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
