package acceptor

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-acceptor/internal/core/connmgr"
	"github.com/dep2p/go-acceptor/internal/core/eventloop"
	"github.com/dep2p/go-acceptor/internal/core/listener"
	"github.com/dep2p/go-acceptor/internal/core/metrics"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

var fxLogger = log.Logger("acceptor/fx")

// buildFxApp 构建 Fx 应用
//
// 模块顺序决定生命周期钩子的顺序，停止时按反向执行：
//  1. EventLoop：最先启动、最后停止，保证关闭流程投递的任务仍能执行
//  2. ConnMgr：提供绑定事件循环的管理器工厂
//  3. Metrics：指标与可选的 HTTP 服务
//  4. Listener：最后启动、最先停止，停止时执行优雅关闭
func buildFxApp(cfg *serverConfig, s *Server) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg.config),

		eventloop.Module(),
		connmgr.Module(),
		metrics.Module(),
		listener.Module(),
	}

	// 自定义处理器（未提供时监听器使用回显）
	if cfg.handler != nil {
		handler := cfg.handler
		modules = append(modules, fx.Provide(func() pkgif.Handler { return handler }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(cfg.userFxOptions) > 0 {
		modules = append(modules, cfg.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. Server 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectServerComponents(s)))

	// ════════════════════════════════════════════════════════════════════════
	// 5. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	if cfg.fxDebug {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			l, err := zap.NewDevelopment()
			if err != nil {
				fxLogger.Warn("创建 Fx 调试日志失败", "error", err)
				l = zap.NewNop()
			}
			return &fxevent.ZapLogger{Logger: l}
		}))
	} else {
		// 禁用 Fx 日志输出（避免干扰用户日志）
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}))
	}

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// serverInjectParams Server 组件注入参数
type serverInjectParams struct {
	fx.In

	Acceptor      *listener.Acceptor
	MetricsServer *metrics.Server `optional:"true"`
}

// injectServerComponents 把 Fx 构建的组件交给 Server
func injectServerComponents(s *Server) func(serverInjectParams) {
	return func(p serverInjectParams) {
		s.acceptor = p.Acceptor
		s.metricsServer = p.MetricsServer
		fxLogger.Debug("组件注入完成", "metrics", p.MetricsServer != nil)
	}
}
