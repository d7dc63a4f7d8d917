// Package metrics 提供基于 Prometheus 的连接指标
//
// ConnMetrics 实现连接管理器的观察者接口，记录：
//   - 当前连接数、登记/移出总数
//   - 管理器清空次数
//   - 负载回收、超时关闭、拒绝接入的连接数
//   - 优雅关闭状态
//
// # Fx 模块
//
//	app := fx.New(
//	    metrics.Module(),
//	    fx.Invoke(func(m *metrics.ConnMetrics) {
//	        // m 为 nil 表示未启用
//	    }),
//	)
//
// 配置了 Metrics.Addr 时模块会启动 HTTP 服务，在 Metrics.Path（默认
// /metrics）输出指标，同时提供 /health 和 /debug/pprof。
package metrics
