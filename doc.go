// Package acceptor 提供带连接生命周期管理的行协议 TCP 服务
//
// 每个连接被一个单线程事件循环上的连接管理器跟踪：处理请求时为忙碌，
// 否则为空闲。空闲连接按超时关闭；连接数达到上限时提前回收最久空闲的
// 连接；关闭服务时分阶段排空连接，先预告、再关闭空闲连接、最后在宽限期
// 到期后强制关闭。
//
// # 快速开始
//
//	import "github.com/dep2p/go-acceptor"
//
//	srv, err := acceptor.Start(ctx,
//	    acceptor.WithListenAddr(":9000"),
//	    acceptor.WithIdleTimeout(30*time.Second),
//	    acceptor.WithHandler(interfaces.HandlerFunc(
//	        func(ctx context.Context, req []byte) ([]byte, error) {
//	            return bytes.ToUpper(req), nil
//	        },
//	    )),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
// # 组件
//
//	┌──────────────────────────────────────────────────────┐
//	│  Server（本包，Fx 门面）                               │
//	├──────────────────────────────────────────────────────┤
//	│  listener   TCP 接入、行协议连接、负载回收、优雅关闭     │
//	│  connmgr    忙碌/空闲分区链表、空闲超时、分批排空       │
//	│  timerwheel 空闲超时时间轮                             │
//	│  eventloop  单线程事件循环                             │
//	│  metrics    Prometheus 指标与 HTTP 服务                │
//	└──────────────────────────────────────────────────────┘
//
// # 配置
//
// 配置来源按优先级从低到高：默认值、预设、JSON 文件（config.Load）、
// ACCEPTOR_ 前缀的环境变量（config.ApplyEnv）、Option。
package acceptor
