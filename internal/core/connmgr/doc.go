// Package connmgr 实现单个事件循环内的连接生命周期管理器
//
// # 核心功能
//
// 1. 分区链表 - 忙碌连接在前，空闲连接在后
//   - 新连接从 head 进入忙碌区
//   - 连接变为空闲时追加到 tail，边界处是空闲最久的连接
//   - 连接重新忙碌时插回忙碌区靠近边界的一端
//
// 2. 空闲超时 - 连接变为空闲时在时间轮上注册超时
//   - 默认超时构造时固定
//   - 负载高时用 SetLoweredIdleTimeout 收紧，只影响之后注册的超时
//
// 3. 负载回收 - DropIdleConnections 从空闲最久的一端强制关闭连接
//
// 4. 优雅关闭 - 状态只前进：
//
//	none → notify-pending-shutdown → notify-pending-shutdown-complete
//	     → close-when-idle → close-when-idle-complete
//
// 每轮循环最多处理 DrainBatchSize 个连接，剩余部分在下一轮继续，
// 大量连接时也不会长时间占住循环。宽限期结束后剩余连接被强制关闭。
//
// # 快速开始
//
//	mgr, err := connmgr.New(loop, connmgr.DefaultConfig(), observer)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	mgr.AddConnection(conn, true)
//	...
//	mgr.InitiateGracefulShutdown(5 * time.Second)
//
// # 注意事项
//
// 1. 非并发安全: 所有方法必须在 loop 的线程内调用，其他 goroutine 通过
// loop.RunInLoop 提交
// 2. 不持有连接: Close 只清理管理器自身状态，不关闭也不通知连接
// 3. 对未登记连接调用 OnActivated/OnDeactivated 会 panic
package connmgr
