// Package listener 实现 TCP 接入器
//
// Acceptor 在一个事件循环上接入连接，并用该循环的连接管理器跟踪
// 每个连接的忙碌/空闲状态：
//   - 协议按行划分请求，每行交给 interfaces.Handler 处理，默认原样返回
//   - 处理请求期间连接为忙碌，响应写回后转为空闲并重新计算空闲超时
//   - 空闲超时到期时关闭连接
//   - 连接数达到 MaxConnections 时降低空闲超时并回收最久空闲的连接，
//     没有可回收的连接时拒绝接入；连接数回落到 LowWater 后恢复默认超时
//
// # 关闭
//
// Shutdown 先停止接入，再启动连接管理器的优雅关闭：预告全部连接，
// 关闭空闲连接，等待忙碌连接完成当前请求。IdleGrace 到期后管理器
// 强制关闭剩余连接；ctx 先到期时由 Shutdown 直接强制关闭。
//
// # 线程模型
//
// 每个连接有一个读写 goroutine，状态变化通过 RunInLoop 投递到事件循环，
// 连接管理器只在循环线程内访问。
package listener
