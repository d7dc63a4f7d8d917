// Package eventloop 实现单 goroutine 事件循环
//
// 连接管理器、时间轮以及连接上的所有状态变更都在同一个循环线程内执行，
// 因此这些组件内部不需要加锁。
//
// 循环提供三种调度方式：
//   - RunInLoop: 任意 goroutine 提交任务（线程安全）
//   - RunInNextPass: 循环线程内注册，下一轮执行
//   - ScheduleTimer: 循环线程内注册一次性定时器
//
// 定时器基于 github.com/benbjohnson/clock，测试中可注入 clock.Mock
// 手动推进时间。
//
// 回调中的 panic 不会被捕获：连接管理器用 panic 表示调用方违反约定，
// 这类错误必须让进程退出。
//
// # 使用示例
//
//	loop := eventloop.New()
//	go loop.Run(ctx)
//	defer loop.Stop()
//
//	_ = loop.RunInLoop(func() {
//	    loop.ScheduleTimer(time.Second, func() { ... })
//	})
package eventloop
