// Package mocks 提供统一的测试 Mock 实现
//
// # 核心 Mock
//
//   - MockEventLoop: 手动驱动的 interfaces.EventLoop，测试按轮执行回调并推进虚拟时间
//   - MockManagedConnection: 模拟 interfaces.ManagedConnection，记录通知次数
//   - MockObserver: 记录 interfaces.ConnManagerObserver 回调
//   - MockConnMgr: 只实现计数的 interfaces.ConnManager，用于观察者测试
//
// # 设计原则
//
// 1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 关键 Mock 记录调用次数，便于验证测试行为
// 3. 确定性: MockEventLoop 不启动 goroutine，所有回调都在测试 goroutine 内执行
//
// # 使用示例
//
//	loop := mocks.NewMockEventLoop()
//	mgr, _ := connmgr.New(loop, connmgr.DefaultConfig(), &mocks.MockObserver{})
//
//	conn := mocks.NewMockManagedConnection("c1")
//	mgr.AddConnection(conn, true)
//
//	loop.Advance(time.Minute) // 触发空闲超时
//	loop.RunUntilIdle(10)     // 执行排空批次
package mocks
