// Package interfaces 定义 go-acceptor 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - eventloop.go      - 单线程事件循环（internal/core/eventloop）
//   - connmgr.go        - 连接管理器及被管理连接（internal/core/connmgr）
//   - listener.go       - 连接处理器（internal/core/listener）
//
// 连接管理器只依赖这里的窄接口，事件循环、时间轮和具体连接实现
// 都可以替换（测试中使用 tests/mocks 的手动驱动实现）。
package interfaces
