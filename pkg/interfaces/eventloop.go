package interfaces

import "time"

// EventLoop 单线程事件循环
//
// 除 RunInLoop 外，所有方法只能在循环线程内调用。
type EventLoop interface {
	// Now 返回循环使用的当前时间
	Now() time.Time

	// RunInLoop 从任意 goroutine 提交一个函数，在循环线程内执行
	//
	// 循环已停止时返回错误。
	RunInLoop(fn func()) error

	// RunInNextPass 在下一轮循环执行 fn
	//
	// 本轮执行期间注册的回调不会在本轮执行。
	RunInNextPass(fn func()) LoopTask

	// ScheduleTimer 注册一次性定时器，到期后在循环线程内执行 fn
	ScheduleTimer(d time.Duration, fn func()) LoopTask
}

// LoopTask 已注册到事件循环的回调
type LoopTask interface {
	// Cancel 取消尚未执行的回调，返回是否真正取消
	Cancel() bool

	// Pending 回调是否仍在等待执行
	Pending() bool
}
