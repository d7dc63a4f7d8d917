// Package timerwheel 实现绑定到事件循环的哈希时间轮
//
// 时间轮把超时回调按到期时间散列到固定数量的槽中，每个 tick 只扫描
// 当前槽，调度与取消都是 O(1)。
//
//	     ┌───┐
//	 ┌───┤ 0 │◄── cursor
//	 │   └───┘
//	 │   ┌───┐
//	 │   │ 1 │──► [entry] → [entry]
//	 │   └───┘
//	 │     ⋮
//	 │   ┌───┐
//	 └───│255│──► [entry]
//	     └───┘
//
// 约束：
//   - 每个回调最多只有一个待触发登记，重复调度会替换旧登记
//   - 回调不会早于其调度时长触发；槽内尚未到期的条目（超过一圈的长超时）
//     会被重新放置而不是触发
//   - 回调在触发前已从时间轮移除，可以在回调内重新调度自身
//   - 只有存在条目时才向事件循环注册 tick 定时器
//
// 时间轮不是线程安全的，只能在其事件循环线程内使用。
package timerwheel
