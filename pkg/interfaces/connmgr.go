package interfaces

import "time"

// TimeoutCallback 可注册到时间轮的超时回调
//
// 时间轮以回调值本身作为登记的键，实现必须是可比较的类型，通常是指针。
// 包含 slice、map 或 func 字段的值类型在登记时会 panic；相等的两个值
// 视为同一个回调，后一次登记替换前一次。
type TimeoutCallback interface {
	// TimeoutExpired 超时到期时在循环线程内调用
	TimeoutExpired()
}

// ManagedConnection 被连接管理器跟踪的连接
//
// 连接管理器不拥有连接的内存，只负责登记、移出以及发出通知。
// 所有方法都在事件循环线程内调用。
type ManagedConnection interface {
	TimeoutCallback

	// ID 返回连接标识（仅用于日志）
	ID() string

	// IsBusy 连接当前是否在处理请求
	IsBusy() bool

	// NotifyPendingShutdown 通知连接即将关闭
	NotifyPendingShutdown()

	// CloseWhenIdle 要求连接在空闲时（或已空闲时立即）关闭自身
	CloseWhenIdle()

	// DropConnection 立即强制关闭连接
	DropConnection()

	// ConnectionManager 返回当前登记该连接的管理器（可能为 nil）
	ConnectionManager() ConnManager

	// SetConnectionManager 由管理器在登记/移出时设置
	SetConnectionManager(mgr ConnManager)
}

// ConnManager 单个事件循环内的连接生命周期管理器
type ConnManager interface {
	// AddConnection 登记连接；timeout 为 true 时立即注册空闲超时
	AddConnection(conn ManagedConnection, timeout bool)

	// RemoveConnection 移出连接并取消其超时，不会关闭连接
	RemoveConnection(conn ManagedConnection)

	// OnActivated 连接由空闲变为忙碌
	OnActivated(conn ManagedConnection)

	// OnDeactivated 连接由忙碌变为空闲
	OnDeactivated(conn ManagedConnection)

	// ScheduleTimeout 为连接注册（或重新注册）单次超时
	ScheduleTimeout(conn ManagedConnection, timeout time.Duration)

	// ScheduleCallback 在管理器的时间轮上注册任意超时回调
	ScheduleCallback(cb TimeoutCallback, timeout time.Duration)

	// CancelTimeout 取消回调的待触发超时
	CancelTimeout(cb TimeoutCallback) bool

	// NumConnections 返回当前连接数
	NumConnections() int

	// DefaultTimeout 返回默认空闲超时
	DefaultTimeout() time.Duration
}

// ConnManagerObserver 连接管理器观察者
//
// 所有回调都在触发它的管理器调用内同步执行。
type ConnManagerObserver interface {
	// OnEmpty 连接数由非零变为零
	OnEmpty(mgr ConnManager)

	// OnConnectionAdded 新连接登记
	OnConnectionAdded(mgr ConnManager)

	// OnConnectionRemoved 连接移出
	OnConnectionRemoved(mgr ConnManager)
}
