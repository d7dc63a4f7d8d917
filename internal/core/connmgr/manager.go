package connmgr

import (
	"fmt"
	"time"

	"github.com/dep2p/go-acceptor/internal/core/timerwheel"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

var logger = log.Logger("core/connmgr")

// Manager 单个事件循环内的连接生命周期管理器
//
// 所有方法都必须在 loop 的线程内调用，内部不加锁。
type Manager struct {
	cfg      Config
	loop     pkgif.EventLoop
	wheel    *timerwheel.Wheel
	observer pkgif.ConnManagerObserver

	conns connList
	nodes map[pkgif.ManagedConnection]*connNode

	// loweredIdleTimeout 提前回收阈值，始终满足 0 <= x <= cfg.IdleTimeout
	loweredIdleTimeout time.Duration

	shutdown shutdownDriver

	closed bool
}

var _ pkgif.ConnManager = (*Manager)(nil)

// New 创建连接管理器
//
// observer 可以为 nil。管理器独占一个时间轮，时间轮的 tick 由 loop 驱动。
func New(loop pkgif.EventLoop, cfg Config, observer pkgif.ConnManagerObserver) (*Manager, error) {
	if loop == nil {
		return nil, ErrNoEventLoop
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:  cfg,
		loop: loop,
		wheel: timerwheel.New(loop,
			timerwheel.WithTickInterval(cfg.WheelTickInterval),
			timerwheel.WithSlots(cfg.WheelSlots)),
		observer:           observer,
		nodes:              make(map[pkgif.ManagedConnection]*connNode),
		loweredIdleTimeout: cfg.IdleTimeout,
	}
	m.shutdown.cursor = m.conns.newCursor(nil)
	return m, nil
}

// ==================== 登记与移出 ====================

// AddConnection 登记连接
//
// 新连接放入忙碌区；timeout 为 true 时立即按当前生效的空闲超时注册超时。
// 连接若仍登记在其他管理器上，先从那里移出。关闭流程进行中加入的连接
// 会立即收到当前阶段的通知。
func (m *Manager) AddConnection(conn pkgif.ManagedConnection, timeout bool) {
	if m.closed {
		logger.Warn("管理器已关闭，忽略新连接", "conn", conn.ID())
		return
	}

	if _, ok := m.nodes[conn]; !ok {
		if old := conn.ConnectionManager(); old != nil && old != pkgif.ConnManager(m) {
			old.RemoveConnection(conn)
		}

		n := &connNode{conn: conn}
		m.nodes[conn] = n
		m.conns.pushBusy(n)
		conn.SetConnectionManager(m)
		logger.Debug("登记连接", "conn", conn.ID(), "total", m.conns.Len())

		if m.observer != nil {
			m.observer.OnConnectionAdded(m)
		}

		if m.shutdown.state != ShutdownNone {
			m.notifyLateConnection(n)
			if m.nodes[conn] != n {
				return
			}
		}
	}

	if timeout {
		m.wheel.Schedule(conn, m.idleTimeout())
	}
}

// RemoveConnection 移出连接并取消其超时
//
// 不会关闭连接；未登记在本管理器的连接直接忽略。
func (m *Manager) RemoveConnection(conn pkgif.ManagedConnection) {
	n, ok := m.nodes[conn]
	if !ok {
		return
	}
	m.unlinkNode(n)
}

// unlinkNode 摘除节点并发出观察者通知
func (m *Manager) unlinkNode(n *connNode) {
	conn := n.conn
	m.wheel.Cancel(conn)
	m.conns.unlink(n)
	delete(m.nodes, conn)
	m.shutdown.forget(n)
	conn.SetConnectionManager(nil)

	logger.Debug("移出连接", "conn", conn.ID(), "total", m.conns.Len())
	if m.observer != nil {
		m.observer.OnConnectionRemoved(m)
		if m.conns.Len() == 0 {
			m.observer.OnEmpty(m)
		}
	}
	m.maybeFinishShutdown()
}

// dropNode 摘除节点后强制关闭连接
func (m *Manager) dropNode(n *connNode) {
	conn := n.conn
	m.unlinkNode(n)
	conn.DropConnection()
}

// ==================== 查询 ====================

// NumConnections 返回连接总数
func (m *Manager) NumConnections() int {
	return m.conns.Len()
}

// NumIdle 返回空闲区连接数
func (m *Manager) NumIdle() int {
	return m.conns.numIdle
}

// NumBusy 返回忙碌区连接数
func (m *Manager) NumBusy() int {
	return m.conns.Len() - m.conns.numIdle
}

// IterateConns 按链表顺序对每个连接调用 fn
//
// fn 可以移出（或关闭）任意连接，包括当前连接；被移出且尚未访问到的
// 连接不会再被访问。fn 期间新登记的连接不保证被访问。
func (m *Manager) IterateConns(fn func(conn pkgif.ManagedConnection)) {
	c := m.conns.newCursor(m.conns.head)
	defer m.conns.releaseCursor(c)

	for c.node != nil {
		n := c.node
		c.node = n.next
		fn(n.conn)
	}
}

// ==================== 活动状态 ====================

// OnActivated 连接由空闲变为忙碌，移到忙碌区靠近边界的一端
func (m *Manager) OnActivated(conn pkgif.ManagedConnection) {
	if m.closed {
		return
	}
	n := m.mustNode(conn, "OnActivated")
	if !n.idle {
		return
	}
	m.shutdown.requeue(n)
	m.conns.unlink(n)
	m.conns.insertBusyAtBoundary(n)
}

// OnDeactivated 连接由忙碌变为空闲，移到空闲区末尾
//
// 连接没有待触发的超时时，按当前生效的空闲超时注册。
func (m *Manager) OnDeactivated(conn pkgif.ManagedConnection) {
	if m.closed {
		return
	}
	n := m.mustNode(conn, "OnDeactivated")
	if !n.idle {
		m.shutdown.requeue(n)
		m.conns.unlink(n)
		m.conns.pushIdle(n)
	}
	if !m.wheel.IsScheduled(conn) {
		m.wheel.Schedule(conn, m.idleTimeout())
	}
}

// mustNode 返回连接的节点；连接未登记属于内部状态不一致
func (m *Manager) mustNode(conn pkgif.ManagedConnection, op string) *connNode {
	n, ok := m.nodes[conn]
	if !ok {
		panic(fmt.Sprintf("connmgr: %s on unmanaged connection %s", op, conn.ID()))
	}
	return n
}

// ==================== 超时 ====================

// ScheduleTimeout 为连接注册单次超时，替换已有登记
func (m *Manager) ScheduleTimeout(conn pkgif.ManagedConnection, timeout time.Duration) {
	m.ScheduleCallback(conn, timeout)
}

// ScheduleCallback 在管理器的时间轮上注册任意超时回调
func (m *Manager) ScheduleCallback(cb pkgif.TimeoutCallback, timeout time.Duration) {
	if m.closed {
		return
	}
	m.wheel.Schedule(cb, timeout)
}

// CancelTimeout 取消回调的待触发超时
func (m *Manager) CancelTimeout(cb pkgif.TimeoutCallback) bool {
	return m.wheel.Cancel(cb)
}

// DefaultTimeout 返回默认空闲超时
func (m *Manager) DefaultTimeout() time.Duration {
	return m.cfg.IdleTimeout
}

// LoweredIdleTimeout 返回提前回收阈值
func (m *Manager) LoweredIdleTimeout() time.Duration {
	return m.loweredIdleTimeout
}

// SetLoweredIdleTimeout 设置提前回收阈值
//
// 之后注册的空闲超时使用 min(默认超时, timeout)，已注册的超时不受影响。
// timeout 不在 [0, DefaultTimeout()] 内属于调用方错误，直接 panic。
func (m *Manager) SetLoweredIdleTimeout(timeout time.Duration) {
	if timeout < 0 || timeout > m.cfg.IdleTimeout {
		panic(fmt.Sprintf("connmgr: lowered idle timeout %s outside [0, %s]", timeout, m.cfg.IdleTimeout))
	}
	if timeout != m.loweredIdleTimeout {
		logger.Debug("调整提前回收阈值", "from", m.loweredIdleTimeout, "to", timeout)
	}
	m.loweredIdleTimeout = timeout
}

// idleTimeout 当前生效的空闲超时
func (m *Manager) idleTimeout() time.Duration {
	if m.loweredIdleTimeout < m.cfg.IdleTimeout {
		return m.loweredIdleTimeout
	}
	return m.cfg.IdleTimeout
}

// ==================== 负载回收 ====================

// DropIdleConnections 从空闲最久的一端强制关闭最多 num 个空闲连接
//
// 返回实际关闭的数量；小于 num 表示空闲连接不足，不是错误。
func (m *Manager) DropIdleConnections(num int) int {
	count := 0
	for count < num {
		n := m.conns.idleStart
		if n == nil {
			break
		}
		m.dropNode(n)
		count++
	}
	if num > 0 {
		logger.Debug("回收空闲连接", "requested", num, "dropped", count, "remaining", m.conns.Len())
	}
	return count
}

// DropAllConnections 立即强制关闭所有连接，不经过优雅关闭流程
func (m *Manager) DropAllConnections() {
	m.shutdown.cancelTasks()
	if m.shutdown.state != ShutdownNone {
		m.setShutdownState(ShutdownCloseWhenIdleComplete)
	}

	total := m.conns.Len()
	for m.conns.head != nil {
		m.dropNode(m.conns.head)
	}
	if total > 0 {
		logger.Info("已强制关闭全部连接", "count", total)
	}
}

// ==================== 销毁 ====================

// Close 销毁管理器
//
// 只清理自身状态：取消排空回调、宽限定时器以及时间轮上的所有超时，
// 忘记所有连接且不通知它们。
func (m *Manager) Close() error {
	if m.closed {
		return ErrManagerClosed
	}
	m.closed = true

	m.shutdown.cancelTasks()
	cancelled := m.wheel.CancelAll()
	for conn := range m.nodes {
		conn.SetConnectionManager(nil)
	}
	forgotten := m.conns.Len()
	m.conns.reset()
	m.nodes = make(map[pkgif.ManagedConnection]*connNode)

	logger.Debug("连接管理器已销毁", "forgotten", forgotten, "timeouts", cancelled)
	return nil
}
