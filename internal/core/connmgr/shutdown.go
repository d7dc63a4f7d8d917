package connmgr

import (
	"time"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// ShutdownState 优雅关闭状态，只前进不回退
type ShutdownState int

const (
	// ShutdownNone 未开始关闭
	ShutdownNone ShutdownState = iota
	// ShutdownNotifyPendingShutdown 正在向连接发送关闭预告
	ShutdownNotifyPendingShutdown
	// ShutdownNotifyPendingShutdownComplete 预告已送达全部连接，宽限定时器已启动
	ShutdownNotifyPendingShutdownComplete
	// ShutdownCloseWhenIdle 正在要求连接空闲后关闭
	ShutdownCloseWhenIdle
	// ShutdownCloseWhenIdleComplete 关闭流程结束
	ShutdownCloseWhenIdleComplete
)

// String 返回状态名
func (s ShutdownState) String() string {
	switch s {
	case ShutdownNone:
		return "none"
	case ShutdownNotifyPendingShutdown:
		return "notify-pending-shutdown"
	case ShutdownNotifyPendingShutdownComplete:
		return "notify-pending-shutdown-complete"
	case ShutdownCloseWhenIdle:
		return "close-when-idle"
	case ShutdownCloseWhenIdleComplete:
		return "close-when-idle-complete"
	default:
		return "unknown"
	}
}

// shutdownDriver 关闭状态机与分批排空的进度
//
// 每个排空阶段有一个编号 epoch；节点处理后记下当前编号，pending 是
// 链表中尚未处理的节点数。尚未处理的节点被 OnActivated/OnDeactivated
// 移动时进入 requeued，下一批先处理它们，游标只向前走。每批走过的节点
// （包括跳过的）都计入批大小。
type shutdownDriver struct {
	state ShutdownState

	cursor   *listCursor
	requeued []*connNode
	epoch    uint64
	pending  int
	active   bool

	// steps 最近一批走过的节点数
	steps int

	// draining 正在执行一批排空，期间不判断是否结束
	draining bool

	// forceClose 宽限期已过，剩余连接一律强制关闭
	forceClose bool

	idleGrace time.Duration
	drainTask pkgif.LoopTask
	graceTask pkgif.LoopTask
}

// forget 节点被摘除时维护未处理计数
func (d *shutdownDriver) forget(n *connNode) {
	if d.active && n.drainEpoch != d.epoch {
		n.drainEpoch = d.epoch
		d.pending--
	}
}

// requeue 尚未处理的节点即将被移动，放入补处理队列
func (d *shutdownDriver) requeue(n *connNode) {
	if !d.active || n.drainEpoch == d.epoch || n.requeueEpoch == d.epoch {
		return
	}
	n.requeueEpoch = d.epoch
	d.requeued = append(d.requeued, n)
}

// next 返回下一个待走的节点，补处理队列优先
func (d *shutdownDriver) next() *connNode {
	if len(d.requeued) > 0 {
		n := d.requeued[0]
		d.requeued[0] = nil
		d.requeued = d.requeued[1:]
		return n
	}
	n := d.cursor.node
	if n != nil {
		d.cursor.node = n.next
	}
	return n
}

// exhausted 游标到达末尾且补处理队列为空
func (d *shutdownDriver) exhausted() bool {
	return d.cursor.node == nil && len(d.requeued) == 0
}

// cancelTasks 取消排空续跑与宽限定时器
func (d *shutdownDriver) cancelTasks() {
	if d.drainTask != nil {
		d.drainTask.Cancel()
		d.drainTask = nil
	}
	if d.graceTask != nil {
		d.graceTask.Cancel()
		d.graceTask = nil
	}
	d.active = false
	d.pending = 0
	d.requeued = nil
}

// StateObserver 观察者的可选扩展，关闭状态每次前进时同步回调
type StateObserver interface {
	OnShutdownStateChanged(state ShutdownState)
}

// State 返回当前关闭状态
func (m *Manager) State() ShutdownState {
	return m.shutdown.state
}

func (m *Manager) setShutdownState(state ShutdownState) {
	if m.shutdown.state == state {
		return
	}
	m.shutdown.state = state
	if so, ok := m.observer.(StateObserver); ok {
		so.OnShutdownStateChanged(state)
	}
}

// InitiateGracefulShutdown 开始优雅关闭
//
// 先向所有连接发送关闭预告，完成后启动 idleGrace 宽限定时器，随后要求
// 连接空闲后关闭：空闲连接立即关闭，忙碌连接等待自行关闭。宽限期结束时
// 仍未关闭的连接被强制关闭。第一批在本次调用内同步处理，其余分批在后续
// 循环轮次中完成。已在关闭中时重复调用无效果。
func (m *Manager) InitiateGracefulShutdown(idleGrace time.Duration) {
	if m.closed {
		logger.Warn("管理器已关闭，忽略关闭请求")
		return
	}
	d := &m.shutdown
	if d.state != ShutdownNone {
		logger.Debug("关闭流程已在进行", "state", d.state)
		return
	}

	if idleGrace < 0 {
		idleGrace = 0
	}
	d.idleGrace = idleGrace
	m.setShutdownState(ShutdownNotifyPendingShutdown)
	logger.Info("开始优雅关闭", "conns", m.conns.Len(), "grace", idleGrace)

	m.startDrainPhase()
	m.drainAllConnections()
}

// startDrainPhase 开启新的排空阶段，所有现存节点都待处理
func (m *Manager) startDrainPhase() {
	d := &m.shutdown
	d.epoch++
	d.pending = m.conns.Len()
	d.active = true
	d.requeued = nil
	d.cursor.node = m.conns.head
}

// drainAllConnections 处理一批连接，未处理完则在下一轮继续
func (m *Manager) drainAllConnections() {
	d := &m.shutdown
	d.drainTask = nil
	if m.closed || !d.active {
		return
	}

	d.draining = true
	d.steps = 0
	for d.pending > 0 && d.steps < m.cfg.DrainBatchSize {
		n := d.next()
		if n == nil {
			break
		}
		d.steps++
		if n.drainEpoch == d.epoch {
			continue
		}
		n.drainEpoch = d.epoch
		d.pending--
		m.drainNode(n)
		if m.closed {
			return
		}
	}
	d.draining = false

	if d.pending > 0 && !d.exhausted() {
		d.drainTask = m.loop.RunInNextPass(m.drainAllConnections)
		return
	}
	m.finishDrainPhase()
}

// drainNode 按当前阶段处理单个连接
func (m *Manager) drainNode(n *connNode) {
	d := &m.shutdown
	conn := n.conn

	if d.forceClose {
		m.dropNode(n)
		return
	}
	switch d.state {
	case ShutdownNotifyPendingShutdown:
		conn.NotifyPendingShutdown()
	case ShutdownCloseWhenIdle:
		conn.CloseWhenIdle()
		if cur, ok := m.nodes[conn]; ok && cur == n && !conn.IsBusy() {
			m.dropNode(n)
		}
	}
}

// finishDrainPhase 一个排空阶段结束后推进状态
func (m *Manager) finishDrainPhase() {
	d := &m.shutdown
	d.active = false
	d.pending = 0
	d.requeued = nil

	switch d.state {
	case ShutdownNotifyPendingShutdown:
		m.setShutdownState(ShutdownNotifyPendingShutdownComplete)
		logger.Debug("关闭预告已送达", "conns", m.conns.Len(), "grace", d.idleGrace)
		d.graceTask = m.loop.ScheduleTimer(d.idleGrace, m.idleGracefulTimeoutExpired)
		d.drainTask = m.loop.RunInNextPass(m.startCloseWhenIdle)
	default:
		m.maybeFinishShutdown()
	}
}

// startCloseWhenIdle 进入空闲关闭阶段
func (m *Manager) startCloseWhenIdle() {
	d := &m.shutdown
	d.drainTask = nil
	if m.closed || d.state != ShutdownNotifyPendingShutdownComplete {
		return
	}
	m.setShutdownState(ShutdownCloseWhenIdle)
	m.startDrainPhase()
	m.drainAllConnections()
}

// idleGracefulTimeoutExpired 宽限期结束，剩余连接全部强制关闭
func (m *Manager) idleGracefulTimeoutExpired() {
	d := &m.shutdown
	d.graceTask = nil
	if m.closed || d.state == ShutdownNone || d.state == ShutdownCloseWhenIdleComplete {
		return
	}

	logger.Info("关闭宽限期结束，强制关闭剩余连接", "conns", m.conns.Len())
	d.forceClose = true
	m.setShutdownState(ShutdownCloseWhenIdle)
	if d.drainTask != nil {
		d.drainTask.Cancel()
		d.drainTask = nil
	}
	m.startDrainPhase()
	m.drainAllConnections()
}

// maybeFinishShutdown 空闲关闭阶段内连接清空后结束关闭流程
func (m *Manager) maybeFinishShutdown() {
	d := &m.shutdown
	if d.state != ShutdownCloseWhenIdle || d.draining || d.pending > 0 || m.conns.Len() > 0 {
		return
	}

	m.setShutdownState(ShutdownCloseWhenIdleComplete)
	if d.graceTask != nil {
		d.graceTask.Cancel()
		d.graceTask = nil
	}
	if d.drainTask != nil {
		d.drainTask.Cancel()
		d.drainTask = nil
	}
	d.active = false
	logger.Info("优雅关闭完成")
}

// notifyLateConnection 关闭流程中新登记的连接立即补发当前阶段的通知
func (m *Manager) notifyLateConnection(n *connNode) {
	d := &m.shutdown
	conn := n.conn
	n.drainEpoch = d.epoch

	switch d.state {
	case ShutdownNotifyPendingShutdown, ShutdownNotifyPendingShutdownComplete:
		conn.NotifyPendingShutdown()
	case ShutdownCloseWhenIdle:
		if d.forceClose {
			m.dropNode(n)
			return
		}
		conn.CloseWhenIdle()
		if cur, ok := m.nodes[conn]; ok && cur == n && !conn.IsBusy() {
			m.dropNode(n)
		}
	case ShutdownCloseWhenIdleComplete:
		conn.CloseWhenIdle()
	}
}
