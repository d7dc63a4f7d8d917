package mocks

import (
	"time"

	"github.com/dep2p/go-acceptor/pkg/interfaces"
)

// MockConnMgr 模拟连接管理器（简化版）
//
// 只记录调用，不维护分区链表；用于验证连接或观察者对管理器的调用。
type MockConnMgr struct {
	Conns               map[interfaces.ManagedConnection]bool
	DefaultTimeoutValue time.Duration

	// 调用记录
	ActivatedCalls   int
	DeactivatedCalls int
	Scheduled        map[interfaces.TimeoutCallback]time.Duration
	CancelCalls      int
}

var _ interfaces.ConnManager = (*MockConnMgr)(nil)

// NewMockConnMgr 创建带有默认值的 MockConnMgr
func NewMockConnMgr() *MockConnMgr {
	return &MockConnMgr{
		Conns:               make(map[interfaces.ManagedConnection]bool),
		DefaultTimeoutValue: time.Minute,
		Scheduled:           make(map[interfaces.TimeoutCallback]time.Duration),
	}
}

// AddConnection 登记连接
func (m *MockConnMgr) AddConnection(conn interfaces.ManagedConnection, timeout bool) {
	m.Conns[conn] = true
	conn.SetConnectionManager(m)
	if timeout {
		m.Scheduled[conn] = m.DefaultTimeoutValue
	}
}

// RemoveConnection 移出连接
func (m *MockConnMgr) RemoveConnection(conn interfaces.ManagedConnection) {
	if !m.Conns[conn] {
		return
	}
	delete(m.Conns, conn)
	delete(m.Scheduled, conn)
	conn.SetConnectionManager(nil)
}

// OnActivated 记录激活
func (m *MockConnMgr) OnActivated(_ interfaces.ManagedConnection) {
	m.ActivatedCalls++
}

// OnDeactivated 记录空闲
func (m *MockConnMgr) OnDeactivated(conn interfaces.ManagedConnection) {
	m.DeactivatedCalls++
	if _, ok := m.Scheduled[conn]; !ok {
		m.Scheduled[conn] = m.DefaultTimeoutValue
	}
}

// ScheduleTimeout 记录连接超时
func (m *MockConnMgr) ScheduleTimeout(conn interfaces.ManagedConnection, timeout time.Duration) {
	m.Scheduled[conn] = timeout
}

// ScheduleCallback 记录任意回调超时
func (m *MockConnMgr) ScheduleCallback(cb interfaces.TimeoutCallback, timeout time.Duration) {
	m.Scheduled[cb] = timeout
}

// CancelTimeout 取消超时
func (m *MockConnMgr) CancelTimeout(cb interfaces.TimeoutCallback) bool {
	m.CancelCalls++
	_, ok := m.Scheduled[cb]
	delete(m.Scheduled, cb)
	return ok
}

// NumConnections 返回连接数
func (m *MockConnMgr) NumConnections() int {
	return len(m.Conns)
}

// DefaultTimeout 返回默认空闲超时
func (m *MockConnMgr) DefaultTimeout() time.Duration {
	return m.DefaultTimeoutValue
}
