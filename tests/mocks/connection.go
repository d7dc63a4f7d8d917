package mocks

import (
	"github.com/dep2p/go-acceptor/pkg/interfaces"
)

// MockManagedConnection 模拟 interfaces.ManagedConnection
//
// 默认行为：
//   - CloseWhenIdle: 空闲时立即关闭，忙碌时记录标记，之后 Deactivate 时关闭
//   - DropConnection: 立即关闭
//   - TimeoutExpired: 只记录调用
//
// 关闭时会从登记的管理器中移出自身。
type MockManagedConnection struct {
	IDValue string
	Busy    bool
	Manager interfaces.ConnManager
	Closed  bool

	// closeWhenIdle 已收到 CloseWhenIdle 且尚未关闭
	closeWhenIdle bool

	// 可覆盖的方法
	IsBusyFunc                func() bool
	NotifyPendingShutdownFunc func()
	CloseWhenIdleFunc         func()
	DropConnectionFunc        func()
	TimeoutExpiredFunc        func()

	// 调用记录
	PendingShutdownCalls int
	CloseWhenIdleCalls   int
	DropCalls            int
	TimeoutCalls         int
}

var _ interfaces.ManagedConnection = (*MockManagedConnection)(nil)

// NewMockManagedConnection 创建忙碌状态的 MockManagedConnection
func NewMockManagedConnection(id string) *MockManagedConnection {
	return &MockManagedConnection{IDValue: id, Busy: true}
}

// ID 返回连接标识
func (m *MockManagedConnection) ID() string {
	return m.IDValue
}

// IsBusy 返回忙碌状态
func (m *MockManagedConnection) IsBusy() bool {
	if m.IsBusyFunc != nil {
		return m.IsBusyFunc()
	}
	return m.Busy
}

// NotifyPendingShutdown 记录关闭预告
func (m *MockManagedConnection) NotifyPendingShutdown() {
	m.PendingShutdownCalls++
	if m.NotifyPendingShutdownFunc != nil {
		m.NotifyPendingShutdownFunc()
	}
}

// CloseWhenIdle 空闲时关闭
func (m *MockManagedConnection) CloseWhenIdle() {
	m.CloseWhenIdleCalls++
	if m.CloseWhenIdleFunc != nil {
		m.CloseWhenIdleFunc()
		return
	}
	m.closeWhenIdle = true
	if !m.Busy {
		m.Close()
	}
}

// DropConnection 强制关闭
func (m *MockManagedConnection) DropConnection() {
	m.DropCalls++
	if m.DropConnectionFunc != nil {
		m.DropConnectionFunc()
		return
	}
	m.Close()
}

// TimeoutExpired 记录超时
func (m *MockManagedConnection) TimeoutExpired() {
	m.TimeoutCalls++
	if m.TimeoutExpiredFunc != nil {
		m.TimeoutExpiredFunc()
	}
}

// ConnectionManager 返回登记的管理器
func (m *MockManagedConnection) ConnectionManager() interfaces.ConnManager {
	return m.Manager
}

// SetConnectionManager 设置登记的管理器
func (m *MockManagedConnection) SetConnectionManager(mgr interfaces.ConnManager) {
	m.Manager = mgr
}

// Activate 模拟连接开始处理请求
func (m *MockManagedConnection) Activate() {
	m.Busy = true
	if m.Manager != nil {
		m.Manager.OnActivated(m)
	}
}

// Deactivate 模拟连接处理完请求；收到过 CloseWhenIdle 时随即关闭
func (m *MockManagedConnection) Deactivate() {
	m.Busy = false
	if m.Manager != nil {
		m.Manager.OnDeactivated(m)
	}
	if m.closeWhenIdle {
		m.Close()
	}
}

// Close 关闭连接并从管理器移出
func (m *MockManagedConnection) Close() {
	if m.Closed {
		return
	}
	m.Closed = true
	m.closeWhenIdle = false
	if m.Manager != nil {
		m.Manager.RemoveConnection(m)
	}
}
