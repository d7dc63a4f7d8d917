package mocks

import (
	"github.com/dep2p/go-acceptor/pkg/interfaces"
)

// MockObserver 记录连接管理器观察者回调
type MockObserver struct {
	EmptyCalls   int
	AddedCalls   int
	RemovedCalls int

	// LastCount 最近一次回调时管理器的连接数
	LastCount int

	// 可覆盖的方法
	OnEmptyFunc func(mgr interfaces.ConnManager)
}

var _ interfaces.ConnManagerObserver = (*MockObserver)(nil)

// OnEmpty 连接数变为零
func (m *MockObserver) OnEmpty(mgr interfaces.ConnManager) {
	m.EmptyCalls++
	m.LastCount = mgr.NumConnections()
	if m.OnEmptyFunc != nil {
		m.OnEmptyFunc(mgr)
	}
}

// OnConnectionAdded 新连接登记
func (m *MockObserver) OnConnectionAdded(mgr interfaces.ConnManager) {
	m.AddedCalls++
	m.LastCount = mgr.NumConnections()
}

// OnConnectionRemoved 连接移出
func (m *MockObserver) OnConnectionRemoved(mgr interfaces.ConnManager) {
	m.RemovedCalls++
	m.LastCount = mgr.NumConnections()
}
