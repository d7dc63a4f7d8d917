package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

const subsystem = "conn"

// ConnMetrics 连接管理指标
//
// 实现 interfaces.ConnManagerObserver，可直接作为管理器的观察者，
// 也可由持有管理器的组件转发回调。多个管理器可以共用同一个实例。
type ConnMetrics struct {
	connections   prometheus.Gauge
	added         prometheus.Counter
	removed       prometheus.Counter
	emptied       prometheus.Counter
	idleDropped   prometheus.Counter
	rejected      prometheus.Counter
	timeouts      prometheus.Counter
	shutdownState prometheus.Gauge
}

var _ pkgif.ConnManagerObserver = (*ConnMetrics)(nil)

// NewConnMetrics 创建连接指标并注册到 reg
func NewConnMetrics(reg prometheus.Registerer, namespace string) (*ConnMetrics, error) {
	m := &ConnMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Number of connections currently tracked by connection managers.",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "added_total",
			Help:      "Connections registered with a connection manager.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "removed_total",
			Help:      "Connections removed from a connection manager.",
		}),
		emptied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "manager_empty_total",
			Help:      "Transitions of a connection manager to zero connections.",
		}),
		idleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "idle_dropped_total",
			Help:      "Idle connections dropped to relieve load.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Accepted sockets closed because the connection limit was reached.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "idle_timeouts_total",
			Help:      "Connections closed by their idle timeout.",
		}),
		shutdownState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "shutdown_state",
			Help:      "Graceful shutdown state: 0 none, 1 notify, 2 notify complete, 3 close when idle, 4 complete.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.connections, m.added, m.removed, m.emptied,
		m.idleDropped, m.rejected, m.timeouts, m.shutdownState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// OnEmpty 管理器连接数变为零
func (m *ConnMetrics) OnEmpty(_ pkgif.ConnManager) {
	if m == nil {
		return
	}
	m.emptied.Inc()
}

// OnConnectionAdded 新连接登记
func (m *ConnMetrics) OnConnectionAdded(_ pkgif.ConnManager) {
	if m == nil {
		return
	}
	m.added.Inc()
	m.connections.Inc()
}

// OnConnectionRemoved 连接移出
func (m *ConnMetrics) OnConnectionRemoved(_ pkgif.ConnManager) {
	if m == nil {
		return
	}
	m.removed.Inc()
	m.connections.Dec()
}

// ObserveIdleDropped 记录负载回收关闭的连接数
func (m *ConnMetrics) ObserveIdleDropped(n int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.idleDropped.Add(float64(n))
	}
}

// ObserveRejected 记录因达到上限被拒绝的连接
func (m *ConnMetrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// ObserveIdleTimeout 记录空闲超时关闭的连接
func (m *ConnMetrics) ObserveIdleTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

// SetShutdownState 记录关闭状态
func (m *ConnMetrics) SetShutdownState(state int) {
	if m == nil {
		return
	}
	m.shutdownState.Set(float64(state))
}
