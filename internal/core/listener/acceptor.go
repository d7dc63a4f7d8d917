package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-acceptor/internal/core/connmgr"
	"github.com/dep2p/go-acceptor/internal/core/metrics"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
	"github.com/dep2p/go-acceptor/pkg/lib/log"
)

var logger = log.Logger("core/listener")

// acceptBackoffMax 连续 Accept 失败时的最大退避
const acceptBackoffMax = time.Second

// ============================================================================
//                              Acceptor 实现
// ============================================================================

// Acceptor TCP 接入器
//
// 每个 Acceptor 绑定一个事件循环并持有一个连接管理器，自身作为管理器的
// 观察者，再把回调转发给指标。管理器和连接状态只在循环线程内访问。
type Acceptor struct {
	cfg     Config
	loop    pkgif.EventLoop
	mgr     *connmgr.Manager
	handler pkgif.Handler
	metrics *metrics.ConnMetrics
	limiter *rate.Limiter

	ln      net.Listener
	started atomic.Bool
	closed  atomic.Bool

	acceptCtx    context.Context
	acceptCancel context.CancelFunc
	wg           sync.WaitGroup

	// 以下字段只在循环线程内访问
	shedding bool
	closing  bool
	emptyCh  chan struct{}
}

var (
	_ pkgif.ConnManagerObserver = (*Acceptor)(nil)
	_ connmgr.StateObserver     = (*Acceptor)(nil)
)

// New 创建接入器
//
// handler 为 nil 时使用 EchoHandler；m 为 nil 时不记录指标。
func New(cfg Config, loop pkgif.EventLoop, factory connmgr.Factory, handler pkgif.Handler, m *metrics.ConnMetrics) (*Acceptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loop == nil {
		return nil, connmgr.ErrNoEventLoop
	}
	if handler == nil {
		handler = EchoHandler
	}

	a := &Acceptor{
		cfg:     cfg,
		loop:    loop,
		handler: handler,
		metrics: m,
		emptyCh: make(chan struct{}),
	}
	if cfg.MaxConnections > 0 && cfg.LowWater == 0 {
		a.cfg.LowWater = cfg.MaxConnections * 9 / 10
	}
	if cfg.AcceptRate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}

	mgr, err := factory(loop, a)
	if err != nil {
		return nil, fmt.Errorf("创建连接管理器失败: %w", err)
	}
	a.mgr = mgr

	if a.cfg.LoweredIdleTimeout > mgr.DefaultTimeout() {
		a.cfg.LoweredIdleTimeout = mgr.DefaultTimeout()
	}
	a.acceptCtx, a.acceptCancel = context.WithCancel(context.Background())
	return a, nil
}

// Start 开始监听并接入连接
func (a *Acceptor) Start(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Addr)
	if err != nil {
		a.started.Store(false)
		return fmt.Errorf("监听 %s 失败: %w", a.cfg.Addr, err)
	}
	a.ln = ln

	a.wg.Add(1)
	go a.acceptLoop()

	logger.Info("开始接入连接", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际监听地址，未启动时返回 nil
func (a *Acceptor) Addr() net.Addr {
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Manager 返回连接管理器（只能在循环线程内使用）
func (a *Acceptor) Manager() *connmgr.Manager {
	return a.mgr
}

// acceptLoop 接受连接循环
func (a *Acceptor) acceptLoop() {
	defer a.wg.Done()

	var backoff time.Duration
	for {
		if a.limiter != nil {
			if err := a.limiter.Wait(a.acceptCtx); err != nil {
				return
			}
		}

		nc, err := a.ln.Accept()
		if err != nil {
			if a.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > acceptBackoffMax {
				backoff = acceptBackoffMax
			}
			logger.Warn("接受连接失败", "err", err, "retryIn", backoff)
			select {
			case <-time.After(backoff):
			case <-a.acceptCtx.Done():
				return
			}
			continue
		}
		backoff = 0

		if err := a.loop.RunInLoop(func() { a.onAccepted(nc) }); err != nil {
			_ = nc.Close()
			return
		}
	}
}

// onAccepted 在循环线程内登记新连接
func (a *Acceptor) onAccepted(nc net.Conn) {
	if a.closing {
		_ = nc.Close()
		return
	}
	if !a.makeRoom() {
		_ = nc.Close()
		a.metrics.ObserveRejected()
		logger.Warn("连接数已达上限，拒绝接入", "remote", nc.RemoteAddr().String(), "max", a.cfg.MaxConnections)
		return
	}

	c := newConn(a, nc)
	a.mgr.AddConnection(c, true)
	// 新连接尚未发出请求，按空闲处理
	a.mgr.OnDeactivated(c)

	a.wg.Add(1)
	go c.serve()

	logger.Debug("接入连接", "conn", c.ID(), "remote", nc.RemoteAddr().String())
}

// makeRoom 达到上限时降低空闲超时并回收空闲连接，返回是否还能接入
func (a *Acceptor) makeRoom() bool {
	limit := a.cfg.MaxConnections
	if limit == 0 {
		return true
	}
	n := a.mgr.NumConnections()
	if n < limit {
		return true
	}

	if !a.shedding {
		a.shedding = true
		a.mgr.SetLoweredIdleTimeout(a.cfg.LoweredIdleTimeout)
		logger.Info("连接数达到上限，启用负载回收", "conns", n, "max", limit)
	}

	dropped := a.mgr.DropIdleConnections(n - limit + 1)
	a.metrics.ObserveIdleDropped(dropped)
	return a.mgr.NumConnections() < limit
}

// ============================================================================
//                              ConnManagerObserver 接口实现
// ============================================================================

// OnEmpty 管理器变为空
func (a *Acceptor) OnEmpty(mgr pkgif.ConnManager) {
	a.metrics.OnEmpty(mgr)
	if a.closing {
		a.signalEmpty()
	}
}

// OnConnectionAdded 新连接登记
func (a *Acceptor) OnConnectionAdded(mgr pkgif.ConnManager) {
	a.metrics.OnConnectionAdded(mgr)
}

// OnConnectionRemoved 连接移出，低于恢复水位时恢复默认超时
func (a *Acceptor) OnConnectionRemoved(mgr pkgif.ConnManager) {
	a.metrics.OnConnectionRemoved(mgr)
	if a.shedding && mgr.NumConnections() < a.cfg.LowWater {
		a.shedding = false
		a.mgr.SetLoweredIdleTimeout(a.mgr.DefaultTimeout())
		logger.Info("连接数回落，恢复默认空闲超时", "conns", mgr.NumConnections())
	}
}

func (a *Acceptor) signalEmpty() {
	select {
	case <-a.emptyCh:
	default:
		close(a.emptyCh)
	}
}

// OnShutdownStateChanged 关闭状态前进
func (a *Acceptor) OnShutdownStateChanged(state connmgr.ShutdownState) {
	a.metrics.SetShutdownState(int(state))
	logger.Debug("关闭状态变化", "state", state.String())
}

// ============================================================================
//                              关闭
// ============================================================================

// Shutdown 优雅关闭
//
// 停止接入新连接后启动连接管理器的优雅关闭流程，等待全部连接关闭；
// ctx 到期时强制关闭剩余连接。最后关闭管理器并等待所有读写 goroutine 退出。
func (a *Acceptor) Shutdown(ctx context.Context) error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs error
	a.acceptCancel()
	if a.ln != nil {
		if err := a.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, fmt.Errorf("关闭监听失败: %w", err))
		}
	}

	err := a.runSync(func() {
		a.closing = true
		a.mgr.InitiateGracefulShutdown(a.cfg.IdleGrace)
		if a.mgr.NumConnections() == 0 {
			a.signalEmpty()
		}
	})
	if err != nil {
		// 循环已停止，连接状态无法再推进
		return multierr.Append(errs, err)
	}
	logger.Info("开始优雅关闭", "grace", a.cfg.IdleGrace)

	select {
	case <-a.emptyCh:
	case <-ctx.Done():
		logger.Warn("优雅关闭超时，强制关闭剩余连接", "err", ctx.Err())
		errs = multierr.Append(errs, ctx.Err())
		errs = multierr.Append(errs, a.runSync(func() {
			a.mgr.DropAllConnections()
		}))
	}

	errs = multierr.Append(errs, a.runSync(func() {
		if err := a.mgr.Close(); err != nil {
			logger.Debug("关闭连接管理器", "err", err)
		}
	}))

	a.wg.Wait()
	logger.Info("接入器已关闭")
	return errs
}

// Close 立即关闭全部连接
func (a *Acceptor) Close() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.Shutdown(ctx)
	if errors.Is(err, context.Canceled) {
		// 主动取消不算错误
		var rest error
		for _, e := range multierr.Errors(err) {
			if !errors.Is(e, context.Canceled) {
				rest = multierr.Append(rest, e)
			}
		}
		return rest
	}
	return err
}

// runSync 在循环线程内执行 fn 并等待完成
func (a *Acceptor) runSync(fn func()) error {
	done := make(chan struct{})
	if err := a.loop.RunInLoop(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	<-done
	return nil
}

// ============================================================================
//                              查询
// ============================================================================

// Stats 连接统计
type Stats struct {
	Conns    int
	Idle     int
	Busy     int
	State    connmgr.ShutdownState
	Shedding bool
}

// Stats 返回当前统计，可在任意 goroutine 调用
func (a *Acceptor) Stats() (Stats, error) {
	var s Stats
	err := a.runSync(func() {
		s = Stats{
			Conns:    a.mgr.NumConnections(),
			Idle:     a.mgr.NumIdle(),
			Busy:     a.mgr.NumBusy(),
			State:    a.mgr.State(),
			Shedding: a.shedding,
		}
	})
	return s, err
}
