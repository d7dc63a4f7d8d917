package listener

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// ============================================================================
//                              Conn 实现
// ============================================================================

// Conn 被连接管理器跟踪的行协议连接
//
// 读写在独立的 goroutine 中进行，状态变化通过 RunInLoop 投递到事件循环；
// 除 ID、RemoteAddr 和 Draining 外，字段只在循环线程内访问。
type Conn struct {
	id    string
	nc    net.Conn
	owner *Acceptor

	ctx    context.Context
	cancel context.CancelFunc

	// 以下字段只在循环线程内访问
	mgr           pkgif.ConnManager
	busy          bool
	closeWhenIdle bool
	closed        bool

	draining atomic.Bool
}

var _ pkgif.ManagedConnection = (*Conn)(nil)

func newConn(owner *Acceptor, nc net.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:     uuid.NewString(),
		nc:     nc,
		owner:  owner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID 返回连接标识
func (c *Conn) ID() string { return c.id }

// RemoteAddr 返回对端地址
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Draining 是否已收到关闭预告（可在任意 goroutine 调用）
func (c *Conn) Draining() bool { return c.draining.Load() }

// IsBusy 是否正在处理请求
func (c *Conn) IsBusy() bool { return c.busy }

// NotifyPendingShutdown 记录关闭预告，当前请求照常完成
func (c *Conn) NotifyPendingShutdown() {
	if c.draining.CompareAndSwap(false, true) {
		logger.Debug("连接收到关闭预告", "conn", c.id)
	}
}

// CloseWhenIdle 空闲时立即关闭，忙碌时在当前请求结束后关闭
func (c *Conn) CloseWhenIdle() {
	c.closeWhenIdle = true
	if !c.busy {
		c.close("close-when-idle")
	}
}

// DropConnection 立即关闭连接
func (c *Conn) DropConnection() {
	c.close("dropped")
}

// TimeoutExpired 空闲超时到期
func (c *Conn) TimeoutExpired() {
	if c.closed || c.busy {
		return
	}
	c.owner.metrics.ObserveIdleTimeout()
	c.close("idle-timeout")
}

// ConnectionManager 返回登记该连接的管理器
func (c *Conn) ConnectionManager() pkgif.ConnManager { return c.mgr }

// SetConnectionManager 由管理器设置
func (c *Conn) SetConnectionManager(mgr pkgif.ConnManager) { c.mgr = mgr }

// ============================================================================
//                              循环线程内的状态变化
// ============================================================================

// activate 收到请求，连接变为忙碌
//
// 先取消旧的空闲超时，请求结束后由 OnDeactivated 重新计时。
func (c *Conn) activate() {
	if c.closed || c.busy {
		return
	}
	c.busy = true
	if c.mgr != nil {
		c.mgr.CancelTimeout(c)
		c.mgr.OnActivated(c)
	}
}

// deactivate 响应已写回，连接变为空闲
func (c *Conn) deactivate() {
	if c.closed {
		return
	}
	c.busy = false
	if c.mgr != nil {
		c.mgr.OnDeactivated(c)
	}
	if c.closeWhenIdle {
		c.close("close-when-idle")
	}
}

// close 关闭底层连接并从管理器移出
func (c *Conn) close(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.busy = false
	c.cancel()
	_ = c.nc.Close()

	if c.mgr != nil {
		c.mgr.RemoveConnection(c)
	}
	logger.Debug("连接已关闭", "conn", c.id, "reason", reason)
}

// post 把状态变化投递到事件循环，循环已停止时直接关闭底层连接
func (c *Conn) post(fn func()) bool {
	if err := c.owner.loop.RunInLoop(fn); err != nil {
		c.cancel()
		_ = c.nc.Close()
		return false
	}
	return true
}

// ============================================================================
//                              读写 goroutine
// ============================================================================

// serve 逐行读取请求并写回响应
func (c *Conn) serve() {
	defer c.owner.wg.Done()

	r := bufio.NewReaderSize(c.nc, c.owner.cfg.lineLimit())
	for {
		req, err := readLine(r)
		if err != nil {
			if errors.Is(err, ErrLineTooLong) {
				logger.Debug("请求行过长", "conn", c.id)
			}
			c.post(func() { c.close("read") })
			return
		}

		if !c.post(c.activate) {
			return
		}

		resp, err := c.owner.handler.Serve(c.ctx, req)
		if err == nil {
			_, err = c.nc.Write(append(resp, '\n'))
		}
		if err != nil {
			c.post(func() { c.close("serve") })
			return
		}

		if !c.post(c.deactivate) {
			return
		}
	}
}

// readLine 读取一行并去掉行尾的 \r\n，返回的切片归调用方所有
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrLineTooLong
		}
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	return bytes.Clone(line), nil
}
