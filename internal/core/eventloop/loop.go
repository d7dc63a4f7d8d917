package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-acceptor/pkg/lib/log"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

var logger = log.Logger("core/eventloop")

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Loop 单 goroutine 事件循环
type Loop struct {
	clock clock.Clock

	mu      sync.Mutex
	ingress []func()
	next    []*task

	state    atomic.Int32
	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// passes 已执行的轮数（仅用于诊断）
	passes atomic.Uint64
}

var _ pkgif.EventLoop = (*Loop)(nil)

// Option 循环选项
type Option func(*Loop)

// WithClock 注入时间源（测试中使用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// New 创建事件循环，调用 Run 后开始执行
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  clock.New(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now 返回循环时间源的当前时间
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Run 在当前 goroutine 运行循环，直到 Stop 或 ctx 取消
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		if l.state.Load() == stateStopped {
			return ErrLoopClosed
		}
		return ErrLoopRunning
	}
	defer close(l.done)
	defer l.shutdown()

	logger.Debug("事件循环启动")
	for {
		l.pass()

		if l.hasWork() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.stopCh:
				return nil
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case <-l.wake:
		}
	}
}

// Stop 停止循环；已提交但尚未执行的 RunInLoop 任务会在退出前执行
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	if l.state.CompareAndSwap(stateIdle, stateStopped) {
		close(l.done)
	}
}

// Done 循环退出后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Passes 返回已执行的轮数
func (l *Loop) Passes() uint64 {
	return l.passes.Load()
}

// RunInLoop 提交任务到循环线程执行（线程安全）
func (l *Loop) RunInLoop(fn func()) error {
	l.mu.Lock()
	if l.state.Load() == stateStopped {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.ingress = append(l.ingress, fn)
	l.mu.Unlock()

	l.notify()
	return nil
}

// RunInNextPass 注册下一轮执行的回调（仅循环线程）
func (l *Loop) RunInNextPass(fn func()) pkgif.LoopTask {
	t := &task{fn: fn, pending: true}

	l.mu.Lock()
	l.next = append(l.next, t)
	l.mu.Unlock()

	l.notify()
	return t
}

// ScheduleTimer 注册一次性定时器（仅循环线程）
//
// 时间源的定时器在独立 goroutine 触发，触发后把回调投递回循环线程，
// 取消与执行都发生在循环线程内。
func (l *Loop) ScheduleTimer(d time.Duration, fn func()) pkgif.LoopTask {
	t := &task{fn: fn, pending: true}
	t.timer = l.clock.AfterFunc(d, func() {
		err := l.RunInLoop(func() {
			if !t.pending {
				return
			}
			t.pending = false
			fn()
		})
		if err != nil {
			logger.Debug("定时器触发时循环已停止", "delay", d)
		}
	})
	return t
}

// pass 执行一轮：先处理外部提交，再处理上一轮注册的回调
func (l *Loop) pass() {
	l.mu.Lock()
	ingress := l.ingress
	l.ingress = nil
	next := l.next
	l.next = nil
	l.mu.Unlock()

	for _, fn := range ingress {
		fn()
	}
	for _, t := range next {
		if !t.pending {
			continue
		}
		t.pending = false
		t.fn()
	}
	l.passes.Add(1)
}

func (l *Loop) hasWork() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ingress) > 0 || len(l.next) > 0
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// shutdown 标记停止并执行剩余的外部提交
func (l *Loop) shutdown() {
	l.mu.Lock()
	l.state.Store(stateStopped)
	ingress := l.ingress
	l.ingress = nil
	l.next = nil
	l.mu.Unlock()

	for _, fn := range ingress {
		fn()
	}
	logger.Debug("事件循环退出", "passes", l.passes.Load())
}

// task 循环回调句柄
//
// pending 只在循环线程内读写。
type task struct {
	fn      func()
	pending bool
	timer   *clock.Timer
}

// Cancel 取消尚未执行的回调
func (t *task) Cancel() bool {
	if !t.pending {
		return false
	}
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Pending 回调是否仍在等待执行
func (t *task) Pending() bool {
	return t.pending
}
