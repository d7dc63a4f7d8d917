package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startLoop 启动循环并在测试结束时停止
func startLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l := New(opts...)
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Stop()
		<-l.Done()
	})
	return l
}

// inLoop 在循环线程内同步执行 fn
func inLoop(t *testing.T, l *Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.RunInLoop(func() {
		fn()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("循环任务未执行")
	}
}

// recorder 并发安全的执行记录
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

// TestLoop_RunInLoop 测试外部提交按顺序执行
func TestLoop_RunInLoop(t *testing.T) {
	l := startLoop(t)
	rec := &recorder{}

	for _, s := range []string{"a", "b", "c"} {
		s := s
		require.NoError(t, l.RunInLoop(func() { rec.add(s) }))
	}

	require.Eventually(t, func() bool {
		return len(rec.get()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, rec.get())
}

// TestLoop_RunInNextPass 测试下一轮回调不会在本轮执行
func TestLoop_RunInNextPass(t *testing.T) {
	l := startLoop(t)
	rec := &recorder{}

	inLoop(t, l, func() {
		rec.add("a")
		l.RunInNextPass(func() {
			rec.add("c")
			l.RunInNextPass(func() { rec.add("d") })
		})
		_ = l.RunInLoop(func() { rec.add("b") })
	})

	require.Eventually(t, func() bool {
		return len(rec.get()) == 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.get())
}

// TestLoop_CancelNextPass 测试取消下一轮回调
func TestLoop_CancelNextPass(t *testing.T) {
	l := startLoop(t)
	rec := &recorder{}

	inLoop(t, l, func() {
		task := l.RunInNextPass(func() { rec.add("cancelled") })
		assert.True(t, task.Pending())
		assert.True(t, task.Cancel())
		assert.False(t, task.Cancel(), "重复取消应返回 false")
		l.RunInNextPass(func() { rec.add("kept") })
	})

	require.Eventually(t, func() bool {
		return len(rec.get()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"kept"}, rec.get())
}

// TestLoop_ScheduleTimer 测试定时器基于注入的时间源触发
func TestLoop_ScheduleTimer(t *testing.T) {
	mock := clock.NewMock()
	l := startLoop(t, WithClock(mock))
	rec := &recorder{}

	inLoop(t, l, func() {
		l.ScheduleTimer(100*time.Millisecond, func() { rec.add("fired") })
	})

	mock.Add(50 * time.Millisecond)
	inLoop(t, l, func() {})
	assert.Empty(t, rec.get(), "未到期不应触发")

	mock.Add(50 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(rec.get()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

// TestLoop_CancelTimer 测试取消定时器
func TestLoop_CancelTimer(t *testing.T) {
	mock := clock.NewMock()
	l := startLoop(t, WithClock(mock))
	rec := &recorder{}

	var cancelled bool
	inLoop(t, l, func() {
		task := l.ScheduleTimer(10*time.Millisecond, func() { rec.add("fired") })
		cancelled = task.Cancel()
	})
	require.True(t, cancelled)

	mock.Add(20 * time.Millisecond)
	assert.Never(t, func() bool {
		return len(rec.get()) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
}

// TestLoop_Now 测试 Now 使用注入的时间源
func TestLoop_Now(t *testing.T) {
	mock := clock.NewMock()
	l := New(WithClock(mock))

	start := l.Now()
	mock.Add(time.Minute)
	assert.Equal(t, time.Minute, l.Now().Sub(start))
}

// TestLoop_Stop 测试停止后拒绝新任务
func TestLoop_Stop(t *testing.T) {
	l := New()
	go func() { _ = l.Run(context.Background()) }()

	inLoop(t, l, func() {})
	l.Stop()
	<-l.Done()

	assert.ErrorIs(t, l.RunInLoop(func() {}), ErrLoopClosed)
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopClosed)
}

// TestLoop_StopBeforeRun 测试未启动即停止
func TestLoop_StopBeforeRun(t *testing.T) {
	l := New()
	l.Stop()

	select {
	case <-l.Done():
	default:
		t.Fatal("未启动的循环停止后 Done 应已关闭")
	}
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopClosed)
}

// TestLoop_ContextCancel 测试 ctx 取消后循环退出
func TestLoop_ContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	inLoop(t, l, func() {})

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("循环未退出")
	}
}
