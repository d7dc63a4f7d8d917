package mocks

import (
	"sort"
	"time"

	"github.com/dep2p/go-acceptor/pkg/interfaces"
)

// MockEventLoop 手动驱动的事件循环
//
// 不启动 goroutine：测试通过 RunPass 执行一轮回调，通过 Advance 推进时间
// 并按到期顺序触发定时器，所有回调都在调用测试的 goroutine 内执行。
type MockEventLoop struct {
	NowValue time.Time

	nextPass []*MockLoopTask
	timers   []*MockLoopTask
	seq      uint64

	// RunInLoopErr 非 nil 时 RunInLoop 返回该错误（模拟循环已停止）
	RunInLoopErr error

	// 调用记录
	Passes         int
	TimersFired    int
	ScheduledTimer []time.Duration
}

var _ interfaces.EventLoop = (*MockEventLoop)(nil)

// NewMockEventLoop 创建带有固定起始时间的 MockEventLoop
func NewMockEventLoop() *MockEventLoop {
	return &MockEventLoop{
		NowValue: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MockLoopTask 模拟循环回调句柄
type MockLoopTask struct {
	fn       func()
	deadline time.Time
	seq      uint64
	pending  bool
}

// Cancel 取消回调
func (t *MockLoopTask) Cancel() bool {
	if !t.pending {
		return false
	}
	t.pending = false
	return true
}

// Pending 回调是否等待执行
func (t *MockLoopTask) Pending() bool {
	return t.pending
}

// Now 返回模拟时间
func (m *MockEventLoop) Now() time.Time {
	return m.NowValue
}

// RunInLoop 提交任务，在下一次 RunPass 时执行
func (m *MockEventLoop) RunInLoop(fn func()) error {
	if m.RunInLoopErr != nil {
		return m.RunInLoopErr
	}
	m.RunInNextPass(fn)
	return nil
}

// RunInNextPass 注册下一轮回调
func (m *MockEventLoop) RunInNextPass(fn func()) interfaces.LoopTask {
	m.seq++
	t := &MockLoopTask{fn: fn, seq: m.seq, pending: true}
	m.nextPass = append(m.nextPass, t)
	return t
}

// ScheduleTimer 注册一次性定时器
func (m *MockEventLoop) ScheduleTimer(d time.Duration, fn func()) interfaces.LoopTask {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &MockLoopTask{fn: fn, deadline: m.NowValue.Add(d), seq: m.seq, pending: true}
	m.timers = append(m.timers, t)
	m.ScheduledTimer = append(m.ScheduledTimer, d)
	return t
}

// RunPass 执行一轮回调，返回实际执行的数量
func (m *MockEventLoop) RunPass() int {
	tasks := m.nextPass
	m.nextPass = nil
	m.Passes++

	ran := 0
	for _, t := range tasks {
		if !t.pending {
			continue
		}
		t.pending = false
		t.fn()
		ran++
	}
	return ran
}

// RunUntilIdle 反复执行直到没有待执行回调（最多 maxPasses 轮），返回执行轮数
func (m *MockEventLoop) RunUntilIdle(maxPasses int) int {
	passes := 0
	for passes < maxPasses && m.PendingPasses() > 0 {
		m.RunPass()
		passes++
	}
	return passes
}

// PendingPasses 返回等待下一轮执行的回调数
func (m *MockEventLoop) PendingPasses() int {
	n := 0
	for _, t := range m.nextPass {
		if t.pending {
			n++
		}
	}
	return n
}

// PendingTimers 返回未触发的定时器数
func (m *MockEventLoop) PendingTimers() int {
	n := 0
	for _, t := range m.timers {
		if t.pending {
			n++
		}
	}
	return n
}

// Advance 推进时间 d，按到期顺序触发期间到期的定时器
//
// 触发每个定时器前把当前时间设置为它的到期时间；回调中新注册且在
// 目标时间内到期的定时器也会被触发。
func (m *MockEventLoop) Advance(d time.Duration) {
	target := m.NowValue.Add(d)
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		if t.deadline.After(m.NowValue) {
			m.NowValue = t.deadline
		}
		t.pending = false
		m.TimersFired++
		t.fn()
	}
	m.NowValue = target
}

func (m *MockEventLoop) nextDue(target time.Time) *MockLoopTask {
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.pending {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		a, b := m.timers[i], m.timers[j]
		if !a.deadline.Equal(b.deadline) {
			return a.deadline.Before(b.deadline)
		}
		return a.seq < b.seq
	})
	if len(m.timers) == 0 || m.timers[0].deadline.After(target) {
		return nil
	}
	return m.timers[0]
}
