package connmgr

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-acceptor/tests/mocks"
)

// newBatchManager 创建指定排空批大小的管理器
func newBatchManager(t *testing.T, batch int) (*Manager, *mocks.MockEventLoop, *mocks.MockObserver) {
	t.Helper()

	loop := mocks.NewMockEventLoop()
	obs := &mocks.MockObserver{}
	cfg := DefaultConfig().WithIdleTimeout(time.Second).WithDrainBatchSize(batch)
	mgr, err := New(loop, cfg, obs)
	require.NoError(t, err)
	return mgr, loop, obs
}

// TestShutdownState_String 测试状态名
func TestShutdownState_String(t *testing.T) {
	assert.Equal(t, "none", ShutdownNone.String())
	assert.Equal(t, "notify-pending-shutdown", ShutdownNotifyPendingShutdown.String())
	assert.Equal(t, "notify-pending-shutdown-complete", ShutdownNotifyPendingShutdownComplete.String())
	assert.Equal(t, "close-when-idle", ShutdownCloseWhenIdle.String())
	assert.Equal(t, "close-when-idle-complete", ShutdownCloseWhenIdleComplete.String())
	assert.Equal(t, "unknown", ShutdownState(42).String())
}

// TestShutdown_BusyAndIdle 忙碌连接等待宽限期，空闲连接立即关闭
func TestShutdown_BusyAndIdle(t *testing.T) {
	mgr, loop, obs := newTestManager(t, 1000*time.Millisecond)
	a := mocks.NewMockManagedConnection("a")
	b := mocks.NewMockManagedConnection("b")
	mgr.AddConnection(a, true)
	mgr.AddConnection(b, true)
	b.Deactivate()

	mgr.InitiateGracefulShutdown(50 * time.Millisecond)
	assert.Equal(t, 1, a.PendingShutdownCalls)
	assert.Equal(t, 1, b.PendingShutdownCalls)
	assert.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())

	loop.RunPass()
	assert.Equal(t, ShutdownCloseWhenIdle, mgr.State())
	assert.True(t, b.Closed)
	assert.Equal(t, 0, b.DropCalls)
	assert.Equal(t, 1, a.CloseWhenIdleCalls)
	assert.False(t, a.Closed)
	assert.Equal(t, 1, mgr.NumConnections())

	loop.Advance(49 * time.Millisecond)
	assert.False(t, a.Closed)

	loop.Advance(time.Millisecond)
	assert.True(t, a.Closed)
	assert.Equal(t, 1, a.DropCalls)
	assert.Equal(t, 0, mgr.NumConnections())
	assert.Equal(t, 1, obs.EmptyCalls)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())

	t.Log("✅ 宽限期结束后强制关闭忙碌连接")
}

// TestShutdown_BusyFinishesWithinGrace 忙碌连接在宽限期内空闲后自行关闭
func TestShutdown_BusyFinishesWithinGrace(t *testing.T) {
	mgr, loop, _ := newTestManager(t, time.Second)
	a := mocks.NewMockManagedConnection("a")
	mgr.AddConnection(a, false)

	mgr.InitiateGracefulShutdown(time.Second)
	loop.RunPass()
	require.Equal(t, ShutdownCloseWhenIdle, mgr.State())

	a.Deactivate()
	assert.True(t, a.Closed)
	assert.Equal(t, 0, a.DropCalls)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
	assert.Equal(t, 0, loop.PendingTimers(), "宽限定时器已取消")
	assert.Equal(t, 0, loop.PendingPasses())
}

// TestShutdown_Idempotent 重复调用无额外效果
func TestShutdown_Idempotent(t *testing.T) {
	mgr, loop, _ := newTestManager(t, time.Second)
	conns := addConns(mgr, 3, false)

	mgr.InitiateGracefulShutdown(time.Second)
	mgr.InitiateGracefulShutdown(time.Millisecond)
	for _, c := range conns {
		assert.Equal(t, 1, c.PendingShutdownCalls)
	}
	assert.Equal(t, []time.Duration{time.Second}, loop.ScheduledTimer)

	loop.RunPass()
	mgr.InitiateGracefulShutdown(time.Second)
	for _, c := range conns {
		assert.Equal(t, 1, c.CloseWhenIdleCalls)
	}
}

// TestShutdown_Empty 没有连接时直接完成
func TestShutdown_Empty(t *testing.T) {
	mgr, loop, obs := newTestManager(t, time.Second)

	mgr.InitiateGracefulShutdown(time.Second)
	assert.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())

	loop.RunPass()
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
	assert.Equal(t, 0, loop.PendingTimers())
	assert.Equal(t, 0, obs.EmptyCalls, "本来就是空的")

	// 完成后不再接受关闭请求
	mgr.InitiateGracefulShutdown(time.Second)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
}

// TestShutdown_Batched 大量连接分多轮处理
func TestShutdown_Batched(t *testing.T) {
	mgr, loop, _ := newBatchManager(t, 4)
	conns := addConns(mgr, 10, false)

	notified := func() int {
		n := 0
		for _, c := range conns {
			n += c.PendingShutdownCalls
		}
		return n
	}
	asked := func() int {
		n := 0
		for _, c := range conns {
			n += c.CloseWhenIdleCalls
		}
		return n
	}

	mgr.InitiateGracefulShutdown(time.Minute)
	assert.Equal(t, 4, notified(), "第一批同步处理")
	assert.Equal(t, ShutdownNotifyPendingShutdown, mgr.State())

	loop.RunPass()
	assert.Equal(t, 8, notified())
	loop.RunPass()
	assert.Equal(t, 10, notified())
	assert.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())
	assert.Equal(t, 0, asked())

	loop.RunPass()
	assert.Equal(t, ShutdownCloseWhenIdle, mgr.State())
	assert.Equal(t, 4, asked())
	loop.RunPass()
	loop.RunPass()
	assert.Equal(t, 10, asked())
	assert.Equal(t, 0, loop.PendingPasses())

	for _, c := range conns {
		assert.Equal(t, 1, c.PendingShutdownCalls)
		assert.Equal(t, 1, c.CloseWhenIdleCalls)
	}
	assert.Equal(t, ShutdownCloseWhenIdle, mgr.State(), "忙碌连接仍在")

	for _, c := range conns {
		c.Deactivate()
	}
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
}

// TestShutdown_MutationsBetweenPasses 排空过程中移出、移动、新增连接
func TestShutdown_MutationsBetweenPasses(t *testing.T) {
	mgr, loop, _ := newBatchManager(t, 2)
	conns := addConns(mgr, 5, false)
	for _, c := range conns[:4] {
		c.Deactivate()
	}
	// 链表顺序: conn-4(忙) conn-0 conn-1 conn-2 conn-3
	mgr.InitiateGracefulShutdown(time.Minute)
	require.Equal(t, 1, conns[4].PendingShutdownCalls)
	require.Equal(t, 1, conns[0].PendingShutdownCalls)

	// 未处理的连接被移出
	mgr.RemoveConnection(conns[2])
	// 未处理的连接移到游标之前
	conns[3].Activate()
	// 新连接立即收到通知
	late := mocks.NewMockManagedConnection("late")
	mgr.AddConnection(late, false)
	assert.Equal(t, 1, late.PendingShutdownCalls)

	loop.RunUntilIdle(10)
	assert.Equal(t, ShutdownCloseWhenIdle, mgr.State())

	for _, c := range []*mocks.MockManagedConnection{conns[0], conns[1], conns[3], conns[4], late} {
		assert.Equal(t, 1, c.PendingShutdownCalls, c.ID())
	}
	assert.Equal(t, 0, conns[2].PendingShutdownCalls)

	// 空闲的 conn-0 conn-1 已关闭，忙碌的等待
	assert.True(t, conns[0].Closed)
	assert.True(t, conns[1].Closed)
	assert.False(t, conns[3].Closed)
	assert.False(t, conns[4].Closed)
	assert.False(t, late.Closed)
	assert.Equal(t, 1, late.CloseWhenIdleCalls)
	require.NoError(t, mgr.conns.verify())
}

// TestShutdown_LateConnectionInCloseWhenIdle 空闲关闭阶段新增的连接
func TestShutdown_LateConnectionInCloseWhenIdle(t *testing.T) {
	mgr, loop, _ := newTestManager(t, time.Second)
	keep := mocks.NewMockManagedConnection("keep")
	mgr.AddConnection(keep, false)
	mgr.InitiateGracefulShutdown(100 * time.Millisecond)
	loop.RunPass()
	require.Equal(t, ShutdownCloseWhenIdle, mgr.State())

	busy := mocks.NewMockManagedConnection("busy")
	mgr.AddConnection(busy, true)
	assert.Equal(t, 1, busy.CloseWhenIdleCalls)
	assert.False(t, busy.Closed)

	// 不会自行关闭的空闲连接由管理器关闭
	stubborn := mocks.NewMockManagedConnection("stubborn")
	stubborn.Busy = false
	stubborn.CloseWhenIdleFunc = func() {}
	mgr.AddConnection(stubborn, true)
	assert.True(t, stubborn.Closed)
	assert.Equal(t, 1, stubborn.DropCalls)

	loop.Advance(100 * time.Millisecond)
	assert.True(t, busy.Closed)
	assert.True(t, keep.Closed)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
}

// TestShutdown_LateConnectionWhileForcing 强制关闭过程中新增的连接直接关闭
func TestShutdown_LateConnectionWhileForcing(t *testing.T) {
	mgr, loop, _ := newBatchManager(t, 1)
	conns := addConns(mgr, 3, false)

	mgr.InitiateGracefulShutdown(10 * time.Millisecond)
	loop.RunUntilIdle(10)
	require.Equal(t, ShutdownCloseWhenIdle, mgr.State())

	loop.Advance(10 * time.Millisecond)
	require.Equal(t, 2, mgr.NumConnections(), "每轮只关闭一个")

	late := mocks.NewMockManagedConnection("late")
	mgr.AddConnection(late, true)
	assert.True(t, late.Closed)
	assert.Equal(t, 1, late.DropCalls)
	assert.Equal(t, 0, late.CloseWhenIdleCalls)

	loop.RunUntilIdle(10)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
	for _, c := range conns {
		assert.Equal(t, 1, c.DropCalls)
	}
}

// TestShutdown_StubbornIdleDroppedDuringDrain 空闲连接忽略 CloseWhenIdle 时被强制关闭
func TestShutdown_StubbornIdleDroppedDuringDrain(t *testing.T) {
	mgr, loop, _ := newTestManager(t, time.Second)
	c := mocks.NewMockManagedConnection("c")
	c.CloseWhenIdleFunc = func() {}
	mgr.AddConnection(c, false)
	c.Deactivate()

	mgr.InitiateGracefulShutdown(time.Minute)
	loop.RunPass()

	assert.Equal(t, 1, c.CloseWhenIdleCalls)
	assert.Equal(t, 1, c.DropCalls)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
}

// TestShutdown_GraceExpiresBeforeCloseWhenIdle 宽限期为 0 时跳过等待
func TestShutdown_GraceExpiresBeforeCloseWhenIdle(t *testing.T) {
	mgr, loop, obs := newBatchManager(t, 2)
	conns := addConns(mgr, 5, false)

	mgr.InitiateGracefulShutdown(0)
	loop.RunPass()
	loop.RunPass()
	require.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())

	loop.Advance(0)
	assert.Equal(t, ShutdownCloseWhenIdle, mgr.State())
	assert.Equal(t, 3, mgr.NumConnections(), "强制关闭也分批")

	loop.RunUntilIdle(10)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
	assert.Equal(t, 0, mgr.NumConnections())
	assert.Equal(t, 1, obs.EmptyCalls)
	for _, c := range conns {
		assert.Equal(t, 1, c.DropCalls)
		assert.Equal(t, 0, c.CloseWhenIdleCalls)
	}
}

// TestShutdown_DropAllDuringShutdown 关闭过程中立即关闭所有连接
func TestShutdown_DropAllDuringShutdown(t *testing.T) {
	mgr, loop, obs := newBatchManager(t, 2)
	conns := addConns(mgr, 6, false)

	mgr.InitiateGracefulShutdown(time.Second)
	mgr.DropAllConnections()

	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
	assert.Equal(t, 0, mgr.NumConnections())
	assert.Equal(t, 1, obs.EmptyCalls)
	assert.Equal(t, 0, loop.PendingPasses())
	assert.Equal(t, 0, loop.PendingTimers())

	for _, c := range conns {
		assert.Equal(t, 1, c.DropCalls)
	}
}

// TestShutdown_CloseCancelsPendingWork 销毁时取消未完成的排空和宽限定时器
func TestShutdown_CloseCancelsPendingWork(t *testing.T) {
	mgr, loop, _ := newBatchManager(t, 2)
	conns := addConns(mgr, 6, false)

	mgr.InitiateGracefulShutdown(10 * time.Millisecond)
	require.NoError(t, mgr.Close())

	loop.RunUntilIdle(10)
	loop.Advance(time.Second)

	notified := 0
	for _, c := range conns {
		notified += c.PendingShutdownCalls
		assert.False(t, c.Closed)
		assert.Equal(t, 0, c.CloseWhenIdleCalls)
	}
	assert.Equal(t, 2, notified, "只有第一批收到预告")
}

// TestShutdown_Large 大量连接时每轮处理量受限
func TestShutdown_Large(t *testing.T) {
	mgr, loop, obs := newTestManager(t, time.Second)
	const total = 1000
	conns := make([]*mocks.MockManagedConnection, total)
	for i := range conns {
		conns[i] = mocks.NewMockManagedConnection(fmt.Sprintf("c%d", i))
		mgr.AddConnection(conns[i], true)
		if i%2 == 0 {
			conns[i].Deactivate()
		}
	}

	mgr.InitiateGracefulShutdown(time.Second)
	passes := loop.RunUntilIdle(100)
	// 预告 16 轮（含同步的第一批）+ 空闲关闭 16 轮
	assert.Equal(t, 31, passes)
	assert.Equal(t, total/2, mgr.NumConnections())

	loop.Advance(time.Second)
	loop.RunUntilIdle(100)
	assert.Equal(t, 0, mgr.NumConnections())
	assert.Equal(t, 1, obs.EmptyCalls)
	assert.Equal(t, ShutdownCloseWhenIdleComplete, mgr.State())
}

// TestShutdown_MovedNodeKeepsPassBounded 未处理的连接移到游标之前时，每轮仍只走一批
func TestShutdown_MovedNodeKeepsPassBounded(t *testing.T) {
	const batch = 8
	mgr, loop, _ := newBatchManager(t, batch)
	conns := addConns(mgr, 58, false)
	idle := conns[48:]
	for _, c := range idle {
		c.Deactivate()
	}
	// 链表顺序: conn-47 ... conn-0(忙) conn-48 ... conn-57(闲)
	notified := func() int {
		n := 0
		for _, c := range conns {
			n += c.PendingShutdownCalls
		}
		return n
	}

	mgr.InitiateGracefulShutdown(time.Minute)
	for i := 0; i < 5; i++ {
		loop.RunPass()
	}
	require.Equal(t, 48, notified())
	require.Same(t, mgr.nodes[idle[0]], mgr.shutdown.cursor.node, "游标停在第一个空闲连接")

	// 未处理的空闲连接变忙，移到游标之前
	idle[5].Activate()
	// 已处理的忙碌连接变闲，移到游标之后
	conns[0].Deactivate()
	require.NoError(t, mgr.conns.verify())

	loop.RunPass()
	assert.Equal(t, batch, mgr.shutdown.steps, "一轮只走一批")
	assert.Equal(t, 56, notified())
	assert.Equal(t, 1, idle[5].PendingShutdownCalls, "移动过的连接优先补发")

	loop.RunPass()
	assert.LessOrEqual(t, mgr.shutdown.steps, batch)
	assert.Equal(t, 58, notified())
	assert.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())

	for _, c := range conns {
		assert.Equal(t, 1, c.PendingShutdownCalls, c.ID())
	}

	t.Log("✅ 排空每轮工作量受批大小限制")
}

// TestShutdown_ActivatedDuringCloseWhenIdle 空闲关闭阶段中变忙的连接只收到一次通知
func TestShutdown_ActivatedDuringCloseWhenIdle(t *testing.T) {
	mgr, loop, _ := newBatchManager(t, 2)
	conns := addConns(mgr, 6, false)
	for _, c := range conns[:4] {
		c.Deactivate()
	}
	// 链表顺序: conn-5 conn-4(忙) conn-0 conn-1 conn-2 conn-3(闲)
	mgr.InitiateGracefulShutdown(time.Minute)
	loop.RunPass()
	loop.RunPass()
	require.Equal(t, ShutdownNotifyPendingShutdownComplete, mgr.State())

	loop.RunPass()
	require.Equal(t, ShutdownCloseWhenIdle, mgr.State())
	require.Equal(t, 1, conns[5].CloseWhenIdleCalls)
	require.Equal(t, 1, conns[4].CloseWhenIdleCalls)

	// conn-2 尚未处理时收到请求
	conns[2].Activate()

	loop.RunPass()
	assert.Equal(t, 2, mgr.shutdown.steps)
	assert.Equal(t, 1, conns[2].CloseWhenIdleCalls)
	assert.False(t, conns[2].Closed, "忙碌时不关闭")
	assert.True(t, conns[0].Closed)

	loop.RunPass()
	assert.True(t, conns[1].Closed)
	assert.True(t, conns[3].Closed)
	assert.Equal(t, 0, loop.PendingPasses())

	conns[2].Deactivate()
	assert.True(t, conns[2].Closed)
	assert.Equal(t, 0, conns[2].DropCalls)

	for _, c := range conns {
		assert.Equal(t, 1, c.CloseWhenIdleCalls, c.ID())
	}
	assert.Equal(t, 2, mgr.NumConnections())
	require.NoError(t, mgr.conns.verify())
}

// stateRecorder 记录关闭状态变化的观察者
type stateRecorder struct {
	mocks.MockObserver
	states []ShutdownState
}

func (r *stateRecorder) OnShutdownStateChanged(state ShutdownState) {
	r.states = append(r.states, state)
}

// TestShutdown_StateObserver 观察者实现 StateObserver 时收到每次状态变化
func TestShutdown_StateObserver(t *testing.T) {
	loop := mocks.NewMockEventLoop()
	rec := &stateRecorder{}
	mgr, err := New(loop, DefaultConfig().WithIdleTimeout(time.Second), rec)
	require.NoError(t, err)

	busy := mocks.NewMockManagedConnection("busy")
	mgr.AddConnection(busy, false)

	mgr.InitiateGracefulShutdown(10 * time.Millisecond)
	loop.RunPass()
	loop.Advance(10 * time.Millisecond)

	assert.Equal(t, []ShutdownState{
		ShutdownNotifyPendingShutdown,
		ShutdownNotifyPendingShutdownComplete,
		ShutdownCloseWhenIdle,
		ShutdownCloseWhenIdleComplete,
	}, rec.states)
	assert.Equal(t, 1, busy.DropCalls)
	assert.Equal(t, 1, rec.EmptyCalls)
}
