package timerwheel

import (
	"time"

	"github.com/dep2p/go-acceptor/pkg/lib/log"
	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

var logger = log.Logger("core/timerwheel")

// detached 已从槽摘下、等待本轮触发的条目
const detached = -1

const (
	// DefaultTickInterval 默认 tick 精度
	DefaultTickInterval = 10 * time.Millisecond

	// DefaultSlots 默认槽数量
	DefaultSlots = 256
)

// entry 时间轮条目，挂在所属槽的双向链表上
type entry struct {
	cb       pkgif.TimeoutCallback
	deadline time.Time
	// slot 所在槽；detached 表示已摘下等待触发
	slot     int
	prev     *entry
	next     *entry
}

// bucket 单个槽
type bucket struct {
	head *entry
	tail *entry
}

func (b *bucket) push(e *entry) {
	e.prev = b.tail
	e.next = nil
	if b.tail != nil {
		b.tail.next = e
	} else {
		b.head = e
	}
	b.tail = e
}

func (b *bucket) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		b.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// take 摘下整条链表
func (b *bucket) take() *entry {
	head := b.head
	b.head = nil
	b.tail = nil
	return head
}

// Wheel 哈希时间轮
type Wheel struct {
	loop     pkgif.EventLoop
	interval time.Duration
	buckets  []bucket

	// entries 以回调值为键，回调必须可比较
	entries map[pkgif.TimeoutCallback]*entry

	// cursor 最近一次处理的槽；lastTick 与 cursor 对应的时间点
	cursor   int
	lastTick time.Time

	tickTask pkgif.LoopTask
	expiring bool
}

// Option 时间轮选项
type Option func(*Wheel)

// WithTickInterval 设置 tick 精度
func WithTickInterval(d time.Duration) Option {
	return func(w *Wheel) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithSlots 设置槽数量
func WithSlots(n int) Option {
	return func(w *Wheel) {
		if n > 0 {
			w.buckets = make([]bucket, n)
		}
	}
}

// New 创建绑定到 loop 的时间轮
func New(loop pkgif.EventLoop, opts ...Option) *Wheel {
	w := &Wheel{
		loop:     loop,
		interval: DefaultTickInterval,
		buckets:  make([]bucket, DefaultSlots),
		entries:  make(map[pkgif.TimeoutCallback]*entry),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.lastTick = loop.Now()
	return w
}

// TickInterval 返回 tick 精度
func (w *Wheel) TickInterval() time.Duration {
	return w.interval
}

// Count 返回待触发条目数量
func (w *Wheel) Count() int {
	return len(w.entries)
}

// IsScheduled 回调是否有待触发登记
func (w *Wheel) IsScheduled(cb pkgif.TimeoutCallback) bool {
	_, ok := w.entries[cb]
	return ok
}

// Schedule 登记 cb 在 d 之后触发，替换已有登记
//
// cb 必须可比较；相等的回调值共用一个登记。
func (w *Wheel) Schedule(cb pkgif.TimeoutCallback, d time.Duration) {
	if d < 0 {
		d = 0
	}
	w.Cancel(cb)

	now := w.loop.Now()
	if len(w.entries) == 0 && !w.expiring {
		// 空闲后重新对齐，避免把空闲期间当成积压的 tick
		w.lastTick = now
	}

	e := &entry{cb: cb, deadline: now.Add(d)}
	w.entries[cb] = e
	w.place(e)
	w.ensureTicking()
}

// Cancel 取消回调的登记，返回是否存在登记
func (w *Wheel) Cancel(cb pkgif.TimeoutCallback) bool {
	e, ok := w.entries[cb]
	if !ok {
		return false
	}
	delete(w.entries, cb)
	if e.slot != detached {
		w.buckets[e.slot].remove(e)
	}
	if len(w.entries) == 0 {
		w.stopTicking()
	}
	return true
}

// CancelAll 取消所有登记（不调用回调），返回取消数量
func (w *Wheel) CancelAll() int {
	n := len(w.entries)
	for i := range w.buckets {
		w.buckets[i].take()
	}
	w.entries = make(map[pkgif.TimeoutCallback]*entry)
	w.stopTicking()
	return n
}

// place 按到期时间把条目放入槽
//
// 至少放到 cursor 之后一个槽，保证本轮 tick 不会再次扫描到它。
func (w *Wheel) place(e *entry) {
	ticks := int64(0)
	if delta := e.deadline.Sub(w.lastTick); delta > 0 {
		ticks = int64((delta + w.interval - 1) / w.interval)
	}
	if ticks < 1 {
		ticks = 1
	}
	n := int64(len(w.buckets))
	if ticks > n {
		// 超过一圈：放到最远的槽，到达时重新放置
		ticks = n
	}
	e.slot = int((int64(w.cursor) + ticks) % n)
	w.buckets[e.slot].push(e)
}

func (w *Wheel) ensureTicking() {
	if w.expiring || len(w.entries) == 0 {
		return
	}
	if w.tickTask != nil && w.tickTask.Pending() {
		return
	}
	delay := w.lastTick.Add(w.interval).Sub(w.loop.Now())
	if delay < 0 {
		delay = 0
	}
	w.tickTask = w.loop.ScheduleTimer(delay, w.tick)
}

func (w *Wheel) stopTicking() {
	if w.tickTask != nil {
		w.tickTask.Cancel()
		w.tickTask = nil
	}
}

// tick 推进 cursor 到当前时间，触发到期条目
func (w *Wheel) tick() {
	w.tickTask = nil
	now := w.loop.Now()

	var due []*entry
	w.expiring = true
	n := len(w.buckets)
	for steps := 0; !w.lastTick.Add(w.interval).After(now); steps++ {
		if steps >= n {
			// 已经扫过整圈，剩余积压直接对齐到当前时间
			w.lastTick = now
			break
		}
		w.cursor = (w.cursor + 1) % n
		w.lastTick = w.lastTick.Add(w.interval)

		for e := w.buckets[w.cursor].take(); e != nil; {
			next := e.next
			e.prev, e.next = nil, nil
			if e.deadline.After(now) {
				w.place(e)
			} else {
				e.slot = detached
				due = append(due, e)
			}
			e = next
		}
	}
	w.expiring = false

	if len(due) > 0 {
		logger.Debug("时间轮触发超时", "count", len(due), "remaining", len(w.entries))
	}
	for _, e := range due {
		// 前面的回调可能已取消或重新调度了它
		if w.entries[e.cb] != e {
			continue
		}
		delete(w.entries, e.cb)
		e.cb.TimeoutExpired()
	}
	w.ensureTicking()
}
