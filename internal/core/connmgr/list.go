package connmgr

import (
	"fmt"

	pkgif "github.com/dep2p/go-acceptor/pkg/interfaces"
)

// connNode 链表节点，由 Manager 持有，连接本身只保存管理器的反向引用
type connNode struct {
	conn pkgif.ManagedConnection
	prev *connNode
	next *connNode

	// idle 节点位于空闲区
	idle bool

	// drainEpoch 最近一次被排空流程处理时的阶段编号
	drainEpoch uint64
	// requeueEpoch 最近一次进入补处理队列时的阶段编号
	requeueEpoch uint64
}

// listCursor 链表游标，node 为 nil 表示到达末尾
//
// 游标登记在链表上，指向的节点被摘除时自动前移到下一个节点。
type listCursor struct {
	node *connNode
}

// connList 计数双向链表，按边界分为两区
//
//	head ──► [busy ... busy] [idle ... idle] ◄── tail
//	                          ▲
//	                        idleStart
//
// 忙碌区在前，新连接从 head 插入；空闲区在后，按进入空闲的先后排列：
// idleStart 处空闲最久，tail 处刚刚变为空闲。
type connList struct {
	head *connNode
	tail *connNode
	size int

	idleStart *connNode
	numIdle   int

	cursors []*listCursor
}

// Len 返回节点总数
func (l *connList) Len() int {
	return l.size
}

// pushBusy 在 head 插入忙碌节点
func (l *connList) pushBusy(n *connNode) {
	n.idle = false
	l.insertBefore(n, l.head)
}

// insertBusyAtBoundary 把节点插入忙碌区靠近边界的一端
func (l *connList) insertBusyAtBoundary(n *connNode) {
	n.idle = false
	l.insertBefore(n, l.idleStart)
}

// pushIdle 在 tail 追加空闲节点
func (l *connList) pushIdle(n *connNode) {
	n.idle = true
	l.insertBefore(n, nil)
	l.numIdle++
	if l.idleStart == nil {
		l.idleStart = n
	}
}

// insertBefore 把 n 插入 at 之前，at 为 nil 时追加到末尾
func (l *connList) insertBefore(n, at *connNode) {
	if at == nil {
		n.prev = l.tail
		n.next = nil
		if l.tail != nil {
			l.tail.next = n
		} else {
			l.head = n
		}
		l.tail = n
	} else {
		n.prev = at.prev
		n.next = at
		if at.prev != nil {
			at.prev.next = n
		} else {
			l.head = n
		}
		at.prev = n
	}
	l.size++
}

// unlink 摘除节点，维护边界与所有游标
func (l *connList) unlink(n *connNode) {
	for _, c := range l.cursors {
		if c.node == n {
			c.node = n.next
		}
	}
	if l.idleStart == n {
		l.idleStart = n.next
	}
	if n.idle {
		l.numIdle--
	}

	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	l.size--
}

// newCursor 登记一个从 start 开始的游标
func (l *connList) newCursor(start *connNode) *listCursor {
	c := &listCursor{node: start}
	l.cursors = append(l.cursors, c)
	return c
}

// releaseCursor 注销游标
func (l *connList) releaseCursor(c *listCursor) {
	for i, x := range l.cursors {
		if x == c {
			l.cursors = append(l.cursors[:i], l.cursors[i+1:]...)
			return
		}
	}
}

// reset 清空链表（游标保留但全部指向末尾）
func (l *connList) reset() {
	for n := l.head; n != nil; {
		next := n.next
		n.prev, n.next = nil, nil
		n = next
	}
	l.head, l.tail, l.idleStart = nil, nil, nil
	l.size, l.numIdle = 0, 0
	for _, c := range l.cursors {
		c.node = nil
	}
}

// verify 检查分区不变量，返回第一个违反项
func (l *connList) verify() error {
	count, idle := 0, 0
	inIdle := false
	var prev *connNode
	for n := l.head; n != nil; n = n.next {
		if n.prev != prev {
			return fmt.Errorf("broken prev link at node %d", count)
		}
		if n == l.idleStart {
			inIdle = true
		}
		if n.idle != inIdle {
			return fmt.Errorf("node %d idle=%v on wrong side of boundary", count, n.idle)
		}
		if n.idle {
			idle++
		}
		count++
		prev = n
	}
	if prev != l.tail {
		return fmt.Errorf("tail mismatch")
	}
	if l.idleStart != nil && !inIdle {
		return fmt.Errorf("boundary not linked")
	}
	if count != l.size {
		return fmt.Errorf("size %d, counted %d", l.size, count)
	}
	if idle != l.numIdle {
		return fmt.Errorf("numIdle %d, counted %d", l.numIdle, idle)
	}
	return nil
}
