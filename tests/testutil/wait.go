package testutil

import (
	"context"
	"testing"
	"time"
)

// WaitForCondition 等待条件满足或超时
//
// 参数：
//   - t: 测试对象
//   - timeout: 超时时间
//   - interval: 检查间隔
//   - condition: 条件函数，返回 true 表示条件满足
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即检查一次
	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查
//
// 使用默认间隔 20ms。
//
// 示例:
//
//	testutil.Eventually(t, 2*time.Second, func() bool {
//	    stats, _ := acc.Stats()
//	    return stats.Conns == 0
//	}, "连接应全部关闭")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 20*time.Millisecond, condition, msg)
}

// Never 在指定时间内条件始终不满足，否则 fail 测试
func Never(t *testing.T, duration time.Duration, condition func() bool, msg string) {
	t.Helper()

	if WaitForCondition(t, duration, 20*time.Millisecond, condition) {
		t.Fatalf("条件不应满足: %s", msg)
	}
}
