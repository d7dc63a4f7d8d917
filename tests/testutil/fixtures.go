// Package testutil 提供测试辅助工具
package testutil

import "time"

// 测试数据固件
//
// 提供测试中常用的常量值，确保测试一致性。

const (
	// LoopbackAddr 随机端口的本地监听地址
	LoopbackAddr = "127.0.0.1:0"

	// WaitTimeout 等待异步状态变化的默认上限
	WaitTimeout = 3 * time.Second
)
