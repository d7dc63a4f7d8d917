package eventloop

import "errors"

var (
	// ErrLoopClosed 循环已停止
	ErrLoopClosed = errors.New("eventloop: loop closed")

	// ErrLoopRunning 循环已在运行
	ErrLoopRunning = errors.New("eventloop: loop already running")
)
