package listener

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("listener: invalid config")

	// ErrAlreadyStarted 监听器已启动
	ErrAlreadyStarted = errors.New("listener: already started")

	// ErrNotStarted 监听器未启动
	ErrNotStarted = errors.New("listener: not started")

	// ErrClosed 监听器已关闭
	ErrClosed = errors.New("listener: closed")

	// ErrLineTooLong 请求行超过长度上限
	ErrLineTooLong = errors.New("listener: request line too long")
)
