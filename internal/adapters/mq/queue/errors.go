package queue

import "errors"

// Sentinel kinds for enqueue rejections.
var (
	ErrFull   = errors.New("notification queue full")
	ErrClosed = errors.New("notification queue closed")
)
