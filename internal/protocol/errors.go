package protocol

import "errors"

var (
	// ErrInvalidEvent classifies frames that cannot be decoded or whose
	// payload has the wrong shape. Such events are dropped.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrTargetGone is reported when a broadcast target disconnected
	// before the send. The target is skipped.
	ErrTargetGone = errors.New("target gone")
)
