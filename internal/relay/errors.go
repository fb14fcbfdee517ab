package relay

import "errors"

// Errors
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrAlreadyClaimed = errors.New("producer already claimed")
	ErrChannelClosed  = errors.New("channel closed")
)
