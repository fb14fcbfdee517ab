package relay

import "sync"

// DefaultChannelCapacity is the event buffer size used when the configured
// capacity is not positive.
const DefaultChannelCapacity = 100

// claimState tracks ownership of a Channel's producer side.
type claimState int

const (
	claimUnclaimed claimState = iota
	claimClaimed
)

// Channel is the bounded FIFO connecting one controller (producer) to one
// player (consumer). The producer side must be claimed before use; the claim
// is atomic and destructive, so at most one controller ever holds it.
type Channel struct {
	mu    sync.Mutex // guards claim
	claim claimState

	events    chan []byte
	done      chan struct{} // closed when the consumer goes away
	closeOnce sync.Once
}

// NewChannel creates a Channel with the given event buffer capacity.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = DefaultChannelCapacity
	}
	return &Channel{
		events: make(chan []byte, capacity),
		done:   make(chan struct{}),
	}
}

// ClaimProducer atomically takes ownership of the producer side. A second
// claim fails with ErrAlreadyClaimed. The claim is never released except by
// removing the whole device entry.
func (c *Channel) ClaimProducer() (*Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claim != claimUnclaimed {
		return nil, ErrAlreadyClaimed
	}
	c.claim = claimClaimed

	return &Producer{ch: c}, nil
}

// Claimed reports whether the producer side has been taken.
func (c *Channel) Claimed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claim == claimClaimed
}

// Events returns the consumer side of the channel. It is closed once the
// producer releases its handle, after any buffered events are drained.
func (c *Channel) Events() <-chan []byte {
	return c.events
}

// Close marks the consumer side as gone. Safe to call more than once.
// Subsequent Sends fail with ErrChannelClosed.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Producer is the claimed producer handle of a Channel. It must only be used
// from a single goroutine.
type Producer struct {
	ch        *Channel
	closeOnce sync.Once
}

// Send enqueues one event. It blocks while the buffer is full and returns
// ErrChannelClosed once the consumer has gone away. Order is always preserved,
// events are never dropped.
func (p *Producer) Send(data []byte) error {
	select {
	case <-p.ch.done:
		return ErrChannelClosed
	default:
	}

	select {
	case p.ch.events <- data:
		return nil
	case <-p.ch.done:
		return ErrChannelClosed
	}
}

// Closed reports whether the consumer side has gone away.
func (p *Producer) Closed() bool {
	select {
	case <-p.ch.done:
		return true
	default:
		return false
	}
}

// Close releases the producer side. The consumer drains any buffered events
// and then observes end-of-stream. Safe to call more than once.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.ch.events)
	})
}
