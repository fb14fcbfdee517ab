package relay

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry is the concurrent mapping from device identifier to its Channel.
// The map is guarded by a coarse read/write lock; the claim on each Channel
// is guarded by the Channel's own lock (map lock first, then entry lock).
type Registry struct {
	capacity int
	logger   *slog.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewRegistry creates an empty Registry. Channels it issues use the given
// event buffer capacity.
func NewRegistry(capacity int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		capacity: capacity,
		logger:   logger,
		channels: make(map[string]*Channel),
	}
}

// Register issues a fresh device identifier with an empty Channel and inserts
// the pair. Identifiers are server-generated; a collision means the generator
// is broken and is a fatal invariant violation.
func (r *Registry) Register() (string, *Channel) {
	device := uuid.NewString()
	ch := NewChannel(r.capacity)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[device]; exists {
		panic("relay: duplicate device identifier generated: " + device)
	}
	r.channels[device] = ch

	r.logger.Debug("device registered", "device", device)

	return device, ch
}

// Lookup returns the live Channel for a device, or ErrDeviceNotFound.
func (r *Registry) Lookup(device string) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[device]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return ch, nil
}

// Unregister removes a device entry. Safe to call for a device that was never
// looked up, or that has already been removed.
func (r *Registry) Unregister(device string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.channels, device)

	r.logger.Debug("device unregistered", "device", device)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
