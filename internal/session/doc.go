// Package session implements the per-connection loops of the relay.
//
// Each accepted WebSocket connection is owned by exactly one session:
//   - Player: registers a device, sends the registration handshake, then
//     forwards relay events to the socket until either side disconnects
//   - Controller: claims a device's producer side and forwards validated
//     commands into its channel
package session
