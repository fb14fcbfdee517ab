// Package relay implements the device pairing and relay core.
//
// The relay core:
//   - Registers player devices and issues their identifiers
//   - Connects one controller to one player through a bounded Channel
//   - Enforces legal command ordering (pair -> play/stop -> unpair)
//   - Forwards controller frames to the player byte-for-byte
package relay
