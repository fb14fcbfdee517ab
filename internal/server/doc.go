// Package server hosts the relay's HTTP surface.
//
// It exposes the two WebSocket endpoints (/ws/player, /ws/controller),
// upgrades connections, and hands them to their sessions. A /health endpoint
// reports the registered device count.
package server
