package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/screenlink/internal/relay"
)

// Player owns one player WebSocket connection. It registers a device in the
// registry, tells the player its identifier, and forwards relay events to the
// socket until disconnect.
type Player struct {
	conn         *websocket.Conn
	registry     *relay.Registry
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewPlayer creates a player session for an upgraded connection.
func NewPlayer(conn *websocket.Conn, registry *relay.Registry, writeTimeout time.Duration, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		conn:         conn,
		registry:     registry,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Run drives the session until either the socket or the relay channel
// terminates. It always unregisters the device exactly once on exit; the
// caller closes the underlying connection.
func (p *Player) Run() {
	device, ch := p.registry.Register()
	logger := p.logger.With("device", device)
	logger.Info("device registered")

	// Single exit path: every termination trigger funnels through here.
	defer func() {
		p.sendClose()
		ch.Close()
		p.registry.Unregister(device)
		logger.Info("device unregistered")
	}()

	handshake, err := json.Marshal(relay.Registration{Device: device})
	if err != nil {
		logger.Error("failed to encode registration handshake", "error", err)
		return
	}
	if err := p.write(handshake); err != nil {
		logger.Error("failed to send registration handshake", "error", err)
		return
	}

	// The player never sends semantic commands; inbound frames are read only
	// to detect disconnect.
	socketDone := make(chan error, 1)
	go func() {
		for {
			if _, _, err := p.conn.ReadMessage(); err != nil {
				socketDone <- err
				return
			}
		}
	}()

	for {
		select {
		case err := <-socketDone:
			logger.Debug("player socket closed", "error", err)
			return

		case data, ok := <-ch.Events():
			if !ok {
				logger.Debug("relay channel drained")
				return
			}

			ev, perr := relay.ParseEvent(data)
			if perr != nil {
				logger.Error("failed to parse relayed event", "error", perr)
				continue
			}

			if err := p.write(data); err != nil {
				logger.Error("failed to forward event", "command", string(ev.Command), "error", err)
				return
			}
			logger.Debug("event forwarded", "command", string(ev.Command))

			if ev.Command == relay.CommandUnpair {
				logger.Info("player unpaired")
				return
			}
		}
	}
}

// write sends one text frame with the configured deadline. The session loop
// is the only writer on the connection.
func (p *Player) write(data []byte) error {
	p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// sendClose sends a best-effort close frame.
func (p *Player) sendClose() {
	deadline := time.Now().Add(p.writeTimeout)
	if err := p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	); err != nil && err != websocket.ErrCloseSent {
		p.logger.Debug("failed to send close frame", "error", err)
	}
}
