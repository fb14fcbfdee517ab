package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/screenlink/internal/relay"
)

// Controller owns one controller WebSocket connection. It claims the device's
// relay producer and forwards validated commands until the session ends.
type Controller struct {
	conn         *websocket.Conn
	registry     *relay.Registry
	device       string
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewController creates a controller session for an upgraded connection. The
// device identifier comes from the connection's query parameters; the secret
// is accepted upstream but never validated.
func NewController(conn *websocket.Conn, registry *relay.Registry, device string, writeTimeout time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		conn:         conn,
		registry:     registry,
		device:       device,
		writeTimeout: writeTimeout,
		logger:       logger.With("device", device),
	}
}

// Run drives the session. Lookup or claim failure ends it immediately; after
// that, every inbound command runs through the pairing state machine and is
// forwarded per its verdict. The caller closes the underlying connection.
func (c *Controller) Run() {
	ch, err := c.registry.Lookup(c.device)
	if err != nil {
		c.logger.Error("unknown device", "error", err)
		return
	}

	producer, err := ch.ClaimProducer()
	if err != nil {
		c.logger.Error("failed to claim producer", "error", err)
		return
	}
	defer producer.Close()

	c.logger.Info("producer claimed")

	state := relay.StateUnpaired

	defer func() {
		if state == relay.StateUnpaired {
			c.logger.Debug("controller session ended unpaired")
		} else {
			c.logger.Warn("controller session ended without unpairing", "state", state.String())
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.logger.Debug("controller sent close frame", "code", closeErr.Code)
				// A controller that goes away while paired leaves the player
				// hanging; unpair it on the way out.
				if state.Unpair() {
					if serr := producer.Send(relay.SyntheticUnpair()); serr != nil {
						c.logger.Error("failed to forward unpair on close", "error", serr)
					}
				}
			} else {
				c.logger.Debug("controller socket error", "error", err)
			}
			return
		}

		if producer.Closed() {
			c.logger.Debug("player side gone")
			c.sendClose()
			return
		}

		ev, perr := relay.ParseEvent(data)
		if perr != nil {
			c.logger.Error("failed to parse event", "error", perr)
			continue
		}
		c.logger.Debug("received command", "command", string(ev.Command), "state", state.String())

		if !state.Apply(ev.Command) {
			c.logger.Error("command rejected", "command", string(ev.Command))
			if serr := producer.Send(relay.SyntheticUnpair()); serr != nil {
				c.logger.Error("failed to send forced unpair", "error", serr)
			}
			c.sendClose()
			return
		}

		if serr := producer.Send(data); serr != nil {
			c.logger.Error("failed to forward command", "command", string(ev.Command), "error", serr)
			c.sendClose()
			return
		}
		c.logger.Debug("command forwarded", "command", string(ev.Command))

		if ev.Command == relay.CommandUnpair {
			c.logger.Info("controller unpaired")
			c.sendClose()
			return
		}
	}
}

// sendClose sends a best-effort close frame. Not needed on the close-frame
// path: the connection's default close handler already echoed one.
func (c *Controller) sendClose() {
	deadline := time.Now().Add(c.writeTimeout)
	if err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	); err != nil && err != websocket.ErrCloseSent {
		c.logger.Debug("failed to send close frame", "error", err)
	}
}
