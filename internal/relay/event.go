package relay

import (
	"encoding/json"
	"fmt"
)

// Command identifies a relay protocol command.
type Command string

const (
	CommandPair   Command = "Pair"
	CommandUnpair Command = "Unpair"
	CommandPlay   Command = "Play"
	CommandStop   Command = "Stop"
)

// Event is a single wire message exchanged between a controller and a player.
// The parsed form is used for validation and logging only; the original frame
// bytes are what travel through the Channel.
type Event struct {
	Command Command `json:"command"`
	Payload *string `json:"payload"`
}

// Registration is the handshake message sent to a player right after its
// socket is upgraded. The player learns its own device identifier this way.
type Registration struct {
	Device string `json:"device"`
	Secret string `json:"secret"`
}

// ParseEvent decodes a text frame into an Event. An unknown command name is a
// parse error, same as malformed JSON.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	switch ev.Command {
	case CommandPair, CommandUnpair, CommandPlay, CommandStop:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("unknown command %q", string(ev.Command))
	}
}

// SyntheticUnpair returns the wire form of a server-generated Unpair event,
// used to notify a player of protocol-illegal controller input.
func SyntheticUnpair() []byte {
	return []byte(`{"command":"Unpair","payload":null}`)
}
