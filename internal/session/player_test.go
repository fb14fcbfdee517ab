package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/screenlink/internal/relay"
)

const testWriteTimeout = 2 * time.Second

// newSessionServer creates a test server that upgrades each connection and
// hands it to run. The returned channel closes when run returns.
func newSessionServer(t *testing.T, run func(conn *websocket.Conn)) (*httptest.Server, chan struct{}) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	done := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		run(conn)
		close(done)
	}))

	return server, done
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// readHandshake reads and decodes the registration message.
func readHandshake(t *testing.T, conn *websocket.Conn) relay.Registration {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read handshake: %v", err)
	}
	var reg relay.Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		t.Fatalf("failed to decode handshake %q: %v", data, err)
	}
	return reg
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestPlayer_Handshake(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, _ := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	reg := readHandshake(t, conn)
	if reg.Device == "" {
		t.Fatal("handshake has empty device identifier")
	}
	if reg.Secret != "" {
		t.Errorf("handshake secret = %q, want empty", reg.Secret)
	}

	// The issued identifier resolves to the session's live channel.
	if _, err := registry.Lookup(reg.Device); err != nil {
		t.Errorf("Lookup(%q) failed: %v", reg.Device, err)
	}
}

func TestPlayer_ForwardsVerbatim(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, _ := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	reg := readHandshake(t, conn)
	ch, err := registry.Lookup(reg.Device)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p, err := ch.ClaimProducer()
	if err != nil {
		t.Fatalf("ClaimProducer failed: %v", err)
	}

	// Incidental formatting must survive the relay untouched.
	frame := []byte(`{ "command" : "Play",  "payload": "movie.mp4" }`)
	if err := p.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read forwarded event: %v", err)
	}
	if string(got) != string(frame) {
		t.Errorf("forwarded %q, want %q", got, frame)
	}
}

func TestPlayer_UnpairEndsSession(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, done := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	reg := readHandshake(t, conn)
	ch, err := registry.Lookup(reg.Device)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p, err := ch.ClaimProducer()
	if err != nil {
		t.Fatalf("ClaimProducer failed: %v", err)
	}

	if err := p.Send(relay.SyntheticUnpair()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read unpair event: %v", err)
	}
	if string(got) != string(relay.SyntheticUnpair()) {
		t.Errorf("forwarded %q, want %q", got, relay.SyntheticUnpair())
	}

	waitDone(t, done)

	if _, err := registry.Lookup(reg.Device); !errors.Is(err, relay.ErrDeviceNotFound) {
		t.Errorf("Lookup after unpair = %v, want ErrDeviceNotFound", err)
	}
}

func TestPlayer_DisconnectUnregisters(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, done := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	reg := readHandshake(t, conn)

	ch, err := registry.Lookup(reg.Device)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p, err := ch.ClaimProducer()
	if err != nil {
		t.Fatalf("ClaimProducer failed: %v", err)
	}

	conn.Close()
	waitDone(t, done)

	if _, err := registry.Lookup(reg.Device); !errors.Is(err, relay.ErrDeviceNotFound) {
		t.Errorf("Lookup after disconnect = %v, want ErrDeviceNotFound", err)
	}

	// A controller still holding the producer observes the closure.
	if err := p.Send([]byte(`{"command":"Play","payload":null}`)); !errors.Is(err, relay.ErrChannelClosed) {
		t.Errorf("Send error = %v, want ErrChannelClosed", err)
	}
}

func TestPlayer_ProducerCloseEndsSession(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, done := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	reg := readHandshake(t, conn)
	ch, err := registry.Lookup(reg.Device)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p, err := ch.ClaimProducer()
	if err != nil {
		t.Fatalf("ClaimProducer failed: %v", err)
	}

	// Controller goes away without unpairing: channel drains empty.
	p.Close()
	waitDone(t, done)

	if _, err := registry.Lookup(reg.Device); !errors.Is(err, relay.ErrDeviceNotFound) {
		t.Errorf("Lookup after channel drain = %v, want ErrDeviceNotFound", err)
	}
}

func TestPlayer_SkipsMalformedRelayEvent(t *testing.T) {
	registry := relay.NewRegistry(10, nil)
	server, _ := newSessionServer(t, func(conn *websocket.Conn) {
		NewPlayer(conn, registry, testWriteTimeout, nil).Run()
	})
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	reg := readHandshake(t, conn)
	ch, err := registry.Lookup(reg.Device)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p, err := ch.ClaimProducer()
	if err != nil {
		t.Fatalf("ClaimProducer failed: %v", err)
	}

	if err := p.Send([]byte(`not json`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	good := []byte(`{"command":"Pair","payload":null}`)
	if err := p.Send(good); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// The malformed payload is skipped, the next event still arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if string(got) != string(good) {
		t.Errorf("forwarded %q, want %q", got, good)
	}
}
