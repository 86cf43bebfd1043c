package netlink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// RconCommand is one remote-control request delivered over the REST/RCON
// websocket boundary (component §5's "its own thread, synchronises only
// via shared atomic flags and lookup-table mutation").
type RconCommand struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// RconServer accepts websocket connections and forwards decoded commands
// to a handler supplied by Host; it never touches Host/Slot/Control state
// directly, only through that handler, respecting the single-writer rule
// on the core state machines.
type RconServer struct {
	upgrader websocket.Upgrader
	handler  func(RconCommand) error

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewRconServer builds a server that calls handler for every decoded
// command received on any connected client.
func NewRconServer(handler func(RconCommand) error) *RconServer {
	return &RconServer{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		handler:  handler,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and reads commands until it closes.
func (s *RconServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("netlink: rcon upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		var cmd RconCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		if err := s.handler(cmd); err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		conn.WriteJSON(map[string]string{"status": "ok"})
	}
}

// Broadcast pushes an unsolicited status update to every connected client,
// used for e.g. mode-change notifications.
func (s *RconServer) Broadcast(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(v); err != nil {
			log.Printf("netlink: rcon broadcast failed: %v", err)
		}
	}
}
