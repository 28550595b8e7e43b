package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/intercept/backend/internal/capture"
)

const (
	writeWait = 10 * time.Second
)

// handleSSE streams a running session's events as server-sent events.
// The stream ends when the session stops (its bus closes) or the client
// disconnects. A comment line is sent periodically so intermediaries
// don't time out an idle stream.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	sub, err := s.registry.Attach(cap)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := s.cfg.Capture.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[stream] marshal event: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleWS upgrades /ws/{capability} to a websocket and relays the
// session's events as JSON messages. When the session stops, a close
// control frame is sent and the connection torn down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/ws/")
	cap, ok := capture.ParseCapability(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_capability", fmt.Sprintf("unknown capability %q", name))
		return
	}

	// Attach before upgrading so an idle capability still gets a clean
	// HTTP error instead of an aborted websocket handshake.
	sub, err := s.registry.Attach(cap)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		log.Printf("[ws] upgrade failed for %s: %v", cap, err)
		return
	}

	log.Printf("[ws] client %s attached to %s", conn.RemoteAddr(), cap)

	// Reader goroutine: we never expect client messages, but reading is
	// how disconnects surface. A read error unsubscribes, which in turn
	// closes the write loop below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for ev := range sub.Events() {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			sub.Close()
			conn.Close()
			return
		}
	}

	// Session ended. Tell the client before dropping the connection.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
	conn.Close()
	log.Printf("[ws] client %s detached from %s", conn.RemoteAddr(), cap)
}
