package handlers

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// realtimeHub fans dashboard events out to every open websocket. Posts and
// tasks are not owned by a single operator, so every event goes to every
// connection; the operator name is kept per connection only as a label for
// hello/clock payloads and logs.
type realtimeHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]string
}

func newRealtimeHub() *realtimeHub {
	return &realtimeHub{conns: make(map[*websocket.Conn]string)}
}

func (h *realtimeHub) add(c *websocket.Conn, operator string) {
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	h.conns[c] = operator
	h.mu.Unlock()
}

func (h *realtimeHub) remove(c *websocket.Conn) {
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// broadcast sends to every connection, dropping the ones that fail mid-send.
func (h *realtimeHub) broadcast(msg []byte) {
	if h == nil || len(msg) == 0 {
		return
	}
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := websocket.Message.Send(c, string(msg)); err != nil {
			_ = c.Close()
			h.remove(c)
		}
	}
}

func (h *realtimeHub) size() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func isLocalhostRemoteAddr(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil && h != "" {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// internalWSAllowed returns true if the request may open a backend WS
// connection. In production set INTERNAL_WS_SECRET and send it via
// X-Internal-WS-Secret from the edge proxy; loopback is always allowed.
func internalWSAllowed(r *http.Request) bool {
	sec := strings.TrimSpace(os.Getenv("INTERNAL_WS_SECRET"))
	if isLocalhostRemoteAddr(r.RemoteAddr) {
		return true
	}
	if sec == "" {
		return false
	}
	return strings.TrimSpace(r.Header.Get("X-Internal-WS-Secret")) == sec
}

func internalWSDebug(r *http.Request) map[string]any {
	sec := strings.TrimSpace(os.Getenv("INTERNAL_WS_SECRET"))
	hdr := strings.TrimSpace(r.Header.Get("X-Internal-WS-Secret"))
	secSet := sec != ""
	hasHeader := hdr != ""
	return map[string]any{
		"remote":      r.RemoteAddr,
		"host":        r.Host,
		"loopback":    isLocalhostRemoteAddr(r.RemoteAddr),
		"secSet":      secSet,
		"hasHeader":   hasHeader,
		"headerMatch": secSet && hasHeader && hdr == sec,
	}
}

// EventsPing is a non-WS endpoint used to debug internal WS auth.
// URL: /api/events/ping
func (h *Handler) EventsPing(w http.ResponseWriter, r *http.Request) {
	resp := internalWSDebug(r)
	resp["ok"] = internalWSAllowed(r)
	if resp["ok"] != true {
		writeJSON(w, http.StatusForbidden, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type realtimeEvent struct {
	Type string `json:"type"`

	Operator string `json:"operator,omitempty"`
	PostID   string `json:"postId,omitempty"`
	PageID   string `json:"pageId,omitempty"`
	TaskID   string `json:"taskId,omitempty"`
	Source   string `json:"source,omitempty"`

	Status string `json:"status,omitempty"`
	Now    string `json:"now,omitempty"`
	At     string `json:"at"`
}

// sendEvent marshals and sends one event to one connection. A false return
// means the connection is gone.
func sendEvent(c *websocket.Conn, ev realtimeEvent) bool {
	if strings.TrimSpace(ev.At) == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return true
	}
	return websocket.Message.Send(c, string(b)) == nil
}

// EventsWebSocket streams realtime events to the dashboard.
//
// URL: /api/events/ws?operator=...
// Auth: X-Internal-WS-Secret (or localhost-only if INTERNAL_WS_SECRET is unset)
func (h *Handler) EventsWebSocket(w http.ResponseWriter, r *http.Request) {
	if !internalWSAllowed(r) {
		d := internalWSDebug(r)
		log.Printf("[RealtimeWS] forbidden remote=%v host=%v loopback=%v secSet=%v hasHeader=%v headerMatch=%v",
			d["remote"], d["host"], d["loopback"], d["secSet"], d["hasHeader"], d["headerMatch"])
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	operator := strings.TrimSpace(r.URL.Query().Get("operator"))
	if operator == "" {
		http.Error(w, "missing_operator", http.StatusBadRequest)
		return
	}

	// golang.org/x/net/websocket's default origin check can return 403 when
	// the Origin header doesn't match Host. This WS is internal, so any
	// Origin is accepted; auth is handled by internalWSAllowed above.
	wsServer := websocket.Server{
		Handshake: func(cfg *websocket.Config, req *http.Request) error {
			return nil
		},
		Handler: func(c *websocket.Conn) {
			log.Printf("[RealtimeWS] connect operator=%s remote=%s ua=%q", operator, r.RemoteAddr, truncate(r.UserAgent(), 120))
			if h != nil && h.rt != nil {
				h.rt.add(c, operator)
				defer h.rt.remove(c)
			}
			defer log.Printf("[RealtimeWS] disconnect operator=%s remote=%s", operator, r.RemoteAddr)

			// Hello so clients can confirm the channel before any real event.
			sendEvent(c, realtimeEvent{Type: "hello", Operator: operator})

			// Server-time clock tick, useful for debugging WS connectivity.
			// Stops itself on the first failed send; the read loop below owns
			// connection teardown.
			stop := make(chan struct{})
			defer close(stop)
			go func() {
				ticker := time.NewTicker(1 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case now := <-ticker.C:
						ev := realtimeEvent{
							Type:     "clock",
							Operator: operator,
							Now:      now.UTC().Format("15:04:05"),
							At:       now.UTC().Format(time.RFC3339),
						}
						if !sendEvent(c, ev) {
							return
						}
					}
				}
			}()

			// Read loop keeps the connection open and detects disconnects.
			var ignored string
			for websocket.Message.Receive(c, &ignored) == nil {
			}
		},
	}

	wsServer.ServeHTTP(w, r)
}

// emitBroadcast fans an event out to every connected dashboard.
func (h *Handler) emitBroadcast(ev realtimeEvent) {
	if h == nil || h.rt == nil {
		return
	}
	if strings.TrimSpace(ev.At) == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Realtime] marshal_failed err=%v", err)
		return
	}
	log.Printf("[Realtime] emit type=%s postId=%s taskId=%s status=%s subs=%d",
		ev.Type, ev.PostID, ev.TaskID, ev.Status, h.rt.size())
	h.rt.broadcast(b)
}
