package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/postpulse/pulse/analytics"
	"github.com/teranos/postpulse/pulse/posting"
)

// MaxClients bounds concurrent live-feed connections.
const MaxClients = 64

// Live-feed message types.
const (
	MessagePostingRun   = "posting_run"
	MessageAnalyticsRun = "analytics_run"
)

// RunMessage is what live-feed clients receive after every run.
type RunMessage struct {
	Type      string      `json:"type"`
	Source    string      `json:"source"` // cron, ticker, cli
	Report    interface{} `json:"report"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans run reports out to websocket subscribers. It implements
// posting.ReportBroadcaster so the in-process ticker can publish too.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	upgrader websocket.Upgrader
	nextID   atomic.Int64
	drops    atomic.Int64
	log      *zap.SugaredLogger
}

var _ posting.ReportBroadcaster = (*Hub)(nil)

// NewHub creates a hub. allowedOrigins are origin prefixes; an empty list
// accepts only requests without an Origin header and localhost.
func NewHub(allowedOrigins []string, log *zap.SugaredLogger) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return checkOrigin(r, allowedOrigins) },
	}
	return h
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}
	for _, prefix := range allowed {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("Live feed upgrade failed", "error", err)
		return
	}
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan interface{}, sendBuffer),
		id:   fmt.Sprintf("live_%d", h.nextID.Add(1)),
	}
	if !h.register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"))
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= MaxClients {
		h.log.Warnw("Max live clients reached, rejecting connection",
			"client_id", c.id,
			"max_clients", MaxClients)
		return false
	}
	h.clients[c] = true
	h.log.Debugw("Live client connected", "client_id", c.id, "clients", len(h.clients))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	remaining := len(h.clients)
	h.mu.Unlock()
	h.log.Debugw("Live client disconnected", "client_id", c.id, "clients", remaining)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Slow clients whose buffer is full
// miss the message. It returns how many clients accepted it.
func (h *Hub) Broadcast(msg interface{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- msg:
			sent++
		default:
			h.drops.Add(1)
		}
	}
	return sent
}

// BroadcastRunReport publishes a ticker-driven posting report.
func (h *Hub) BroadcastRunReport(report *posting.Report) {
	h.publishPosting("ticker", report)
}

func (h *Hub) publishPosting(source string, report *posting.Report) {
	h.Broadcast(RunMessage{Type: MessagePostingRun, Source: source, Report: report, Timestamp: time.Now().Unix()})
}

func (h *Hub) publishAnalytics(source string, report *analytics.Report) {
	h.Broadcast(RunMessage{Type: MessageAnalyticsRun, Source: source, Report: report, Timestamp: time.Now().Unix()})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
}
