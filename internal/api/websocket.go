package api

import (
	"log"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"rain-dodge/internal/game"
)

const (
	// EventWelcome is sent to a new connection only, carrying its id
	EventWelcome = "welcome"

	writeWait      = 2 * time.Second
	maxMessageSize = 4096
)

// HubConfig holds connection limits for the websocket transport
type HubConfig struct {
	MaxConnections int      // Total concurrent connections
	MaxPerIP       int      // Concurrent connections per client IP
	InputRate      float64  // Inbound messages per second per connection
	InputBurst     int      // Burst allowance for inbound messages
	AllowedOrigins []string // Browser origins allowed to connect (wildcard port with ":*")
}

// DefaultHubConfig returns production-safe defaults
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections: 200,
		MaxPerIP:       10,
		InputRate:      60,
		InputBurst:     120,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
}

// wsClient tracks a websocket connection with its id, source IP and input limiter
type wsClient struct {
	id      string
	conn    *websocket.Conn
	ip      string
	limiter *rate.Limiter
}

type directMessage struct {
	id      string
	payload []byte
}

// WebSocketHub is the transport adapter: it owns every connection, fans out
// session events and feeds client input into the session.
// It implements game.Broadcaster.
type WebSocketHub struct {
	clients    map[string]*wsClient
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	session  SessionInterface
	config   HubConfig
	upgrader websocket.Upgrader

	// Connection limiting per IP
	slots *ipSlots

	// Roster and round events never drop; they queue here and go out before
	// the next state frame
	pendingMu sync.Mutex
	pending   [][]byte
	pendingCh chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWebSocketHub creates a hub bound to session. Call Run to start it.
func NewWebSocketHub(session SessionInterface, cfg HubConfig) *WebSocketHub {
	def := DefaultHubConfig()
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = def.MaxPerIP
	}
	if cfg.InputRate <= 0 {
		cfg.InputRate = def.InputRate
	}
	if cfg.InputBurst <= 0 {
		cfg.InputBurst = def.InputBurst
	}

	h := &WebSocketHub{
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		session:    session,
		config:     cfg,
		slots:      newIPSlots(cfg.MaxPerIP),
		pendingCh:  make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if IsAllowedOrigin(origin, r.Host, h.config.AllowedOrigins) {
		return true
	}

	log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
	RecordConnectionRejected("origin")
	return false
}

// Run is the single writer for every connection. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s connected from %s (%d total)", client.id, client.ip, count)
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				h.slots.Release(client.ip)
				client.conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s disconnected (%d remaining)", client.id, count)
			UpdateWSConnections(count)

		case msg := <-h.direct:
			h.mu.RLock()
			client, ok := h.clients[msg.id]
			h.mu.RUnlock()
			if ok && h.write(client, msg.payload) != nil {
				h.drop(client)
			}

		case <-h.pendingCh:
			h.flushPending()

		case message := <-h.broadcast:
			h.flushPending()
			h.fanOut(message)
		}
	}
}

func (h *WebSocketHub) flushPending() {
	h.pendingMu.Lock()
	queued := h.pending
	h.pending = nil
	h.pendingMu.Unlock()

	for _, message := range queued {
		h.fanOut(message)
	}
}

func (h *WebSocketHub) fanOut(message []byte) {
	h.mu.RLock()
	var failed []*wsClient
	for _, client := range h.clients {
		if err := h.write(client, message); err != nil {
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failed {
		h.drop(client)
	}
	IncrementWSMessages()
}

func (h *WebSocketHub) write(c *wsClient, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// drop closes a connection whose write failed; its reader then performs the leave.
func (h *WebSocketHub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		h.slots.Release(c.ip)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	UpdateWSConnections(count)
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.conn.Close()
		h.slots.Release(c.ip)
		delete(h.clients, id)
	}
	UpdateWSConnections(0)
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast sends an event to all connected clients. It never blocks:
// "state" frames are dropped under backpressure since the next tick
// supersedes them, every other event is queued without limit.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	payload, err := EncodeEvent(event, data)
	if err != nil {
		log.Printf("⚠️ Failed to encode %s: %v", event, err)
		return
	}

	if event != game.EventState {
		h.pendingMu.Lock()
		h.pending = append(h.pending, payload)
		h.pendingMu.Unlock()

		select {
		case h.pendingCh <- struct{}{}:
		default:
		}
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		RecordBroadcastDropped()
	}
}

// Send delivers an event to one client.
func (h *WebSocketHub) Send(id, event string, data interface{}) {
	payload, err := EncodeEvent(event, data)
	if err != nil {
		return
	}

	select {
	case h.direct <- directMessage{id: id, payload: payload}:
	default:
		RecordBroadcastDropped()
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and runs the connection's read loop.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= h.config.MaxConnections {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", h.config.MaxConnections)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.slots.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.slots.Release(ip)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		ip:      ip,
		limiter: rate.NewLimiter(rate.Limit(h.config.InputRate), h.config.InputBurst),
	}

	select {
	case h.register <- client:
	case <-h.stopChan:
		conn.Close()
		h.slots.Release(ip)
		return
	}
	h.Send(client.id, EventWelcome, map[string]string{"id": client.id})

	go h.readLoop(client)
}

func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		// Transport disconnect removes the player
		h.session.Leave(c.id)
		select {
		case h.unregister <- c:
		case <-h.stopChan:
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			RecordInputDropped("rate_limit")
			continue
		}

		cmd, ok := DecodeCommand(message)
		if !ok {
			RecordInputDropped("invalid")
			continue
		}
		h.dispatch(c, cmd)
	}
}

// dispatch applies a client command. Every rejection is silent.
func (h *WebSocketHub) dispatch(c *wsClient, cmd Command) {
	switch cmd.Event {
	case EventJoin:
		h.session.Join(c.id, cmd.Name)
	case EventMove:
		h.session.Move(c.id, cmd.Direction)
	case EventTilt:
		h.session.Tilt(c.id, cmd.Delta)
	case EventStart:
		h.session.StartRound()
	}
}

// IsAllowedOrigin checks a browser origin against the configured patterns.
// Requests without an Origin header (non-browser clients) and same-host
// requests are always allowed.
func IsAllowedOrigin(origin, host string, patterns []string) bool {
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}

	for _, pattern := range patterns {
		if pattern == "*" || pattern == origin {
			return true
		}
		// "http://localhost:*" matches any port, "https://*.example.com" any subdomain
		if ok, _ := path.Match(pattern, origin); ok {
			return true
		}
	}
	return false
}
