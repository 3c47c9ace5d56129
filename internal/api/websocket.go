package api

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bone-crawler/internal/game"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	MaxWSConnectionsTotal = 500
	MaxWSConnectionsPerIP = 10

	// Player input is a few keys per frame; anything faster is a script.
	wsCommandsPerSec = 60
	wsCommandBurst   = 20

	wsWriteWait  = 2 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 512
	wsSendQueue  = 16
)

// wsCommand is a player input sent by a client:
// {"type":"move","value":0.1}
type wsCommand struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// wsClient owns one socket. Only writePump writes to conn and only Run
// closes send.
type wsClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
	cmds *rate.Limiter
}

// WebSocketHub fans "game:frame" snapshots and "game:events" batches out to
// every viewer and forwards their commands to the engine. A viewer whose
// queue fills up is disconnected rather than slowing the rest.
type WebSocketHub struct {
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	stop       chan struct{}
	stopOnce   sync.Once
	count      atomic.Int32

	engine   EngineInterface
	upgrader websocket.Upgrader
	slots    *SlotLimiter
}

func NewWebSocketHub(engine EngineInterface, origins OriginPolicy) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stop:       make(chan struct{}),
		engine:     engine,
		slots:      NewSlotLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.IsAllowed(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket origin refused: %q", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set until Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			log.Printf("📱 Viewer connected from %s (%d total)", c.ip, len(h.clients))

		case c := <-h.unregister:
			if h.drop(c) {
				log.Printf("📱 Viewer left (%d remaining)", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Printf("⚠️ Viewer %s too slow, disconnecting", c.ip)
					h.drop(c)
				}
			}
			IncrementWSMessages()

		case <-h.stop:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// drop forgets c and closes its queue, which ends its writePump
func (h *WebSocketHub) drop(c *wsClient) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	h.slots.Release(c.ip)
	h.setCount()
	return true
}

func (h *WebSocketHub) setCount() {
	h.count.Store(int32(len(h.clients)))
	UpdateWSConnections(len(h.clients))
}

// Stop disconnects every viewer and ends Run and the broadcast loop
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast queues {"event": event, "data": data} for every viewer. It
// never blocks; a full queue skips the message.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}{event, data})
	if err != nil {
		log.Printf("⚠️ Broadcast %s marshal failed: %v", event, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

func (h *WebSocketHub) ClientCount() int {
	return int(h.count.Load())
}

// StartBroadcastLoop pushes the newest frame and unseen events hz times a
// second until Stop
func (h *WebSocketHub) StartBroadcastLoop(hz int) {
	if hz <= 0 {
		hz = 10
	}
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(hz))
		defer ticker.Stop()

		var lastTick, lastSeq uint64
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}

			if snap, ok := h.engine.Snapshot(); ok && snap.TickNumber != lastTick {
				lastTick = snap.TickNumber
				h.Broadcast("game:frame", snap)
			}

			var fresh []eventView
			for _, ev := range h.engine.RecentEvents(maxEvents) {
				if ev.Sequence > lastSeq {
					lastSeq = ev.Sequence
					fresh = append(fresh, viewEvent(ev))
				}
			}
			if len(fresh) > 0 {
				h.Broadcast("game:events", fresh)
			}
		}
	}()
}

// HandleWebSocket upgrades a viewer after the total and per-address caps
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.slots.Acquire(ip) {
		log.Printf("⚠️ WebSocket refused for %s: per-address limit", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		h.slots.Release(ip)
		return
	}

	c := &wsClient{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, wsSendQueue),
		cmds: rate.NewLimiter(wsCommandsPerSec, wsCommandBurst),
	}
	select {
	case h.register <- c:
	case <-h.stop:
		h.slots.Release(ip)
		conn.Close()
		return
	}

	go c.writePump()
	go h.readPump(c)
}

func (c *wsClient) writePump() {
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsCommand
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		cmd, ok := parseCommand(msg)
		if !ok {
			log.Printf("📨 Ignored command from %s: %q", c.ip, msg.Type)
			continue
		}
		if !c.cmds.Allow() {
			RecordCommandDropped("ws_flood")
			continue
		}
		if !h.engine.Submit(cmd) {
			RecordCommandDropped("queue_full")
		}
	}
}

// parseCommand maps a client message to an engine command
func parseCommand(msg wsCommand) (game.Command, bool) {
	if math.IsNaN(msg.Value) || math.IsInf(msg.Value, 0) {
		return game.Command{}, false
	}
	kinds := map[string]game.CommandKind{
		"move":   game.CommandMove,
		"strafe": game.CommandStrafe,
		"turn":   game.CommandTurn,
		"attack": game.CommandAttack,
	}
	kind, ok := kinds[msg.Type]
	if !ok {
		return game.Command{}, false
	}
	if kind == game.CommandAttack {
		return game.Command{Kind: kind}, true
	}
	return game.Command{Kind: kind, Value: msg.Value}, true
}
