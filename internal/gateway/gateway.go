// Package gateway terminates websocket connections and feeds authenticated
// commands into the table actor. A socket must redeem an entry ticket before
// any table command is accepted.
package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"holdem-table/holdem"
	"holdem-table/internal/auth"
	"holdem-table/internal/protocol"
	"holdem-table/internal/table"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// Connection represents one websocket client.
type Connection struct {
	ID       string
	Identity string // empty until a ticket is redeemed
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time
}

// Gateway manages websocket connections for one table process.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	auth        auth.Service
	table       *table.Table
}

func New(authService auth.Service) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		auth:        authService,
	}
}

// AttachTable binds the gateway to its table. Call before serving.
func (g *Gateway) AttachTable(t *table.Table) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.table = t
}

// Send delivers a frame to a session; the table uses this as its broadcast
// edge. Frames to a full buffer are dropped so a stalled client never blocks
// the serializer.
func (g *Gateway) Send(sessionID string, data []byte) {
	g.mu.RLock()
	c := g.connections[sessionID]
	g.mu.RUnlock()

	if c != nil {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// HandleWebSocket upgrades and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	c := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}

	g.mu.Lock()
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s, total: %d", c.ID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		log.Printf("[Gateway] %s sent malformed message: %v", c.ID, err)
		c.reply(protocol.NewErrorMsg("invalid message format"))
		return
	}

	if msg.Type == protocol.ClientAuthenticate {
		c.handleAuthenticate(msg.Ticket)
		return
	}
	if c.Identity == "" {
		c.reply(protocol.NewErrorMsg("not authenticated"))
		return
	}

	switch msg.Type {
	case protocol.ClientSit:
		c.handleSit(msg)
	case protocol.ClientAction:
		c.handleAction(msg)
	case protocol.ClientLeave:
		c.handleLeave()
	default:
		log.Printf("[Gateway] Unknown message type %q from %s", msg.Type, c.ID)
		c.reply(protocol.NewErrorMsg("unknown message type"))
	}
}

func (c *Connection) handleAuthenticate(ticket string) {
	identity, err := c.Gateway.auth.Redeem(ticket)
	if err != nil {
		log.Printf("[Gateway] %s ticket rejected: %v", c.ID, err)
		c.reply(protocol.NewAuthError(err.Error()))
		return
	}
	c.Identity = identity

	if err := c.Gateway.table.SubmitEvent(table.Event{
		Type:      table.EventAttach,
		Identity:  identity,
		SessionID: c.ID,
	}); err != nil {
		c.reply(protocol.NewAuthError(err.Error()))
		return
	}
	c.reply(protocol.NewAuthOK(c.Gateway.table.ID, identity))
	log.Printf("[Gateway] %s authenticated as %s", c.ID, identity)
}

func (c *Connection) handleSit(msg *protocol.ClientMessage) {
	if msg.SeatIndex == nil {
		c.reply(protocol.NewErrorMsg("sit requires seatIndex"))
		return
	}
	err := c.Gateway.table.SubmitEvent(table.Event{
		Type:      table.EventSit,
		Identity:  c.Identity,
		SessionID: c.ID,
		SeatIndex: *msg.SeatIndex,
	})
	if err != nil {
		c.reply(protocol.NewErrorMsg(err.Error()))
	}
}

func (c *Connection) handleAction(msg *protocol.ClientMessage) {
	if msg.SeatIndex == nil || msg.Action == nil {
		c.reply(protocol.NewErrorMsg("action requires seatIndex and action"))
		return
	}
	kind, ok := holdem.ParseActionKind(msg.Action.Type)
	if !ok {
		c.reply(protocol.NewErrorMsg("unknown action type"))
		return
	}
	err := c.Gateway.table.SubmitEvent(table.Event{
		Type:      table.EventAction,
		Identity:  c.Identity,
		SessionID: c.ID,
		SeatIndex: *msg.SeatIndex,
		Action:    kind,
		Amount:    msg.Action.Amount,
	})
	if err != nil {
		// Both protocol errors and illegal action semantics surface only to
		// the offending socket; state is untouched.
		c.reply(protocol.NewErrorMsg(err.Error()))
	}
}

func (c *Connection) handleLeave() {
	err := c.Gateway.table.SubmitEvent(table.Event{
		Type:     table.EventLeave,
		Identity: c.Identity,
	})
	if err != nil {
		c.reply(protocol.NewErrorMsg(err.Error()))
	}
}

func (c *Connection) reply(data []byte) {
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	tbl := g.table
	g.mu.Unlock()

	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)

	if c.Identity != "" && tbl != nil {
		// The seat is not vacated here; the table starts the reclaim window.
		_ = tbl.SubmitEvent(table.Event{
			Type:      table.EventDetach,
			Identity:  c.Identity,
			SessionID: c.ID,
		})
	}
}
