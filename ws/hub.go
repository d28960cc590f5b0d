package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"goTradeServer/config"
	"goTradeServer/round"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientConnection represents a connected client with their subscriptions
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool // round, leaderboard
	mu            sync.RWMutex
	writeMutex    sync.Mutex // Protects websocket writes
	Send          chan []byte
}

// writeJSON safely writes JSON to the websocket with mutex protection
func (c *ClientConnection) writeJSON(v interface{}) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.Conn.WriteJSON(v)
}

var (
	clients      = make(map[*ClientConnection]bool)
	clientsMutex sync.RWMutex

	roundBroadcast   = make(chan interface{}, 100)
	clientRegister   = make(chan *ClientConnection)
	clientUnregister = make(chan *ClientConnection)

	clientIDCounter int64

	roundController      *round.Controller
	roundControllerMutex sync.RWMutex
)

// SetController sets the round controller used by trade message handlers.
func SetController(c *round.Controller) {
	roundControllerMutex.Lock()
	defer roundControllerMutex.Unlock()
	roundController = c
	log.Println("✅ Round controller set for WebSocket trade handlers")
}

func getController() *round.Controller {
	roundControllerMutex.RLock()
	defer roundControllerMutex.RUnlock()
	return roundController
}

// Message types from client
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

func init() {
	// Start the event hub
	go runEventHub()
}

// runEventHub is the central message dispatcher
func runEventHub() {
	log.Println("🚀 Event hub started")

	for {
		select {
		case client := <-clientRegister:
			clientsMutex.Lock()
			clients[client] = true
			clientsMutex.Unlock()
			log.Printf("✅ Client registered: %s (Total: %d)", client.ID, len(clients))

		case client := <-clientUnregister:
			clientsMutex.Lock()
			if _, ok := clients[client]; ok {
				delete(clients, client)
				close(client.Send)
			}
			clientsMutex.Unlock()
			log.Printf("👋 Client unregistered: %s (Total: %d)", client.ID, len(clients))

		case message := <-roundBroadcast:
			broadcastToSubscribers("round", message)
		}
	}
}

// broadcastToSubscribers sends message to all clients subscribed to a channel
func broadcastToSubscribers(channel string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal message for %s: %v", channel, err)
		return
	}

	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	for client := range clients {
		client.mu.RLock()
		subscribed := client.Subscriptions[channel]
		client.mu.RUnlock()

		if subscribed {
			select {
			case client.Send <- data:
			default:
				// Client's send channel is full, skip
				log.Printf("⚠️  Client %s send buffer full, skipping message", client.ID)
			}
		}
	}
}

// HandleWS is the single WebSocket endpoint
func HandleWS(w http.ResponseWriter, r *http.Request) {
	log.Println("📥 WebSocket connection from:", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("❌ WebSocket upgrade failed:", err)
		return
	}

	client := &ClientConnection{
		ID:            generateClientID(),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, 256),
	}

	clientRegister <- client

	go client.writePump()
	go client.readPump()
}

// writePump sends messages from the Send channel to the WebSocket
func (c *ClientConnection) writePump() {
	defer func() {
		c.Conn.Close()
	}()

	for message := range c.Send {
		c.writeMutex.Lock()
		c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		err := c.Conn.WriteMessage(websocket.TextMessage, message)
		c.writeMutex.Unlock()

		if err != nil {
			log.Printf("❌ Write error for client %s: %v", c.ID, err)
			return
		}
	}
}

// readPump reads messages from the WebSocket and handles subscriptions/trades
func (c *ClientConnection) readPump() {
	defer func() {
		clientUnregister <- c
		c.Conn.Close()
	}()

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error for client %s: %v", c.ID, err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Printf("❌ Failed to parse message from client %s: %v", c.ID, err)
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes incoming client messages
func (c *ClientConnection) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		channel, _ := msg.Data["channel"].(string)
		if channel == "" {
			c.sendError("subscribe requires a channel")
			return
		}
		c.mu.Lock()
		c.Subscriptions[channel] = true
		c.mu.Unlock()
		log.Printf("📡 Client %s subscribed to: %s", c.ID, channel)

		c.sendInitialData(channel)

	case "unsubscribe":
		channel, _ := msg.Data["channel"].(string)
		c.mu.Lock()
		delete(c.Subscriptions, channel)
		c.mu.Unlock()
		log.Printf("📴 Client %s unsubscribed from: %s", c.ID, channel)

	case "open_position":
		c.handleOpenPosition(msg.Data)

	case "close_position":
		c.handleClosePosition(msg.Data)

	default:
		log.Printf("⚠️  Unknown message type from client %s: %s", c.ID, msg.Type)
	}
}

// sendInitialData sends current state when a client subscribes to a channel
func (c *ClientConnection) sendInitialData(channel string) {
	switch channel {
	case "round":
		history := GetRoundHistory()
		historyMsg := map[string]interface{}{
			"type":    "round_history",
			"history": history,
		}
		if err := c.writeJSON(historyMsg); err != nil {
			log.Printf("⚠️  Failed to send round history to client %s: %v", c.ID, err)
			return
		}

		// Snapshot of the live round so late joiners can render the chart
		if snapshot := currentRoundSnapshot(); snapshot != nil {
			if err := c.writeJSON(snapshot); err != nil {
				log.Printf("⚠️  Failed to send round snapshot to client %s: %v", c.ID, err)
				return
			}
		}
		log.Printf("📨 Client %s subscribed to round - sent %d history items", c.ID, len(history))
	}
}

// handleOpenPosition verifies and opens a trade on the live round.
func (c *ClientConnection) handleOpenPosition(data map[string]interface{}) {
	player, _ := data["player"].(string)
	dirStr, _ := data["direction"].(string)
	size, _ := data["size"].(float64)
	leverage, _ := data["leverage"].(float64)
	indexFloat, _ := data["candleIndex"].(float64)
	price, _ := data["price"].(float64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roundID, pos, err := OpenTrade(ctx, player, round.Direction(dirStr), size, leverage, int(indexFloat), price)
	if err != nil {
		log.Printf("⚠️  Open rejected for %s: %v", player, err)
		c.sendError(err.Error())
		return
	}

	c.writeJSON(map[string]interface{}{
		"type":     "position_opened",
		"roundId":  roundID,
		"position": pos,
	})
}

// handleClosePosition settles the client's open trade at their claimed candle.
func (c *ClientConnection) handleClosePosition(data map[string]interface{}) {
	player, _ := data["player"].(string)
	indexFloat, _ := data["candleIndex"].(float64)
	price, _ := data["price"].(float64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roundID, settlement, err := CloseTrade(ctx, player, int(indexFloat), price)
	if err != nil {
		log.Printf("⚠️  Close rejected for %s: %v", player, err)
		c.sendError(err.Error())
		return
	}

	c.writeJSON(map[string]interface{}{
		"type":       "position_closed",
		"roundId":    roundID,
		"settlement": settlement,
	})
}

func (c *ClientConnection) sendError(message string) {
	c.writeJSON(map[string]interface{}{
		"type":  "error",
		"error": message,
	})
}

// generateClientID creates a unique client ID
func generateClientID() string {
	id := atomic.AddInt64(&clientIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().Unix(), id)
}
