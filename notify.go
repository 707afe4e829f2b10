package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ReceiptBroadcaster fans out every completed receipt to a set of
// connected WebSocket clients subscribed to /ledger/stream.
type ReceiptBroadcaster struct {
	upgrader websocket.Upgrader
	logger   Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan ReceiptBody
}

// NewReceiptBroadcaster returns a broadcaster ready to accept subscribers.
func NewReceiptBroadcaster(logger Logger) *ReceiptBroadcaster {
	return &ReceiptBroadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger.WithName("ledger-stream"),
		clients: make(map[*websocket.Conn]chan ReceiptBody),
	}
}

// Broadcast delivers receipt to every currently subscribed client. Slow
// or unresponsive clients are dropped rather than allowed to back up
// the broadcast for everyone else.
func (b *ReceiptBroadcaster) Broadcast(receipt ReceiptBody) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn, ch := range b.clients {
		select {
		case ch <- receipt:
		default:
			b.logger.Warn("dropping slow ledger-stream subscriber")
			delete(b.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

// HandleStream upgrades the HTTP request to a WebSocket connection and
// streams every receipt produced from this point on, until the client
// disconnects.
func (b *ReceiptBroadcaster) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("failed to upgrade ledger-stream connection", "error", err)
		return
	}

	ch := make(chan ReceiptBody, 16)
	b.mu.Lock()
	b.clients[conn] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client-sent frames so the read side of the
	// connection doesn't block out the close handshake.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for receipt := range ch {
		if err := conn.WriteJSON(receipt); err != nil {
			return
		}
	}
}
