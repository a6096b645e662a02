package feed

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gueststay/internal/eventstore"
)

const sendBuffer = 16

// Message is what subscribers of an account receive for each appended event.
type Message struct {
	GuestStayAccountID string          `json:"guestStayAccountId"`
	Version            int64           `json:"version"`
	Type               string          `json:"type"`
	Data               json.RawMessage `json:"data"`
	RecordedAt         time.Time       `json:"recordedAt"`
}

type client struct {
	accountID string
	conn      *websocket.Conn
	send      chan Message
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub fans appended events out to the connections watching each account.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[string]map[*client]struct{}
	logger      *slog.Logger
	onChange    func(total int)
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[*client]struct{}),
		logger:      logger,
	}
}

// OnClientsChanged registers a callback invoked with the total connection
// count after every register and unregister.
func (h *Hub) OnClientsChanged(fn func(total int)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onChange = fn
}

func (h *Hub) register(c *client) {
	h.mutex.Lock()
	subs, ok := h.subscribers[c.accountID]
	if !ok {
		subs = make(map[*client]struct{})
		h.subscribers[c.accountID] = subs
	}
	subs[c] = struct{}{}
	total, fn := h.totalLocked(), h.onChange
	h.mutex.Unlock()

	if fn != nil {
		fn(total)
	}
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	if subs, ok := h.subscribers[c.accountID]; ok {
		if _, exists := subs[c]; exists {
			delete(subs, c)
			c.close()
		}
		if len(subs) == 0 {
			delete(h.subscribers, c.accountID)
		}
	}
	total, fn := h.totalLocked(), h.onChange
	h.mutex.Unlock()

	if fn != nil {
		fn(total)
	}
}

// Publish implements the command service's publisher. Subscribers whose
// buffer is full are disconnected rather than blocking the caller.
func (h *Hub) Publish(streamID string, events []eventstore.RecordedEvent) {
	var slow []*client

	h.mutex.RLock()
	subs := h.subscribers[streamID]
	for _, evt := range events {
		msg := Message{
			GuestStayAccountID: streamID,
			Version:            evt.Version,
			Type:               evt.Type,
			Data:               json.RawMessage(evt.Data),
			RecordedAt:         evt.RecordedAt,
		}
		for c := range subs {
			select {
			case c.send <- msg:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		h.logger.Warn("feed subscriber too slow, dropping", slog.String("account_id", streamID))
		h.unregister(c)
	}
}

// Count returns the number of connections watching accountID.
func (h *Hub) Count(accountID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers[accountID])
}

func (h *Hub) GetOnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.totalLocked()
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for accountID, subs := range h.subscribers {
		for c := range subs {
			c.close()
			_ = c.conn.Close()
		}
		delete(h.subscribers, accountID)
	}
}
