package websocket

import (
	"encoding/json"
	"sync"

	"adbudget/internal/services"
)

// Topics a client can subscribe to on /ws/alarms.
const (
	TopicPacing    = "pacing"
	TopicIntegrity = "integrity"
)

// Event is the envelope every broadcast message is wrapped in.
type Event struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Hub fans audit alarms out to subscribed operator dashboards. Slow
// clients are skipped rather than blocking the audit.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) Unregister(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		return
	}
	delete(h.clients[topic], client)
	if len(h.clients[topic]) == 0 {
		delete(h.clients, topic)
	}
}

// PacingAlarms implements the job scheduler's alarm sink.
func (h *Hub) PacingAlarms(alarms []services.PacingAlarm) {
	for _, alarm := range alarms {
		h.broadcast(TopicPacing, alarm)
	}
}

// IntegrityAlarms implements the job scheduler's alarm sink.
func (h *Hub) IntegrityAlarms(alarms []services.IntegrityAlarm) {
	for _, alarm := range alarms {
		h.broadcast(TopicIntegrity, alarm)
	}
}

func (h *Hub) broadcast(topic string, data any) {
	payload, _ := json.Marshal(Event{Topic: topic, Data: data})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[topic] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
