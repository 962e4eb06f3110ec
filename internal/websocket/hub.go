package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active clients and routes messages to them by topic.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Clients grouped by the feed they follow.
	subscriptions map[string]map[*Client]bool

	topicMessages  chan topicMessage
	directMessages chan directMessage
	done           chan struct{}
}

type directMessage struct {
	client  *Client
	payload []byte
}

type topicMessage struct {
	topic   string
	payload []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		clients:        make(map[*Client]bool),
		subscriptions:  make(map[string]map[*Client]bool),
		topicMessages:  make(chan topicMessage),
		directMessages: make(chan directMessage),
		done:           make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if client.Topic != "" {
				h.addSubscription(client, client.Topic)
			}
			log.Info().Int("total_clients", len(h.clients)).Str("topic", client.Topic).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.topicMessages:
			for client := range h.subscriptions[msg.topic] {
				h.deliver(client, msg.payload)
			}
		case msg := <-h.directMessages:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.payload)
			}
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastTo sends a message to all clients subscribed to topic. It is safe
// to call from any goroutine while Run is active.
func (h *Hub) BroadcastTo(topic string, message []byte) {
	select {
	case h.topicMessages <- topicMessage{topic: topic, payload: message}:
	case <-h.done:
	}
}

// SendTo queues a message for a single client. Messages for clients that
// already left are discarded.
func (h *Hub) SendTo(client *Client, message []byte) {
	select {
	case h.directMessages <- directMessage{client: client, payload: message}:
	case <-h.done:
	}
}

// Add registers client. A client added after Stop is closed right away
// instead of blocking the caller.
func (h *Hub) Add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		close(client.Send)
		return false
	}
}

// Remove unregisters client. It does not block once the hub has stopped.
func (h *Hub) Remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.removeSubscription(client)
	close(client.Send)
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
