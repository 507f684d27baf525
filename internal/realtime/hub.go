package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	channelPrefix        = "ticket."
	privateChannelPrefix = "private-"

	// EventConnectionEstablished is the first frame on every socket.
	EventConnectionEstablished = "connection_established"
	// EventChatMessageSent announces a new chat line on a ticket channel.
	EventChatMessageSent = "ChatMessageSent"
)

// ChannelName returns the channel for ticketID.
func ChannelName(ticketID string) string {
	return channelPrefix + ticketID
}

// ParseChannelName extracts the ticket id from "ticket.{id}" or "private-ticket.{id}".
func ParseChannelName(name string) (string, bool) {
	name = strings.TrimPrefix(name, privateChannelPrefix)
	if !strings.HasPrefix(name, channelPrefix) {
		return "", false
	}
	ticketID := strings.TrimPrefix(name, channelPrefix)
	if ticketID == "" || strings.ContainsAny(ticketID, ".* ") {
		return "", false
	}
	return ticketID, true
}

// Message is a broadcast addressed to one channel. It is also the Redis wire format.
type Message struct {
	Channel         string          `json:"channel"`
	Event           string          `json:"event"`
	ExcludeSocketID string          `json:"exclude_socket_id,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// Frame is what a socket receives.
type Frame struct {
	Event    string          `json:"event"`
	Channel  string          `json:"channel,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Recorder observes hub activity.
type Recorder interface {
	SocketOpened()
	SocketClosed()
	RecordRealtimeEvent(result string, n int)
}

// Subscriber is one socket listening on one ticket channel.
type Subscriber struct {
	SocketID string
	Channel  string
	send     chan Frame
}

// Frames yields frames for the socket. It is closed on Unsubscribe.
func (s *Subscriber) Frames() <-chan Frame {
	return s.send
}

// Hub tracks local sockets per channel. Delivery to a full socket buffer drops the frame.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Subscriber
	buffer   int
	recorder Recorder
}

// NewHub creates a hub whose sockets buffer up to buffer frames.
func NewHub(buffer int, recorder Recorder) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		channels: make(map[string]map[string]*Subscriber),
		buffer:   buffer,
		recorder: recorder,
	}
}

// Subscribe registers a new socket on the ticket's channel.
func (h *Hub) Subscribe(ticketID string) *Subscriber {
	sub := &Subscriber{
		SocketID: uuid.NewString(),
		Channel:  ChannelName(ticketID),
		send:     make(chan Frame, h.buffer),
	}
	h.mu.Lock()
	members, ok := h.channels[sub.Channel]
	if !ok {
		members = make(map[string]*Subscriber)
		h.channels[sub.Channel] = members
	}
	members[sub.SocketID] = sub
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.SocketOpened()
	}
	return sub
}

// Unsubscribe removes sub and closes its frame channel. It is safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	members, ok := h.channels[sub.Channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := members[sub.SocketID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(members, sub.SocketID)
	if len(members) == 0 {
		delete(h.channels, sub.Channel)
	}
	close(sub.send)
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.SocketClosed()
	}
}

// Deliver fans msg out to every local socket on its channel except the excluded one.
func (h *Hub) Deliver(msg Message) (delivered, dropped int) {
	frame := Frame{Event: msg.Event, Channel: msg.Channel, Data: msg.Data}

	h.mu.RLock()
	for socketID, sub := range h.channels[msg.Channel] {
		if socketID == msg.ExcludeSocketID {
			continue
		}
		select {
		case sub.send <- frame:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if h.recorder != nil {
		h.recorder.RecordRealtimeEvent("delivered", delivered)
		h.recorder.RecordRealtimeEvent("dropped", dropped)
	}
	return delivered, dropped
}

// Connections returns the number of local sockets on channel.
func (h *Hub) Connections(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
