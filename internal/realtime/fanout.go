package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

// ChatBroadcast is the data of a ChatMessageSent frame.
type ChatBroadcast struct {
	Chat       ChatLine `json:"chat"`
	SenderName string   `json:"sender_name"`
}

// ChatLine mirrors the REST chat view so clients can merge pushed and pulled lines.
type ChatLine struct {
	ID        string      `json:"id"`
	TicketID  string      `json:"ticket_id"`
	SenderID  string      `json:"sender_id"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    *ChatSender `json:"sender,omitempty"`
}

// ChatSender is the public part of the sender's account.
type ChatSender struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func newChatLine(msg domain.ChatMessage) ChatLine {
	line := ChatLine{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		SenderID:  msg.SenderID,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Sender != nil {
		line.Sender = &ChatSender{
			ID:    msg.Sender.ID,
			Name:  msg.Sender.Name,
			Email: msg.Sender.Email,
			Role:  msg.Sender.Role,
		}
	}
	return line
}

// ChatFanOut turns chat_message_sent events into ChatMessageSent broadcasts.
func ChatFanOut(broadcaster Broadcaster) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.ChatMessageSentPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		data, err := json.Marshal(ChatBroadcast{
			Chat:       newChatLine(payload.Chat),
			SenderName: payload.SenderName,
		})
		if err != nil {
			return fmt.Errorf("encode chat broadcast: %w", err)
		}
		return broadcaster.Broadcast(ctx, Message{
			Channel:         ChannelName(payload.Chat.TicketID),
			Event:           EventChatMessageSent,
			ExcludeSocketID: payload.ExcludeSocketID,
			Data:            data,
		})
	}
}
