package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateMessageRequest payload shared by comments and chats.
type CreateMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// ChannelAuthRequest is sent by Pusher-style clients before joining a private channel.
type ChannelAuthRequest struct {
	SocketID    string `json:"socket_id" form:"socket_id"`
	ChannelName string `json:"channel_name" form:"channel_name"`
}

// CommentResponse is the public view of a comment.
type CommentResponse struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticket_id"`
	UserID    string        `json:"user_id"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	User      *UserResponse `json:"user,omitempty"`
}

// ChatResponse is the public view of a chat line.
type ChatResponse struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticket_id"`
	SenderID  string        `json:"sender_id"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	Sender    *UserResponse `json:"sender,omitempty"`
}

func NewCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		UserID:    comment.AuthorID,
		Message:   comment.Message,
		CreatedAt: comment.CreatedAt,
		User:      NewUserResponse(comment.Author),
	}
}

func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}

func NewChatResponse(msg *domain.ChatMessage) ChatResponse {
	return ChatResponse{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		SenderID:  msg.SenderID,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
		Sender:    NewUserResponse(msg.Sender),
	}
}

func NewChatResponses(msgs []domain.ChatMessage) []ChatResponse {
	out := make([]ChatResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewChatResponse(&msgs[i]))
	}
	return out
}
