package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
)

const maxMessageLength = 5000

// MessageDependencies bundles collaborators for comment and chat services.
type MessageDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	ChatRepo    repository.ChatRepository
	Gate        policy.Gate
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

func (d MessageDependencies) gate() policy.Gate {
	if d.Gate == nil {
		return policy.NewTicketGate()
	}
	return d.Gate
}

func validateMessage(message string) error {
	errs := fieldErrors{}
	requireText(errs, "message", message, maxMessageLength)
	return errs.err()
}

// CommentService manages threaded ticket comments.
type CommentService struct {
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	gate     policy.Gate
	events   eventPublisher
}

// NewCommentService constructs the service.
func NewCommentService(deps MessageDependencies) *CommentService {
	return &CommentService{
		tickets:  deps.TicketRepo,
		comments: deps.CommentRepo,
		gate:     deps.gate(),
		events:   newEventPublisher(deps.Dispatcher, deps.Logger),
	}
}

// List returns the ticket's comments, newest first.
func (s *CommentService) List(ctx context.Context, user *domain.User, ticketID string) ([]domain.Comment, error) {
	ticket, err := loadAuthorizedTicket(ctx, s.tickets, s.gate, user, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	return comments, nil
}

// Create appends a comment authored by user.
func (s *CommentService) Create(ctx context.Context, user *domain.User, ticketID, message string) (*domain.Comment, error) {
	ticket, err := loadAuthorizedTicket(ctx, s.tickets, s.gate, user, ticketID)
	if err != nil {
		return nil, err
	}
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: user.ID,
		Message:  strings.TrimSpace(message),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	comment.Author = publicUser(user)

	s.events.publish(ctx, events.NewEvent(events.EventCommentAdded, ticket.ID, user.ID, events.CommentAddedPayload{
		CommentID:   comment.ID,
		OwnerID:     ticket.OwnerID,
		BodyPreview: stringPreview(comment.Message, 140),
	}))
	return comment, nil
}

// ChatService manages live chat messages and hands them to the realtime fan-out.
type ChatService struct {
	tickets repository.TicketRepository
	chats   repository.ChatRepository
	gate    policy.Gate
	events  eventPublisher
}

// NewChatService constructs the service.
func NewChatService(deps MessageDependencies) *ChatService {
	return &ChatService{
		tickets: deps.TicketRepo,
		chats:   deps.ChatRepo,
		gate:    deps.gate(),
		events:  newEventPublisher(deps.Dispatcher, deps.Logger),
	}
}

// List returns the ticket's chat messages, newest first.
func (s *ChatService) List(ctx context.Context, user *domain.User, ticketID string) ([]domain.ChatMessage, error) {
	ticket, err := loadAuthorizedTicket(ctx, s.tickets, s.gate, user, ticketID)
	if err != nil {
		return nil, err
	}
	chats, err := s.chats.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	return chats, nil
}

// Send persists a chat line from user and broadcasts it to every other socket on the
// ticket channel. originSocketID names the sender's own socket and may be empty.
// Broadcast failures never fail the send.
func (s *ChatService) Send(ctx context.Context, user *domain.User, ticketID, message, originSocketID string) (*domain.ChatMessage, error) {
	ticket, err := loadAuthorizedTicket(ctx, s.tickets, s.gate, user, ticketID)
	if err != nil {
		return nil, err
	}
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		TicketID: ticket.ID,
		SenderID: user.ID,
		Message:  strings.TrimSpace(message),
	}
	if err := s.chats.Create(ctx, msg); err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	msg.Sender = publicUser(user)

	s.events.publish(ctx, events.NewEvent(events.EventChatMessageSent, ticket.ID, user.ID, events.ChatMessageSentPayload{
		Chat:            *msg,
		SenderName:      user.Name,
		ExcludeSocketID: strings.TrimSpace(originSocketID),
	}))
	return msg, nil
}
