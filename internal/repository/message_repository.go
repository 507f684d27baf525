package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CommentRepository manages threaded ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	// ListByTicket returns comments newest first with their authors attached.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

// ChatRepository manages live chat messages.
type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListByTicket returns messages newest first with their senders attached.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, user_id, message)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Message,
	).Scan(&comment.ID, &comment.CreatedAt)
	return translateError(err)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.ticket_id, c.user_id, c.message, c.created_at,
               u.id, u.name, u.email, u.role, u.created_at, u.updated_at
        FROM comments c JOIN users u ON u.id = c.user_id
        WHERE c.ticket_id=$1 ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		var author domain.User
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Message,
			&comment.CreatedAt,
			&author.ID,
			&author.Name,
			&author.Email,
			&author.Role,
			&author.CreatedAt,
			&author.UpdatedAt,
		); err != nil {
			return nil, err
		}
		comment.Author = &author
		result = append(result, comment)
	}
	return result, translateError(rows.Err())
}

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository builds repository.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chats (ticket_id, sender_id, message)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Message,
	).Scan(&msg.ID, &msg.CreatedAt)
	return translateError(err)
}

func (r *chatRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	const query = `
        SELECT m.id, m.ticket_id, m.sender_id, m.message, m.created_at,
               u.id, u.name, u.email, u.role, u.created_at, u.updated_at
        FROM chats m JOIN users u ON u.id = m.sender_id
        WHERE m.ticket_id=$1 ORDER BY m.created_at DESC, m.id DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.ChatMessage{}
	for rows.Next() {
		var msg domain.ChatMessage
		var sender domain.User
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.Message,
			&msg.CreatedAt,
			&sender.ID,
			&sender.Name,
			&sender.Email,
			&sender.Role,
			&sender.CreatedAt,
			&sender.UpdatedAt,
		); err != nil {
			return nil, err
		}
		msg.Sender = &sender
		result = append(result, msg)
	}
	return result, translateError(rows.Err())
}
