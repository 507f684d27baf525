package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload. The owner is always the caller.
type CreateTicketRequest struct {
	Subject     string `json:"subject" form:"subject"`
	Description string `json:"description" form:"description"`
	Category    string `json:"category" form:"category"`
	Priority    string `json:"priority" form:"priority"`
	Status      string `json:"status" form:"status"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

// TicketListQuery captures query filters.
type TicketListQuery struct {
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Category string `query:"category"`
	Page     int    `query:"page"`
}

// TicketResponse is the list and write view of a ticket.
type TicketResponse struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Subject        string                `json:"subject"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	AttachmentPath *string               `json:"attachment_path"`
	AttachmentURL  *string               `json:"attachment_url"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	User           *UserResponse         `json:"user,omitempty"`
}

// TicketDetailResponse adds the ticket's conversation and audit trail.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
	Chats    []ChatResponse    `json:"chats"`
	History  []HistoryResponse `json:"history"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID string                  `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    string                  `json:"old_value"`
	NewValue    string                  `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// TicketPageResponse is one page of tickets.
type TicketPageResponse struct {
	Data []TicketResponse `json:"data"`
	Meta PageMeta         `json:"meta"`
}

// NewTicketResponse maps a ticket; attachmentURL is derived by the caller.
func NewTicketResponse(ticket *domain.Ticket, attachmentURL *string) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		UserID:         ticket.OwnerID,
		Subject:        ticket.Subject,
		Description:    ticket.Description,
		Category:       ticket.Category,
		Priority:       ticket.Priority,
		Status:         ticket.Status,
		AttachmentPath: ticket.AttachmentPath,
		AttachmentURL:  attachmentURL,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		User:           NewUserResponse(ticket.Owner),
	}
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}
