package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsPerPage is the fixed listing page size.
const TicketsPerPage = 15

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	chats       repository.ChatRepository
	history     repository.TicketHistoryRepository
	attachments *storage.AttachmentStore
	gate        policy.Gate
	events      eventPublisher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	ChatRepo    repository.ChatRepository
	HistoryRepo repository.TicketHistoryRepository
	Attachments *storage.AttachmentStore
	Gate        policy.Gate
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload. The owner is always the caller.
type TicketCreateInput struct {
	Subject     string
	Description string
	Category    string
	Priority    string
	Status      string
}

// TicketUpdateInput describes a partial update. Nil fields are left unchanged.
type TicketUpdateInput struct {
	Subject     *string
	Description *string
	Category    *string
	Priority    *string
	Status      *string
}

// TicketListFilter describes listing filters. Empty values are not applied.
type TicketListFilter struct {
	Status   string
	Priority string
	Category string
	Page     int
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Data        []T
	CurrentPage int
	PerPage     int
	Total       int
	LastPage    int
}

// TicketDetail is a ticket with its conversation and audit trail.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Comments []domain.Comment
	Chats    []domain.ChatMessage
	History  []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	gate := deps.Gate
	if gate == nil {
		gate = policy.NewTicketGate()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		chats:       deps.ChatRepo,
		history:     deps.HistoryRepo,
		attachments: deps.Attachments,
		gate:        gate,
		events:      newEventPublisher(deps.Dispatcher, logger),
		logger:      logger,
	}
}

// List returns a page of tickets visible to user. Customers only ever see their own.
func (s *TicketService) List(ctx context.Context, user *domain.User, filter TicketListFilter) (Page[domain.Ticket], error) {
	if user == nil {
		return Page[domain.Ticket]{}, apperrors.NewUnauthorized("authentication required")
	}

	repoFilter := repository.TicketFilter{}
	if !user.IsAdmin() {
		repoFilter.OwnerID = &user.ID
	}

	errs := fieldErrors{}
	if filter.Status != "" {
		status := domain.TicketStatus(filter.Status)
		if !status.Valid() {
			errs.add("status", "The selected status is invalid.")
		}
		repoFilter.Status = &status
	}
	if filter.Priority != "" {
		priority := domain.TicketPriority(filter.Priority)
		if !priority.Valid() {
			errs.add("priority", "The selected priority is invalid.")
		}
		repoFilter.Priority = &priority
	}
	if filter.Category != "" {
		category := filter.Category
		repoFilter.Category = &category
	}
	if err := errs.err(); err != nil {
		return Page[domain.Ticket]{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	repoFilter.Limit = TicketsPerPage
	repoFilter.Offset = (page - 1) * TicketsPerPage

	tickets, total, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return Page[domain.Ticket]{}, mapRepoError(err, "ticket")
	}
	for i := range tickets {
		tickets[i].Owner = publicUser(tickets[i].Owner)
	}

	lastPage := (total + TicketsPerPage - 1) / TicketsPerPage
	if lastPage < 1 {
		lastPage = 1
	}
	return Page[domain.Ticket]{
		Data:        tickets,
		CurrentPage: page,
		PerPage:     TicketsPerPage,
		Total:       total,
		LastPage:    lastPage,
	}, nil
}

// Create files a ticket owned by user. upload may be nil.
func (s *TicketService) Create(ctx context.Context, user *domain.User, input TicketCreateInput, upload *storage.Upload) (*domain.Ticket, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	errs := fieldErrors{}
	requireText(errs, "subject", input.Subject, 255)
	requireText(errs, "description", input.Description, 0)
	requireText(errs, "category", input.Category, 255)

	priority := domain.TicketPriorityMedium
	if input.Priority != "" {
		priority = domain.TicketPriority(input.Priority)
		if !priority.Valid() {
			errs.add("priority", "The selected priority is invalid.")
		}
	}
	status := domain.TicketStatusOpen
	if input.Status != "" {
		status = domain.TicketStatus(input.Status)
		if !status.Valid() {
			errs.add("status", "The selected status is invalid.")
		}
	}
	if upload != nil {
		if err := s.attachments.Validate(upload); err != nil {
			if err := errs.merge(err); err != nil {
				return nil, err
			}
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		OwnerID:     user.ID,
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    priority,
		Status:      status,
	}

	if upload != nil {
		path, err := s.attachments.Store(ctx, upload)
		if err != nil {
			return nil, err
		}
		ticket.AttachmentPath = &path
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if ticket.AttachmentPath != nil {
			s.discardAttachment(ctx, *ticket.AttachmentPath)
		}
		return nil, mapRepoError(err, "ticket")
	}
	ticket.Owner = publicUser(user)

	s.events.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, user.ID, events.TicketCreatedPayload{
		OwnerID:  ticket.OwnerID,
		Subject:  ticket.Subject,
		Category: ticket.Category,
		Priority: ticket.Priority,
	}))
	return ticket, nil
}

// Get returns a ticket with its comments and chats (newest first) and history.
func (s *TicketService) Get(ctx context.Context, user *domain.User, id string) (*TicketDetail, error) {
	ticket, err := s.authorized(ctx, user, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	chats, err := s.chats.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	return &TicketDetail{Ticket: ticket, Comments: comments, Chats: chats, History: history}, nil
}

// Update applies a partial update. A new upload replaces the previous attachment.
func (s *TicketService) Update(ctx context.Context, user *domain.User, id string, input TicketUpdateInput, upload *storage.Upload) (*domain.Ticket, error) {
	ticket, err := s.authorized(ctx, user, id)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if input.Subject != nil {
		requireText(errs, "subject", *input.Subject, 255)
	}
	if input.Description != nil {
		requireText(errs, "description", *input.Description, 0)
	}
	if input.Category != nil {
		requireText(errs, "category", *input.Category, 255)
	}
	var newPriority *domain.TicketPriority
	if input.Priority != nil {
		p := domain.TicketPriority(*input.Priority)
		if !p.Valid() {
			errs.add("priority", "The selected priority is invalid.")
		}
		newPriority = &p
	}
	var newStatus *domain.TicketStatus
	if input.Status != nil {
		st := domain.TicketStatus(*input.Status)
		if !st.Valid() {
			errs.add("status", "The selected status is invalid.")
		}
		newStatus = &st
	}
	if upload != nil {
		if err := s.attachments.Validate(upload); err != nil {
			if err := errs.merge(err); err != nil {
				return nil, err
			}
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	var storedPath string
	if upload != nil {
		if ticket.AttachmentPath != nil {
			if err := s.attachments.Remove(ctx, *ticket.AttachmentPath); err != nil {
				return nil, err
			}
		}
		path, err := s.attachments.Store(ctx, upload)
		if err != nil {
			return nil, err
		}
		storedPath = path
		ticket.AttachmentPath = &path
	}

	if input.Subject != nil {
		ticket.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}
	oldStatus, oldPriority := ticket.Status, ticket.Priority
	if newStatus != nil {
		ticket.Status = *newStatus
	}
	if newPriority != nil {
		ticket.Priority = *newPriority
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		if storedPath != "" {
			s.discardAttachment(ctx, storedPath)
		}
		return nil, mapRepoError(err, "ticket")
	}

	if ticket.Status != oldStatus {
		s.recordChange(ctx, ticket.ID, user.ID, domain.ChangeTypeStatus, string(oldStatus), string(ticket.Status))
		s.events.publish(ctx, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, user.ID, events.TicketStatusChangedPayload{
			OwnerID:   ticket.OwnerID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	if ticket.Priority != oldPriority {
		s.recordChange(ctx, ticket.ID, user.ID, domain.ChangeTypePriority, string(oldPriority), string(ticket.Priority))
		s.events.publish(ctx, events.NewEvent(events.EventTicketPriorityChanged, ticket.ID, user.ID, events.TicketPriorityChangedPayload{
			OwnerID:     ticket.OwnerID,
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
		}))
	}
	return ticket, nil
}

// Delete removes the attachment file, then the ticket and everything hanging off it.
func (s *TicketService) Delete(ctx context.Context, user *domain.User, id string) error {
	ticket, err := s.authorized(ctx, user, id)
	if err != nil {
		return err
	}
	if ticket.AttachmentPath != nil {
		if err := s.attachments.Remove(ctx, *ticket.AttachmentPath); err != nil {
			return err
		}
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return mapRepoError(err, "ticket")
	}
	s.events.publish(ctx, events.NewEvent(events.EventTicketDeleted, ticket.ID, user.ID, events.TicketDeletedPayload{
		OwnerID: ticket.OwnerID,
		Subject: ticket.Subject,
	}))
	return nil
}

// AttachmentURL derives the public URL of the ticket's attachment, if any.
func (s *TicketService) AttachmentURL(ticket *domain.Ticket) *string {
	if s.attachments == nil || ticket == nil {
		return nil
	}
	return s.attachments.URL(ticket.AttachmentPath)
}

// authorized loads ticket id and runs the gate. Missing tickets are reported before the gate.
func (s *TicketService) authorized(ctx context.Context, user *domain.User, id string) (*domain.Ticket, error) {
	return loadAuthorizedTicket(ctx, s.tickets, s.gate, user, id)
}

func (s *TicketService) recordChange(ctx context.Context, ticketID, actorID string, changeType domain.TicketChangeType, oldValue, newValue string) {
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("ticket history write failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err),
		)
	}
}

func (s *TicketService) discardAttachment(ctx context.Context, path string) {
	if err := s.attachments.Remove(ctx, path); err != nil {
		s.logger.Warn("orphaned attachment not removed", zap.String("path", path), zap.Error(err))
	}
}

func loadAuthorizedTicket(ctx context.Context, tickets repository.TicketRepository, gate policy.Gate, user *domain.User, id string) (*domain.Ticket, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	if err := gate.Authorize(user, ticket); err != nil {
		return nil, err
	}
	ticket.Owner = publicUser(ticket.Owner)
	return ticket, nil
}
