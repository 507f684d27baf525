package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MemoryStore keeps every table in process memory. It mirrors the Postgres
// repositories, including cascade deletes, and backs tests and REPOSITORY_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]*memUser
	tickets  map[string]*memTicket
	comments []memComment
	chats    []memChat
	history  []domain.TicketHistory
}

type memUser struct {
	user domain.User
}

type memTicket struct {
	ticket domain.Ticket
	seq    int64
}

type memComment struct {
	comment domain.Comment
	seq     int64
}

type memChat struct {
	msg domain.ChatMessage
	seq int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*memUser),
		tickets: make(map[string]*memTicket),
	}
}

// Users returns a UserRepository view.
func (m *MemoryStore) Users() UserRepository { return memUserRepo{m} }

// Tickets returns a TicketRepository view.
func (m *MemoryStore) Tickets() TicketRepository { return memTicketRepo{m} }

// Comments returns a CommentRepository view.
func (m *MemoryStore) Comments() CommentRepository { return memCommentRepo{m} }

// Chats returns a ChatRepository view.
func (m *MemoryStore) Chats() ChatRepository { return memChatRepo{m} }

// History returns a TicketHistoryRepository view.
func (m *MemoryStore) History() TicketHistoryRepository { return memHistoryRepo{m} }

func (m *MemoryStore) nextSeq() int64 {
	m.seq++
	return m.seq
}

// userRef returns a copy of the stored user without its password hash. Caller holds the lock.
func (m *MemoryStore) userRef(id string) *domain.User {
	stored, ok := m.users[id]
	if !ok {
		return nil
	}
	user := stored.user
	user.PasswordHash = ""
	return &user
}

type memUserRepo struct{ m *MemoryStore }

func (r memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if strings.EqualFold(existing.user.Email, user.Email) {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.m.users[user.ID] = &memUser{user: *user}
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	stored, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := stored.user
	return &user, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, stored := range r.m.users {
		if stored.user.Email == email {
			user := stored.user
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

type memTicketRepo struct{ m *MemoryStore }

func (r memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[ticket.OwnerID]; !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	stored.Owner = nil
	r.m.tickets[ticket.ID] = &memTicket{ticket: stored, seq: r.m.nextSeq()}
	return nil
}

func (r memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	ticket.UpdatedAt = time.Now().UTC()
	stored.ticket.Subject = ticket.Subject
	stored.ticket.Description = ticket.Description
	stored.ticket.Category = ticket.Category
	stored.ticket.Priority = ticket.Priority
	stored.ticket.Status = ticket.Status
	stored.ticket.AttachmentPath = copyString(ticket.AttachmentPath)
	stored.ticket.UpdatedAt = ticket.UpdatedAt
	return nil
}

func (r memTicketRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.tickets, id)

	comments := r.m.comments[:0]
	for _, c := range r.m.comments {
		if c.comment.TicketID != id {
			comments = append(comments, c)
		}
	}
	r.m.comments = comments

	chats := r.m.chats[:0]
	for _, c := range r.m.chats {
		if c.msg.TicketID != id {
			chats = append(chats, c)
		}
	}
	r.m.chats = chats

	history := r.m.history[:0]
	for _, h := range r.m.history {
		if h.TicketID != id {
			history = append(history, h)
		}
	}
	r.m.history = history
	return nil
}

func (r memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	stored, ok := r.m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.materialize(stored), nil
}

func (r memTicketRepo) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	matched := make([]*memTicket, 0, len(r.m.tickets))
	for _, stored := range r.m.tickets {
		t := stored.ticket
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		matched = append(matched, stored)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 15
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]domain.Ticket, 0, end-offset)
	for _, stored := range matched[offset:end] {
		page = append(page, *r.materialize(stored))
	}
	return page, total, nil
}

// materialize copies a stored ticket and attaches its owner. Caller holds the lock.
func (r memTicketRepo) materialize(stored *memTicket) *domain.Ticket {
	ticket := stored.ticket
	ticket.AttachmentPath = copyString(stored.ticket.AttachmentPath)
	ticket.Owner = r.m.userRef(ticket.OwnerID)
	return &ticket
}

type memCommentRepo struct{ m *MemoryStore }

func (r memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[comment.TicketID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.m.users[comment.AuthorID]; !ok {
		return ErrNotFound
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()
	stored := *comment
	stored.Author = nil
	r.m.comments = append(r.m.comments, memComment{comment: stored, seq: r.m.nextSeq()})
	return nil
}

func (r memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := []domain.Comment{}
	for i := len(r.m.comments) - 1; i >= 0; i-- {
		stored := r.m.comments[i]
		if stored.comment.TicketID != ticketID {
			continue
		}
		comment := stored.comment
		comment.Author = r.m.userRef(comment.AuthorID)
		result = append(result, comment)
	}
	return result, nil
}

type memChatRepo struct{ m *MemoryStore }

func (r memChatRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[msg.TicketID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.m.users[msg.SenderID]; !ok {
		return ErrNotFound
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	stored := *msg
	stored.Sender = nil
	r.m.chats = append(r.m.chats, memChat{msg: stored, seq: r.m.nextSeq()})
	return nil
}

func (r memChatRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ChatMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := []domain.ChatMessage{}
	for i := len(r.m.chats) - 1; i >= 0; i-- {
		stored := r.m.chats[i]
		if stored.msg.TicketID != ticketID {
			continue
		}
		msg := stored.msg
		msg.Sender = r.m.userRef(msg.SenderID)
		result = append(result, msg)
	}
	return result, nil
}

type memHistoryRepo struct{ m *MemoryStore }

func (r memHistoryRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[history.TicketID]; !ok {
		return ErrNotFound
	}
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now().UTC()
	r.m.history = append(r.m.history, *history)
	return nil
}

func (r memHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := []domain.TicketHistory{}
	for _, h := range r.m.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
