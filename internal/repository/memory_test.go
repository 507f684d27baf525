package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func seedUser(t *testing.T, store *MemoryStore, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Name: "User " + email, Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func seedTicket(t *testing.T, store *MemoryStore, ownerID, subject string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		OwnerID:     ownerID,
		Subject:     subject,
		Description: "details",
		Category:    "billing",
		Priority:    domain.TicketPriorityLow,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestMemoryUsersRejectDuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "a@example.com", domain.RoleCustomer)

	err := store.Users().Create(context.Background(), &domain.User{Email: "A@example.com", Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Users().GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTicketListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	bob := seedUser(t, store, "bob@example.com", domain.RoleCustomer)

	var aliceTickets []*domain.Ticket
	for i := 0; i < 17; i++ {
		aliceTickets = append(aliceTickets, seedTicket(t, store, alice.ID, "alice"))
	}
	seedTicket(t, store, bob.ID, "bob")

	page, total, err := store.Tickets().List(ctx, TicketFilter{OwnerID: &alice.ID, Limit: 15})
	require.NoError(t, err)
	assert.Equal(t, 17, total)
	require.Len(t, page, 15)
	assert.Equal(t, aliceTickets[16].ID, page[0].ID, "newest first")
	require.NotNil(t, page[0].Owner)
	assert.Equal(t, alice.Email, page[0].Owner.Email)
	assert.Empty(t, page[0].Owner.PasswordHash)

	page, total, err = store.Tickets().List(ctx, TicketFilter{OwnerID: &alice.ID, Limit: 15, Offset: 15})
	require.NoError(t, err)
	assert.Equal(t, 17, total)
	assert.Len(t, page, 2)

	page, total, err = store.Tickets().List(ctx, TicketFilter{Limit: 15, Offset: 30})
	require.NoError(t, err)
	assert.Equal(t, 18, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)

	status := domain.TicketStatusResolved
	aliceTickets[0].Status = status
	require.NoError(t, store.Tickets().Update(ctx, aliceTickets[0]))
	page, total, err = store.Tickets().List(ctx, TicketFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, aliceTickets[0].ID, page[0].ID)
}

func TestMemoryTicketDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := seedUser(t, store, "owner@example.com", domain.RoleCustomer)
	keep := seedTicket(t, store, owner.ID, "keep")
	drop := seedTicket(t, store, owner.ID, "drop")

	for _, ticket := range []*domain.Ticket{keep, drop} {
		require.NoError(t, store.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, AuthorID: owner.ID, Message: "c"}))
		require.NoError(t, store.Chats().Create(ctx, &domain.ChatMessage{TicketID: ticket.ID, SenderID: owner.ID, Message: "m"}))
		require.NoError(t, store.History().Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID, ChangedByID: owner.ID, ChangeType: domain.ChangeTypeStatus, OldValue: "open", NewValue: "closed",
		}))
	}

	require.NoError(t, store.Tickets().Delete(ctx, drop.ID))
	assert.ErrorIs(t, store.Tickets().Delete(ctx, drop.ID), ErrNotFound)

	_, err := store.Tickets().GetByID(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	comments, err := store.Comments().ListByTicket(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	chats, err := store.Chats().ListByTicket(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)
	history, err := store.History().ListByTicket(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	comments, err = store.Comments().ListByTicket(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestMemoryMessagesNewestFirstWithAuthor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := seedUser(t, store, "owner@example.com", domain.RoleCustomer)
	ticket := seedTicket(t, store, owner.ID, "chat")

	for _, text := range []string{"first", "second"} {
		require.NoError(t, store.Chats().Create(ctx, &domain.ChatMessage{TicketID: ticket.ID, SenderID: owner.ID, Message: text}))
	}
	chats, err := store.Chats().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "second", chats[0].Message)
	require.NotNil(t, chats[0].Sender)
	assert.Equal(t, owner.Name, chats[0].Sender.Name)

	err = store.Comments().Create(ctx, &domain.Comment{TicketID: "missing", AuthorID: owner.ID, Message: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
