package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestParseChannelName(t *testing.T) {
	id, ok := ParseChannelName("private-ticket.abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	id, ok = ParseChannelName(ChannelName("xyz"))
	assert.True(t, ok)
	assert.Equal(t, "xyz", id)

	for _, bad := range []string{"", "ticket.", "presence-ticket.1", "ticket.*", "chat.1"} {
		_, ok := ParseChannelName(bad)
		assert.False(t, ok, bad)
	}
}

func TestHubDeliverSkipsOriginSocket(t *testing.T) {
	hub := NewHub(4, nil)
	origin := hub.Subscribe("t1")
	peer := hub.Subscribe("t1")
	stranger := hub.Subscribe("t2")
	assert.Equal(t, 2, hub.Connections(ChannelName("t1")))

	delivered, dropped := hub.Deliver(Message{
		Channel:         ChannelName("t1"),
		Event:           EventChatMessageSent,
		ExcludeSocketID: origin.SocketID,
		Data:            json.RawMessage(`{"x":1}`),
	})
	assert.Equal(t, 1, delivered)
	assert.Zero(t, dropped)

	frame := <-peer.Frames()
	assert.Equal(t, EventChatMessageSent, frame.Event)
	assert.Equal(t, "ticket.t1", frame.Channel)
	assert.JSONEq(t, `{"x":1}`, string(frame.Data))

	assert.Empty(t, origin.Frames())
	assert.Empty(t, stranger.Frames())

	hub.Unsubscribe(peer)
	hub.Unsubscribe(peer)
	_, open := <-peer.Frames()
	assert.False(t, open)
	assert.Equal(t, 1, hub.Connections(ChannelName("t1")))
}

func TestHubDropsForSlowSocket(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("t1")
	msg := Message{Channel: ChannelName("t1"), Event: EventChatMessageSent, Data: json.RawMessage(`{}`)}

	delivered, dropped := hub.Deliver(msg)
	assert.Equal(t, 1, delivered)
	assert.Zero(t, dropped)

	delivered, dropped = hub.Deliver(msg)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, dropped)
	assert.Len(t, sub.Frames(), 1)
}

func TestChatFanOutBroadcastsToOthers(t *testing.T) {
	hub := NewHub(4, nil)
	origin := hub.Subscribe("t1")
	peer := hub.Subscribe("t1")

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventChatMessageSent, ChatFanOut(NewLocalBroadcaster(hub)))

	chat := domain.ChatMessage{
		ID: "c1", TicketID: "t1", SenderID: "u1", Message: "hello", CreatedAt: time.Now().UTC(),
		Sender: &domain.User{ID: "u1", Name: "Ana", Role: domain.RoleCustomer},
	}
	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatMessageSent, "t1", "u1",
		events.ChatMessageSentPayload{Chat: chat, SenderName: "Ana", ExcludeSocketID: origin.SocketID}))
	require.NoError(t, err)

	require.Len(t, peer.Frames(), 1)
	frame := <-peer.Frames()
	var data ChatBroadcast
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, "Ana", data.SenderName)
	assert.Equal(t, "hello", data.Chat.Message)
	assert.Equal(t, "c1", data.Chat.ID)
	require.NotNil(t, data.Chat.Sender)
	assert.Equal(t, "Ana", data.Chat.Sender.Name)
	assert.Empty(t, origin.Frames())

	err = dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatMessageSent, "t1", "u1", "bogus"))
	assert.Error(t, err)
}

func TestChannelAuthorizer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	owner := &domain.User{Name: "Owner", Email: "o@example.com", Role: domain.RoleCustomer}
	other := &domain.User{Name: "Other", Email: "x@example.com", Role: domain.RoleCustomer}
	admin := &domain.User{Name: "Admin", Email: "a@example.com", Role: domain.RoleAdmin}
	for _, u := range []*domain.User{owner, other, admin} {
		require.NoError(t, store.Users().Create(ctx, u))
	}
	ticket := &domain.Ticket{OwnerID: owner.ID, Subject: "s", Description: "d", Category: "c",
		Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen}
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	authorizer := NewChannelAuthorizer(store.Tickets(), policy.NewTicketGate())

	id, err := authorizer.AuthorizeChannel(ctx, owner, "private-ticket."+ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, id)

	_, err = authorizer.AuthorizeChannel(ctx, admin, ChannelName(ticket.ID))
	assert.NoError(t, err)

	_, err = authorizer.AuthorizeChannel(ctx, other, ChannelName(ticket.ID))
	assert.Same(t, apperrors.ErrUnauthorizedTicket, err)

	_, err = authorizer.AuthorizeChannel(ctx, admin, ChannelName("missing"))
	assert.Same(t, apperrors.ErrUnauthorizedTicket, err)

	_, err = authorizer.AuthorizeChannel(ctx, admin, "orders.1")
	assert.Same(t, apperrors.ErrUnauthorizedTicket, err)
}

func TestRedisRelayDeliversToLocalHub(t *testing.T) {
	hub := NewHub(4, nil)
	origin := hub.Subscribe("t1")
	peer := hub.Subscribe("t1")
	b := NewRedisBroadcaster(nil, hub, nil)

	payload, err := json.Marshal(Message{
		Event:           EventChatMessageSent,
		ExcludeSocketID: origin.SocketID,
		Data:            json.RawMessage(`{"y":2}`),
	})
	require.NoError(t, err)

	b.relay(&redis.Message{Channel: "ticket.t1", Pattern: relayPattern, Payload: string(payload)})
	b.relay(&redis.Message{Channel: "ticket.t1", Pattern: relayPattern, Payload: "not json"})

	frame := <-peer.Frames()
	assert.Equal(t, "ticket.t1", frame.Channel)
	assert.JSONEq(t, `{"y":2}`, string(frame.Data))
	assert.Empty(t, peer.Frames())
	assert.Empty(t, origin.Frames())
}
