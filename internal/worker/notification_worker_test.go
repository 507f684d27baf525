package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
)

type stubRelay struct {
	started chan struct{}
	err     error
}

func (r *stubRelay) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return r.err
}

func TestStartWiresChatFanOut(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	hub := realtime.NewHub(4, nil)
	sub := hub.Subscribe("t-1")
	defer hub.Unsubscribe(sub)

	Start(context.Background(), Options{
		Dispatcher:  dispatcher,
		Broadcaster: realtime.NewLocalBroadcaster(hub),
	})

	event := events.NewEvent(events.EventChatMessageSent, "t-1", "u-1", events.ChatMessageSentPayload{
		Chat:       domain.ChatMessage{ID: "c-1", TicketID: "t-1", SenderID: "u-1", Message: "hello"},
		SenderName: "Alice",
	})
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	select {
	case frame := <-sub.Frames():
		assert.Equal(t, realtime.EventChatMessageSent, frame.Event)
		assert.Contains(t, string(frame.Data), `"message":"hello"`)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestStartRunsRelayUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	relay := &stubRelay{started: make(chan struct{}), err: errors.New("connection reset")}

	workers := Start(ctx, Options{Relay: relay})

	select {
	case <-relay.started:
	case <-time.After(time.Second):
		t.Fatal("relay not started")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}
