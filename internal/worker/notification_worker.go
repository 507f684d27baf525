package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/service"
)

// Relay is a long-running broadcaster loop, such as the Redis fan-in.
type Relay interface {
	Run(ctx context.Context) error
}

// Options bundles the subscribers started at boot.
type Options struct {
	Dispatcher    events.Dispatcher
	Notifications *service.NotificationService
	Broadcaster   realtime.Broadcaster
	Relay         Relay
	Logger        *zap.Logger
}

// Workers tracks background goroutines started by Start.
type Workers struct {
	wg sync.WaitGroup
}

// Start registers notification and realtime handlers on the dispatcher and launches the
// relay loop, if any, until ctx ends.
func Start(ctx context.Context, opts Options) *Workers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workers{}

	StartNotificationWorker(opts.Notifications)
	if opts.Dispatcher != nil && opts.Broadcaster != nil {
		opts.Dispatcher.Subscribe(events.EventChatMessageSent, realtime.ChatFanOut(opts.Broadcaster))
	}

	if opts.Relay != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := opts.Relay.Run(ctx); err != nil {
				logger.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	}
	return w
}

// Wait blocks until every background loop has returned.
func (w *Workers) Wait() {
	w.wg.Wait()
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
