package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the async queue has no free slot.
	ErrQueueFull = errors.New("event queue full")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// DropRecorder counts events the dispatcher could not accept.
type DropRecorder interface {
	RecordDispatchDrop()
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

func (r *registry) handlers(eventType EventType) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventHandler{}, r.listeners[eventType]...)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	registry
}

// NewInMemoryDispatcher creates a dispatcher that runs handlers on the publishing goroutine.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{registry{listeners: make(map[EventType][]EventHandler)}}
}

// Publish synchronously invokes handlers for the given event and joins their errors.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, handler := range d.handlers(event.Type) {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncOptions sizes the async dispatcher.
type AsyncOptions struct {
	QueueSize int
	Workers   int
}

// AsyncDispatcher hands events to a bounded queue drained by worker goroutines.
// Publish never blocks the caller.
type AsyncDispatcher struct {
	registry
	logger  *zap.Logger
	drops   DropRecorder
	queue   chan queuedEvent
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// NewAsyncDispatcher starts opts.Workers goroutines.
func NewAsyncDispatcher(logger *zap.Logger, drops DropRecorder, opts AsyncOptions) *AsyncDispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AsyncDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		logger:   logger,
		drops:    drops,
		queue:    make(chan queuedEvent, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Publish enqueues event. Handlers run detached from ctx cancellation.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		if d.drops != nil {
			d.drops.RecordDispatchDrop()
		}
		d.logger.Warn("event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
		)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be handled.
func (d *AsyncDispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.closeMu.Unlock()
	d.wg.Wait()
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for item := range d.queue {
		for _, handler := range d.handlers(item.event.Type) {
			d.invoke(item.ctx, item.event, handler)
		}
	}
}

func (d *AsyncDispatcher) invoke(ctx context.Context, event Event, handler EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panic",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	if err := handler(ctx, event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}
