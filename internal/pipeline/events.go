package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/google/uuid"
)

// EventSink receives collaborator events.
type EventSink interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// LogSink writes every event to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(_ context.Context, events ...domain.Event) error {
	for _, e := range events {
		s.Logger.Info("event",
			"event_id", e.ID,
			"type", string(e.Type),
			"cycle_id", e.CycleID,
			"provider", string(e.Provider),
			"incidents", len(e.Incidents),
			"hotspots", len(e.Hotspots),
			"entity_id", e.EntityID,
			"error", e.Error,
		)
	}
	return nil
}

const (
	eventBufferSize     = 256
	eventPublishTimeout = 10 * time.Second
)

// eventBus delivers events to sinks off the loop goroutine, in emission order.
type eventBus struct {
	sinks  []EventSink
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	ch       chan domain.Event
	finished chan struct{}
}

func newEventBus(sinks []EventSink, logger *slog.Logger) *eventBus {
	return &eventBus{
		sinks:    sinks,
		logger:   logger,
		ch:       make(chan domain.Event, eventBufferSize),
		finished: make(chan struct{}),
	}
}

// emit stamps e and queues it. Events are dropped when the buffer is full.
func (b *eventBus) emit(e domain.Event) {
	e.ID = uuid.NewString()
	e.EmittedAt = domain.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event buffer full, dropping event", "type", string(e.Type), "event_id", e.ID)
	}
}

func (b *eventBus) run() {
	defer close(b.finished)
	for e := range b.ch {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
			if err := sink.Publish(ctx, e); err != nil {
				b.logger.Warn("publish event failed", "type", string(e.Type), "event_id", e.ID, "error", err)
			}
			cancel()
		}
	}
}

// close stops accepting events and waits for queued ones to be delivered.
func (b *eventBus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()
	<-b.finished
}
