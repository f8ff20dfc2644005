package app

import (
	"fmt"
	"sync"

	"github.com/yourusername/yt-sync-go/internal/domain"
	"github.com/yourusername/yt-sync-go/pkg/logger"
	"go.uber.org/zap"
)

// JobEventPublisher accepts job events for fan-out
type JobEventPublisher interface {
	Publish(event domain.JobEvent)
}

// JobEventBus delivers job events to listeners on a single goroutine, in
// publish order. Progress events are dropped when the buffer is full;
// lifecycle events never are.
type JobEventBus struct {
	log *logger.LoggerAdapter

	mu        sync.RWMutex
	listeners []domain.JobListener
	closed    bool

	events chan domain.JobEvent
	done   chan struct{}
}

// NewJobEventBus starts a bus with the given buffer size
func NewJobEventBus(buffer int, log *logger.LoggerAdapter) *JobEventBus {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	if buffer < 1 {
		buffer = 1
	}
	b := &JobEventBus{
		log:    log,
		events: make(chan domain.JobEvent, buffer),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a listener
func (b *JobEventBus) Subscribe(l domain.JobListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish queues an event for delivery
func (b *JobEventBus) Publish(event domain.JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	if event.Type == domain.EventJobProgress {
		select {
		case b.events <- event:
		default:
		}
		return
	}
	b.events <- event
}

// Close delivers pending events and stops the bus
func (b *JobEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()
	<-b.done
}

func (b *JobEventBus) dispatch() {
	defer close(b.done)
	for event := range b.events {
		b.mu.RLock()
		listeners := append([]domain.JobListener(nil), b.listeners...)
		b.mu.RUnlock()

		for _, l := range listeners {
			b.deliver(l, event)
		}
	}
}

func (b *JobEventBus) deliver(l domain.JobListener, event domain.JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.LogAppError("Job listener panicked",
				zap.String("listener", fmt.Sprintf("%T", l)),
				zap.String("event", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	l.OnJobEvent(event)
}

// JobListenerFunc adapts a function to domain.JobListener
type JobListenerFunc func(domain.JobEvent)

// OnJobEvent calls f
func (f JobListenerFunc) OnJobEvent(event domain.JobEvent) {
	f(event)
}
