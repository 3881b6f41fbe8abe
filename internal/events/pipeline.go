// Package events is the single ingestion and dispatch point for GPS,
// traffic, order and visit events. Each event type feeds its own queue and
// dispatcher, decoupling producers from handler failures.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/domain"
)

// ErrMalformed reports an event rejected at ingestion. The event is dropped
// with a logged reason; it never crashes the pipeline or blocks others.
var ErrMalformed = errors.New("malformed event")

// Handler consumes one event. Handlers registered for the same type run
// independently: one handler's panic or error never blocks delivery to the
// others.
type Handler func(ctx context.Context, ev domain.Event) error

type registration struct {
	name string
	fn   Handler
}

const queueDepth = 128

type queuePair struct {
	urgent chan domain.Event
	normal chan domain.Event
}

type Pipeline struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]registration

	queues map[domain.EventType]queuePair
	stop   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

func NewPipeline() *Pipeline {
	p := &Pipeline{
		handlers: make(map[domain.EventType][]registration),
		queues:   make(map[domain.EventType]queuePair),
		stop:     make(chan struct{}),
	}
	for _, t := range []domain.EventType{domain.EventGPS, domain.EventTraffic, domain.EventOrder, domain.EventVisit} {
		p.queues[t] = queuePair{
			urgent: make(chan domain.Event, queueDepth),
			normal: make(chan domain.Event, queueDepth),
		}
	}
	return p
}

// Subscribe registers a named handler for one event type. Registration is
// expected at composition time, before Start, but is safe at any point.
func (p *Pipeline) Subscribe(t domain.EventType, name string, fn Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[t] = append(p.handlers[t], registration{name: name, fn: fn})
}

// Start launches one dispatcher per event type. Dispatchers run until Close.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for t, q := range p.queues {
			p.wg.Add(1)
			go p.dispatch(ctx, t, q)
		}
	})
}

// Close stops the dispatchers and waits for in-flight handlers to return.
// Events already accepted by Publish are drained to their handlers first.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
	})
}

// Publish validates and enqueues one event. Urgent events take a separate
// queue drained ahead of the normal one for their type.
func (p *Pipeline) Publish(ev domain.Event) error {
	if err := validate(ev); err != nil {
		log.Printf("event dropped type=%s entity=%s reason=%v", ev.Type, ev.EntityID, err)
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	q := p.queues[ev.Type]
	ch := q.normal
	if ev.Priority == domain.PriorityUrgent {
		ch = q.urgent
	}

	select {
	case <-p.stop:
		return errors.New("publish event: pipeline closed")
	default:
	}

	select {
	case ch <- ev:
		return nil
	case <-p.stop:
		return errors.New("publish event: pipeline closed")
	}
}

func validate(ev domain.Event) error {
	if !ev.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, ev.Type)
	}
	if ev.EntityID == "" {
		return fmt.Errorf("%w: missing entity id", ErrMalformed)
	}
	if ev.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}

	payloadSet := false
	switch ev.Type {
	case domain.EventGPS:
		payloadSet = ev.GPS != nil
	case domain.EventTraffic:
		payloadSet = ev.Traffic != nil
	case domain.EventOrder:
		payloadSet = ev.Order != nil && (ev.Order.Action != domain.OrderAdded || ev.Order.Job != nil)
	case domain.EventVisit:
		payloadSet = ev.Visit != nil
	}
	if !payloadSet {
		return fmt.Errorf("%w: missing %s payload", ErrMalformed, ev.Type)
	}
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, t domain.EventType, q queuePair) {
	defer p.wg.Done()

	for {
		// Urgent queue drains first whenever it holds anything.
		select {
		case ev := <-q.urgent:
			p.deliver(ctx, ev)
			continue
		default:
		}

		select {
		case ev := <-q.urgent:
			p.deliver(ctx, ev)
		case ev := <-q.normal:
			p.deliver(ctx, ev)
		case <-p.stop:
			p.drain(ctx, q)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain empties both queues on shutdown so accepted events still reach
// their handlers, urgent ones first.
func (p *Pipeline) drain(ctx context.Context, q queuePair) {
	for {
		select {
		case ev := <-q.urgent:
			p.deliver(ctx, ev)
			continue
		default:
		}
		select {
		case ev := <-q.normal:
			p.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (p *Pipeline) deliver(ctx context.Context, ev domain.Event) {
	p.mu.RLock()
	regs := make([]registration, len(p.handlers[ev.Type]))
	copy(regs, p.handlers[ev.Type])
	p.mu.RUnlock()

	for _, reg := range regs {
		p.invoke(ctx, reg, ev)
	}
}

// invoke isolates one handler call: panics and errors are logged, never
// propagated to sibling handlers.
func (p *Pipeline) invoke(ctx context.Context, reg registration, ev domain.Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf(
				"event handler panic handler=%s event=%s type=%s panic=%v",
				reg.name, ev.ID, ev.Type, r,
			)
		}
	}()

	if err := reg.fn(ctx, ev); err != nil {
		log.Printf(
			"event handler failed handler=%s event=%s type=%s dur=%dms err=%v",
			reg.name, ev.ID, ev.Type, time.Since(start).Milliseconds(), err,
		)
	}
}
