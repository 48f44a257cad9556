package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clinictrack/pkg/platform/middleware/admin"
	"clinictrack/pkg/requestcontext"
)

const asyncAppendTimeout = 5 * time.Second

// Emitter is what services depend on to record events.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Publisher captures audit events. Emission never fails the caller: a lost
// event is logged, the business change it describes has already committed.
type Publisher struct {
	store  Store
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	now    func() time.Time
	async  bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues events and persists them from a background
// goroutine. A full buffer drops the event.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), asyncAppendTimeout)
		p.append(ctx, event)
		cancel()
	}
}

// Close drains queued events. Emit must not be called afterwards.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Actor == "" {
		event.Actor = actorFrom(ctx)
	}
	if !p.async {
		p.append(context.WithoutCancel(ctx), event)
		return
	}
	select {
	case p.events <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action,
			"tenant", event.Tenant,
		)
	}
}

func (p *Publisher) append(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"action", event.Action,
			"tenant", event.Tenant,
		)
	}
}

// actorFrom names the caller: admin or admin:<actor id> for back-office
// requests, otherwise tenant or tenant/user.
func actorFrom(ctx context.Context) string {
	if admin.IsAdminRequest(ctx) {
		if id := admin.GetAdminActorID(ctx); id != "" {
			return "admin:" + id
		}
		return "admin"
	}
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return ""
	}
	if p.User != "" {
		return p.Tenant + "/" + p.User
	}
	return p.Tenant
}

// List returns the newest events first. A non-positive limit means
// DefaultListLimit and larger ones are capped at MaxListLimit.
func (p *Publisher) List(ctx context.Context, tenant string, limit int) ([]Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return p.store.List(ctx, tenant, limit)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
