// Package nats publishes committed state changes to NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/infrastructure/resilience"
)

// Event is the message body published on <prefix>.<slice>. Payload is the slice
// snapshot right after the action was committed.
type Event struct {
	Kind    string    `json:"kind"`
	Slice   string    `json:"slice"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

type Options struct {
	BufferSize         int
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func (o Options) normalize() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	return o
}

// Publisher is a store listener. Listen only enqueues; a single goroutine publishes in
// commit order. When the buffer is full new events are dropped and counted.
type Publisher struct {
	conn     conn
	prefix   string
	executor *resilience.Executor

	events  chan Event
	done    chan struct{}
	dropped atomic.Uint64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func Connect(url, prefix string, options Options) (*Publisher, error) {
	options = options.normalize()
	nc, err := nats.Connect(
		url,
		nats.Name("studydesk"),
		nats.Timeout(options.ConnectTimeout),
		nats.ReconnectWait(options.ReconnectWait),
		nats.MaxReconnects(options.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, prefix, options), nil
}

func newPublisher(c conn, prefix string, options Options) *Publisher {
	options = options.normalize()
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "studydesk.state"
	}
	p := &Publisher{
		conn:     c,
		prefix:   prefix,
		executor: options.ResilienceExecutor,
		events:   make(chan Event, options.BufferSize),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

// Listen has the store.Listener signature.
func (p *Publisher) Listen(state store.State, action store.Action) {
	event := Event{
		Kind:    action.Kind(),
		Slice:   action.Slice(),
		At:      time.Now().UTC(),
		Payload: slicePayload(state, action.Slice()),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("state_event_dropped", "kind", event.Kind, "dropped_total", n)
		}
	}
}

func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for event := range p.events {
		if err := p.publish(context.Background(), event); err != nil {
			slog.Warn("state_event_publish_failed", "kind", event.Kind, "slice", event.Slice, "error", err)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.prefix + "." + event.Slice

	call := func(context.Context) error {
		if err := p.conn.Publish(subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor != nil {
		err = p.executor.Do(ctx, "nats_publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// Close stops accepting events, publishes what is buffered, and closes the connection.
func (p *Publisher) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-ctx.Done():
			err = fmt.Errorf("drain state events: %w", ctx.Err())
		}
		if flushErr := p.conn.FlushTimeout(2 * time.Second); flushErr != nil && err == nil {
			err = fmt.Errorf("nats flush: %w", flushErr)
		}
		p.conn.Close()
	})
	return err
}

func slicePayload(state store.State, slice string) any {
	switch slice {
	case store.SliceApp:
		return state.App
	case store.SliceUI:
		return state.UI
	case store.SliceChat:
		return state.Chat
	case store.SliceUpload:
		return state.Upload
	case store.SliceTools:
		return state.Tools
	default:
		return nil
	}
}
