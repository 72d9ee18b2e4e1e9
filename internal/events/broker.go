// Package events fans message and campaign state changes out to in-process
// subscribers (the SSE endpoint) and optionally to an external pub/sub
// channel.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
)

const (
	defaultBuffer  = 64
	forwardTimeout = 5 * time.Second
)

type forwarder interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

type subscriber struct {
	campaignID string
	ch         chan domain.Event
}

// Broker is a non-blocking publish/subscribe hub. A slow subscriber loses
// events instead of stalling publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool

	buffer    int
	metrics   *metrics.Metrics
	forwarder forwarder
	forwardCh chan domain.Event

	done chan struct{}
	wg   sync.WaitGroup
}

type Option func(*Broker)

// WithForwarder mirrors every published event to f from a background
// goroutine.
func WithForwarder(f forwarder) Option {
	return func(b *Broker) { b.forwarder = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

func NewBroker(buffer int, opts ...Option) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	b := &Broker{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.forwarder != nil {
		b.forwardCh = make(chan domain.Event, buffer)
		b.wg.Add(1)
		go b.forwardLoop()
	}

	return b
}

// Subscribe returns a channel of events for campaignID, or for every campaign
// when campaignID is empty. The channel is closed when ctx ends or the broker
// closes.
func (b *Broker) Subscribe(ctx context.Context, campaignID string) <-chan domain.Event {
	sub := &subscriber{
		campaignID: campaignID,
		ch:         make(chan domain.Event, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	b.metrics.SubscriberAdded()

	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.remove(sub)
	}()

	return sub.ch
}

func (b *Broker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.metrics.SubscriberRemoved()
}

// Publish delivers event to every matching subscriber without blocking.
func (b *Broker) Publish(event domain.Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		if sub.campaignID != "" && sub.campaignID != event.CampaignID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.metrics.EventDropped()
		}
	}

	if b.forwardCh != nil {
		select {
		case b.forwardCh <- event:
		default:
			b.metrics.EventDropped()
			logger.Warnf("Event forward queue full, dropping %s event", event.Type)
		}
	}
}

func (b *Broker) forwardLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case event := <-b.forwardCh:
			ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
			if err := b.forwarder.PublishEvent(ctx, event); err != nil {
				logger.Warnf("Failed to forward %s event: %v", event.Type, err)
			}
			cancel()
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription and stops the forwarder. It is safe to call
// more than once.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}
