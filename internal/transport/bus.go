// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
)

type (
	// Handler receives the raw payload of a message.
	Handler func(data []byte)

	// Bus is an in-process topic hub.
	Bus struct {
		uri    URI
		logger *log.Logger

		mu         sync.RWMutex
		subs       map[string][]*Subscription
		namespaces map[string]struct{}
		nsChanged  chan struct{}
		closed     bool
	}

	// Subscription is one handler registered on one topic.
	Subscription struct {
		bus   *Bus
		topic string
		fn    Handler

		mu     sync.Mutex
		queue  [][]byte
		wake   chan struct{}
		done   chan struct{}
		closed sync.Once
	}
)

// NewBus creates a bus that reports uri as its master endpoint.
func NewBus(uri URI, logger *log.Logger) *Bus {
	return &Bus{
		uri:        uri,
		logger:     logging.Sub(logger, "bus"),
		subs:       make(map[string][]*Subscription),
		namespaces: make(map[string]struct{}),
		nsChanged:  make(chan struct{}),
	}
}

// MasterURI returns the master endpoint this bus is reachable through.
func (b *Bus) MasterURI() URI {
	return b.uri
}

// Subscribe registers fn for topic. Messages are handed to fn one at a time, in
// publish order, on a goroutine owned by the subscription.
func (b *Bus) Subscribe(topic string, fn Handler) *Subscription {
	s := &Subscription{
		bus:   b,
		topic: topic,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.closed.Do(func() { close(s.done) })
		return s
	}
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	go s.deliver()
	b.logger.Debug("subscribed", "topic", topic)
	return s
}

// Publish encodes v as JSON and queues it for every subscriber of topic.
func (b *Bus) Publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}
	b.PublishRaw(topic, data)
	return nil
}

// PublishRaw queues an already-encoded payload for every subscriber of topic.
func (b *Bus) PublishRaw(topic string, data []byte) {
	b.mu.RLock()
	subs := slices.Clone(b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.push(data)
	}
}

// ClearBuffers drops every queued message that has not reached its handler yet.
// Subscriptions stay registered.
func (b *Bus) ClearBuffers() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, subs := range b.subs {
		for _, s := range subs {
			dropped += s.clear()
		}
	}
	if dropped > 0 {
		b.logger.Debug("cleared buffered messages", "count", dropped)
	}
}

// AdvertiseNamespace registers a namespace, such as the one a world publishes under.
func (b *Bus) AdvertiseNamespace(ns string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.namespaces[ns]; ok {
		return
	}
	b.namespaces[ns] = struct{}{}
	close(b.nsChanged)
	b.nsChanged = make(chan struct{})
}

// RemoveNamespace withdraws a namespace.
func (b *Bus) RemoveNamespace(ns string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.namespaces, ns)
}

// Namespaces lists the advertised namespaces in sorted order.
func (b *Bus) Namespaces() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.namespaces))
	for ns := range b.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// WaitForNamespaces blocks until at least one namespace is advertised, timeout
// elapses or ctx is done. It reports whether a namespace is available.
func (b *Bus) WaitForNamespaces(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.RLock()
		n := len(b.namespaces)
		changed := b.nsChanged
		b.mu.RUnlock()
		if n > 0 {
			return true
		}

		select {
		case <-changed:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Close stops every subscription. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[string][]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.stop()
		}
	}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription and stops its delivery goroutine.
// Queued messages are discarded.
func (s *Subscription) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	subs := b.subs[s.topic]
	if i := slices.Index(subs, s); i >= 0 {
		b.subs[s.topic] = slices.Delete(subs, i, i+1)
		if len(b.subs[s.topic]) == 0 {
			delete(b.subs, s.topic)
		}
	}
	b.mu.Unlock()
	s.stop()
}

func (s *Subscription) push(data []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = nil
	return n
}

func (s *Subscription) stop() {
	s.closed.Do(func() { close(s.done) })
}

func (s *Subscription) deliver() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(next)
		}
	}
}
