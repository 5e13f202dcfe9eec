package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchKey reports whether key matches the glob pattern.
// An empty pattern matches every key.
func MatchKey(pattern, key string) bool {
	if pattern == "" || pattern == "*" || pattern == "**" {
		return true
	}
	ok, err := doublestar.Match(pattern, key)
	return err == nil && ok
}

type subscriber struct {
	pattern string
	ch      chan Event
	done    chan struct{} // closed when the broker drops the subscriber
}

// broker fans store events out to Watch subscribers.
// Publishing never blocks: a full subscriber buffer drops the event.
type broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
}

func newBroker(buffer int, logger *slog.Logger) *broker {
	return &broker{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (b *broker) subscribe(pattern string) *subscriber {
	sub := &subscriber{pattern: pattern, ch: make(chan Event, b.buffer), done: make(chan struct{})}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broker) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
		close(sub.done)
	}
}

func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if e.Type != EventClear && !MatchKey(sub.pattern, e.Key) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn("watch subscriber is full, dropping event", "event", e.String())
		}
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
		close(sub.done)
	}
}

// Watch streams changes to keys matching pattern until ctx is done.
//
// When the backend is Watchable its feed is used, which also reports changes
// made by other processes. Otherwise only writes made through this Store are
// reported.
func (s *Store) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	backend, err := s.ready(ctx, "watch")
	if err != nil {
		return nil, err
	}

	if w, ok := Capability[Watchable](backend); ok {
		upstream, err := w.Watch(ctx, pattern)
		if err != nil {
			return nil, wrapError("watch", "", err)
		}
		return s.buffered(ctx, upstream), nil
	}

	sub := s.broker.subscribe(pattern)
	s.watches.Add(1)
	go func() {
		defer s.watches.Done()
		select {
		case <-ctx.Done():
			s.broker.unsubscribe(sub)
		case <-sub.done:
		}
	}()
	return sub.ch, nil
}

// buffered decouples a backend feed from a slow consumer.
func (s *Store) buffered(ctx context.Context, upstream <-chan Event) <-chan Event {
	out := make(chan Event, s.config.EventBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-upstream:
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
