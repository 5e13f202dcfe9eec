// Package lifecycle exposes store change events as a lifecycle.Source.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/productbaker/pkg/core"
)

// Watcher is the part of *core.Store the source needs.
type Watcher interface {
	Watch(ctx context.Context, pattern string) (<-chan core.Event, error)
}

type storeSource struct {
	watcher Watcher
	pattern string
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits store events for keys
// matching pattern. The subscription starts with Start and ends with its
// context; Events is closed afterwards.
func NewSource(watcher Watcher, pattern string) lifecycle.Source {
	return &storeSource{
		watcher: watcher,
		pattern: pattern,
		out:     make(chan lifecycle.Event),
	}
}

func (s *storeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *storeSource) Start(ctx context.Context) error {
	events, err := s.watcher.Watch(ctx, s.pattern)
	if err != nil {
		close(s.out)
		return fmt.Errorf("failed to watch %q: %w", s.pattern, err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				// core.Event implements lifecycle.Event
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
