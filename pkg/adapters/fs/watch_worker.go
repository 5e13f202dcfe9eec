package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/productbaker/pkg/core"
)

// watchBuffer is the capacity of the channel returned by Watch.
const watchBuffer = 100

// watchBackoff bounds how often a failing watcher is restarted.
var watchBackoff = supervisor.Backoff{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	Multiplier:      2,
	ResetDuration:   time.Minute,
	MaxRestarts:     5,
	MaxDuration:     10 * time.Minute,
}

// Watch implements core.Watchable. It reports changes to record files made
// by any process, filtered by the glob pattern, until ctx is done.
//
// The fsnotify loop runs as a supervised worker and is restarted with
// backoff when it fails.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if !r.isOpen() {
		return nil, core.ErrClosed
	}

	events := make(chan core.Event, watchBuffer)

	// The first worker is started here so setup errors reach the caller.
	first := newWatchWorker(r, pattern, events)
	if err := first.init(); err != nil {
		return nil, err
	}
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			if first != nil {
				w := first
				first = nil
				return w, nil
			}
			return newWatchWorker(r, pattern, events), nil
		},
		Backoff:       watchBackoff,
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("fs-watch-"+pattern, supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	r.addWatcher(1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer r.addWatcher(-1)
		defer close(events)
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sup.Stop(stopCtx)
	}, lifecycle.WithErrorHandler(func(err error) {
		r.reportError(fmt.Errorf("watcher shutdown: %w", err))
	}))
	return events, nil
}

type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	pattern   string
	events    chan<- core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository, pattern string, events chan<- core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		pattern:    pattern,
		events:     events,
	}
}

// init creates the fsnotify watcher on the store directory.
func (w *watchWorker) init() error {
	if w.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Clean(w.repo.Path)); err != nil {
		_ = watcher.Close()
		return classifyFS(fmt.Errorf("failed to watch %s: %w", w.repo.Path, err))
	}
	w.watcher = watcher
	return nil
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}
	if err := w.init(); err != nil {
		return err
	}
	w.debouncer = newDebouncer(50 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"pattern":           w.pattern,
		}
	})
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.repo.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()

	err = w.loop(ctx)

	// Wait for in-flight debounce timers so none fires after the events
	// channel is closed.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.process(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.repo.config.Logger.Error("fsnotify error", "error", wErr)
			w.repo.reportError(wErr)
		}
	}
}

// process filters and maps a filesystem event, then hands it to the debouncer.
func (w *watchWorker) process(ctx context.Context, event fsnotify.Event) {
	key, ok := w.repo.keyForPath(event.Name)
	if !ok || !core.MatchKey(w.pattern, key) {
		return
	}

	var eType core.EventType
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		eType = core.EventSave
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eType = core.EventRemove
	default:
		return
	}

	w.repo.config.Logger.Debug("watch event", "type", eType, "key", key)
	w.debouncer.add(core.Event{
		Type:      eType,
		Key:       key,
		Timestamp: time.Now().UnixMilli(),
	}, func(e core.Event) {
		defer func() {
			// the channel may be closed if shutdown outlived the debouncer wait
			_ = recover()
		}()
		w.repo.markEvent()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Error("fs store error", "error", err)
}
