package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path      string     `json:"path"`
	SystemDir string     `json:"system_dir"`
	Format    string     `json:"format"`
	ReadOnly  bool       `json:"read_only"`
	Quota     int64      `json:"quota,omitempty"`
	Open      bool       `json:"open"`
	Watchers  int        `json:"watchers"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RepositoryState{
		Path:      r.Path,
		SystemDir: r.config.SystemDir,
		Format:    r.config.Format,
		ReadOnly:  r.config.ReadOnly,
		Quota:     r.config.Quota,
		Open:      r.open,
		Watchers:  r.watchers,
		LastEvent: r.lastEvent,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) addWatcher(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers += delta
}

func (r *Repository) markEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastEvent = &now
}
