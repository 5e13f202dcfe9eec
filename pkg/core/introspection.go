package core

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Connection  ConnState `json:"connection"`
	BackendType string    `json:"backend_type"`
	Opens       int       `json:"opens"`
	LastError   string    `json:"last_error,omitempty"`
	Watchers    int       `json:"watchers"`
	BackupKeys  []string  `json:"backup_keys"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backendType := "none"
	if s.backend != nil {
		backendType = "backend"
		// Try to get component type if the backend implements introspection.Component
		if comp, ok := s.backend.(introspection.Component); ok {
			backendType = comp.ComponentType()
		}
	}

	state := StoreState{
		Connection:  s.state,
		BackendType: backendType,
		Opens:       s.opens,
		Watchers:    s.broker.len(),
		BackupKeys:  append([]string(nil), s.config.BackupKeys...),
	}
	if s.lastErr != nil {
		state.LastError = s.lastErr.Error()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
