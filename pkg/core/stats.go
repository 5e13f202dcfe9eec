package core

import (
	"context"
	"fmt"

	"github.com/aretw0/lifecycle"
)

// Stats describes the size of the store.
type Stats struct {
	TotalSize int64 `json:"totalSize"`
	ItemCount int   `json:"itemCount"`
	Quota     int64 `json:"quota"`
	Usage     int64 `json:"usage"`
	Available int64 `json:"available"`
}

// Stats computes the serialized size and count of all records. Quota and
// usage come from the backend estimate and are zero when it has none.
// Available is Quota - Usage, except that it is left at zero when the
// backend reports no quota instead of going negative.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.all(ctx, "stats")
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, r := range recs {
		st.TotalSize += int64(r.Size())
	}
	st.ItemCount = len(recs)

	if est, ok := s.estimate(ctx); ok {
		st.Quota = est.Quota
		st.Usage = est.Usage
		if est.Quota > 0 {
			st.Available = est.Quota - est.Usage
		}
	}
	return st, nil
}

func (s *Store) estimate(ctx context.Context) (Estimate, bool) {
	estimator, ok := Capability[Estimator](s.backend)
	if !ok {
		return Estimate{}, false
	}
	est, err := estimator.Estimate(ctx)
	if err != nil {
		s.logger.Warn("storage estimate unavailable", "error", err)
		return Estimate{}, false
	}
	return est, true
}

// PersistResult is the outcome of RequestPersistentStorage.
type PersistResult struct {
	Granted bool   `json:"granted"`
	Message string `json:"message"`
}

// PersistStatus is the outcome of CheckPersistentStorage.
type PersistStatus struct {
	Supported bool   `json:"supported"`
	Granted   bool   `json:"granted"`
	Quota     *int64 `json:"quota,omitempty"`
	Usage     *int64 `json:"usage,omitempty"`
}

// RequestPersistentStorage asks the backend to make storage persistent.
// It never fails: problems are reported in the result message.
func (s *Store) RequestPersistentStorage(ctx context.Context) PersistResult {
	backend, err := s.ready(ctx, "persist")
	if err != nil {
		return PersistResult{Message: fmt.Sprintf("storage unavailable: %v", err)}
	}
	p, ok := Capability[Persister](backend)
	if !ok {
		return PersistResult{Message: "persistent storage is not supported by this backend"}
	}

	already, err := p.Persisted(ctx)
	if err == nil && already {
		return PersistResult{Granted: true, Message: "storage is already persistent"}
	}

	granted, err := p.Persist(ctx)
	switch {
	case err != nil:
		s.logger.Warn("persistent storage request failed", "error", err)
		return PersistResult{Message: fmt.Sprintf("persistent storage request failed: %v", err)}
	case granted:
		s.logger.Info("persistent storage granted")
		return PersistResult{Granted: true, Message: "persistent storage granted"}
	default:
		return PersistResult{Message: "persistent storage was denied"}
	}
}

// CheckPersistentStorage reports whether persistence is supported and granted.
// It never fails.
func (s *Store) CheckPersistentStorage(ctx context.Context) PersistStatus {
	backend, err := s.ready(ctx, "persist")
	if err != nil {
		return PersistStatus{}
	}
	p, ok := Capability[Persister](backend)
	if !ok {
		return PersistStatus{}
	}

	status := PersistStatus{Supported: true}
	if granted, err := p.Persisted(ctx); err == nil {
		status.Granted = granted
	} else {
		s.logger.Warn("persistent storage check failed", "error", err)
	}
	if est, ok := s.estimate(ctx); ok {
		status.Quota = &est.Quota
		status.Usage = &est.Usage
	}
	return status
}

// requestPersistenceInBackground runs one best-effort persistence request.
// It must not block or gate store operations.
func (s *Store) requestPersistenceInBackground() {
	lifecycle.Go(context.Background(), func(ctx context.Context) error {
		res := s.RequestPersistentStorage(ctx)
		s.logger.Debug("persist on open", "granted", res.Granted, "message", res.Message)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("persist on open panic", "error", err)
	}))
}
