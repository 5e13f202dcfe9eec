package fs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
)

// lockFile is a cross-process mutex backed by an exclusive-create file.
type lockFile struct {
	path    string
	timeout time.Duration
	// a lock older than stale is assumed to belong to a crashed process
	stale time.Duration
}

// acquire spins until the lock file can be created, the timeout elapses
// (ReasonBlocked) or ctx is done.
func (l lockFile) acquire(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, classifyFS(fmt.Errorf("failed to acquire lock: %w", err))
		}

		if info, statErr := os.Stat(l.path); statErr == nil && l.stale > 0 && time.Since(info.ModTime()) > l.stale {
			os.Remove(l.path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, core.NewError("", "", core.ReasonBlocked,
				fmt.Errorf("lock %s held for more than %s", l.path, l.timeout))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
