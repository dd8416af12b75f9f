package auth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/StricklySoft/stricklysoft-authcutover/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// LoadFunc builds a complete Snapshot.
type LoadFunc func() (*Snapshot, error)

// LoaderFunc returns a LoadFunc reading through loader.
func LoaderFunc(loader *config.Loader) LoadFunc {
	return func() (*Snapshot, error) {
		return LoadSnapshot(loader)
	}
}

// SnapshotStore publishes the current Snapshot. Load never blocks and
// always returns a complete Snapshot; reloads swap the pointer.
type SnapshotStore struct {
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	logger   *slog.Logger
}

// NewSnapshotStore returns a store holding initial. It panics if initial
// is nil.
func NewSnapshotStore(initial *Snapshot) *SnapshotStore {
	if initial == nil {
		panic("auth: NewSnapshotStore requires a non-nil snapshot")
	}
	s := &SnapshotStore{logger: slog.Default()}
	s.current.Store(initial)
	return s
}

// WithLogger sets the logger used by Watch.
func (s *SnapshotStore) WithLogger(logger *slog.Logger) *SnapshotStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Load returns the current Snapshot.
func (s *SnapshotStore) Load() *Snapshot {
	return s.current.Load()
}

// Swap publishes next and returns the previous Snapshot. A nil next is
// ignored.
func (s *SnapshotStore) Swap(next *Snapshot) *Snapshot {
	if next == nil {
		return s.current.Load()
	}
	return s.current.Swap(next)
}

// Reload builds a Snapshot with load and publishes it. On failure the
// current Snapshot stays in place and the error is returned. Concurrent
// reloads are serialised.
func (s *SnapshotStore) Reload(load LoadFunc) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	next, err := load()
	if err != nil {
		if _, ok := sserr.AsError(err); ok {
			return err
		}
		return sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: snapshot reload failed")
	}
	if next == nil {
		return sserr.New(sserr.CodeInternalConfiguration, "auth: snapshot reload returned nil")
	}
	s.current.Store(next)
	return nil
}

// Watch reloads on every tick of interval and on every receive from
// trigger, until ctx is done. A non-positive interval disables the
// ticker; a nil trigger is never ready. Failures are logged and the
// previous Snapshot is kept.
func (s *SnapshotStore) Watch(ctx context.Context, interval time.Duration, load LoadFunc, trigger <-chan struct{}) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-trigger:
		}

		if err := s.Reload(load); err != nil {
			s.logger.ErrorContext(ctx, "auth: config reload failed, keeping previous snapshot", "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "auth: config reloaded", "snapshot", s.Load())
	}
}
