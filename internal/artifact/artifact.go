// Package artifact moves staged uploads into permanent storage and cleans up
// the staging copies.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Ref identifies a committed artifact: the stored name recorded alongside a
// scan, and the URL it is served back at.
type Ref struct {
	Name string
	URL  string
}

// Store persists a staged file under a permanent name.
type Store interface {
	Commit(ctx context.Context, stagedPath, name string) (*Ref, error)
}

// PersistError reports a failed commit. The staged file is left in place so
// the caller can discard it.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("artifact: persist failed for %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Manager wraps a Store with the discard half of the lifecycle. Commit must
// succeed before a scan record referencing the artifact is written.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager builds a Manager over the given backend.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger.Named("artifact")}
}

// Commit copies the staged file into permanent storage under name.
func (m *Manager) Commit(ctx context.Context, stagedPath, name string) (*Ref, error) {
	ref, err := m.store.Commit(ctx, stagedPath, name)
	if err != nil {
		return nil, &PersistError{Path: stagedPath, Err: err}
	}
	return ref, nil
}

// Discard removes a staged file. Removal failures are logged and swallowed:
// a leaked staging file must never mask the outcome being reported, and
// discarding an already-removed path is a no-op.
func (m *Manager) Discard(stagedPath string) {
	if stagedPath == "" {
		return
	}
	if err := os.Remove(stagedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("failed to remove staged file",
			zap.String("staged_path", stagedPath),
			zap.Error(err))
	}
}
