package artifact

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps permanent artifacts in a directory on disk, served back by
// the HTTP layer under URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

// NewLocalStore builds a filesystem-backed store. The directory is created on
// first commit if absent.
func NewLocalStore(dir, urlPrefix string) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: urlPrefix}
}

// Commit copies (not moves) the staged file to Dir/name. The staged original
// stays in place for the caller to discard.
func (s *LocalStore) Commit(ctx context.Context, stagedPath, name string) (*Ref, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}

	src, err := os.Open(stagedPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	destination := filepath.Join(s.Dir, name)
	dst, err := os.Create(destination)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destination)
		return nil, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(destination)
		return nil, err
	}

	return &Ref{Name: name, URL: path.Join(s.URLPrefix, name)}, nil
}
