// Package upload accepts multipart image uploads into a staging directory
// where the prediction pipeline can reach them.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedFileType rejects uploads that are not jpg/jpeg/png.
var ErrUnsupportedFileType = errors.New("only image files are allowed")

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Stager writes accepted uploads into Dir under a timestamp-based name,
// keeping the original extension. Timestamp names are the collision
// resistance the permanent store relies on.
type Stager struct {
	Dir string

	// now is swappable for tests.
	now func() time.Time
}

// NewStager builds a stager rooted at dir.
func NewStager(dir string) *Stager {
	return &Stager{Dir: dir, now: time.Now}
}

// Stage validates the upload's extension and writes it to the staging
// directory. It returns the staged path and the generated filename.
func (s *Stager) Stage(file *multipart.FileHeader) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return "", "", ErrUnsupportedFileType
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", "", err
	}

	name := fmt.Sprintf("%d%s", s.now().UnixMilli(), ext)
	stagedPath := filepath.Join(s.Dir, name)

	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	dst, err := os.Create(stagedPath)
	if err != nil {
		return "", "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(stagedPath)
		return "", "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(stagedPath)
		return "", "", err
	}

	return stagedPath, name, nil
}
