// Package storage spools uploaded recordings to transient files on disk.
// Nothing here is persistent: every spooled file is deleted after the
// request that created it, and deletion failures are logged rather than
// surfaced because the assessment outcome does not depend on cleanup.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Spooler writes uploads into a directory under random file names.
// The zero value spools into the system temp directory.
type Spooler struct {
	dir string
}

// NewSpooler creates a Spooler writing into dir. An empty dir means the
// system temp directory.
func NewSpooler(dir string) *Spooler {
	return &Spooler{dir: dir}
}

// Dir returns the directory uploads are spooled into.
func (s *Spooler) Dir() string {
	if s.dir == "" {
		return os.TempDir()
	}
	return s.dir
}

// Spool copies r (up to maxBytes) into a fresh file and returns its path
// together with a cleanup function. cleanup is best-effort and safe to call
// exactly once on every exit path; a failed removal is logged and ignored.
//
// When r yields more than maxBytes the spooled file is removed and an error
// is returned. maxBytes <= 0 means unlimited.
func (s *Spooler) Spool(r io.Reader, maxBytes int64) (path string, cleanup func(), err error) {
	name := filepath.Join(s.Dir(), uuid.NewString()+".upload")

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("storage: create spool file: %w", err)
	}

	remove := func() {
		if rmErr := os.Remove(name); rmErr != nil {
			slog.Warn("storage: failed to remove spool file", "path", name, "err", rmErr)
		}
	}

	src := r
	if maxBytes > 0 {
		// One extra byte so an exactly-at-limit upload is distinguishable
		// from an over-limit one.
		src = io.LimitReader(r, maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		remove()
		return "", nil, fmt.Errorf("storage: write spool file: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		remove()
		return "", nil, fmt.Errorf("storage: upload exceeds %d bytes", maxBytes)
	}

	return name, remove, nil
}
