// Package uploads stores user-submitted images under the static root and
// hands back the path the templates use to display them.
package uploads

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
	"github.com/lesionscan/lesionscan/internal/securefs"
	"github.com/lesionscan/lesionscan/internal/sysinfo"
)

// Dir is the uploads directory relative to the static root. Stored paths
// always begin with Dir + "/".
const Dir = "uploads"

const (
	dirPerm  = 0o750
	filePerm = 0o640

	// uniqueAttempts bounds retries when a generated name already exists.
	uniqueAttempts = 3
)

// Store persists uploads inside a securefs sandbox.
type Store struct {
	fs        *securefs.SecureFS
	naming    string
	minFreeMB uint64
	freeSpace func(string) (uint64, error)
	metrics   *metrics.UploadMetrics
}

// Option configures a Store.
type Option func(*Store)

// WithNaming selects conf.NamingOriginal or conf.NamingUnique.
func WithNaming(naming string) Option {
	return func(s *Store) { s.naming = naming }
}

// WithMinFreeMB refuses writes when the volume has less free space.
func WithMinFreeMB(mb uint64) Option {
	return func(s *Store) { s.minFreeMB = mb }
}

// WithFreeSpaceFunc replaces the free-space probe.
func WithFreeSpaceFunc(fn func(string) (uint64, error)) Option {
	return func(s *Store) { s.freeSpace = fn }
}

// WithMetrics records store operations into m.
func WithMetrics(m *metrics.UploadMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store writing under sfs and makes sure the uploads
// directory exists.
func New(sfs *securefs.SecureFS, opts ...Option) (*Store, error) {
	s := &Store{
		fs:        sfs,
		naming:    conf.NamingOriginal,
		freeSpace: sysinfo.FreeBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := sfs.MkdirAll(Dir, dirPerm); err != nil {
		return nil, storageError(err, "mkdir", Dir)
	}
	return s, nil
}

// Pending is an upload written to disk but not yet published under its
// final name. Call Commit once the upload is accepted, or Discard.
type Pending struct {
	// RelPath is the final path relative to the static root.
	RelPath string

	store   *Store
	tmpPath string
	size    int
	start   time.Time
	done    bool
}

// Save writes data under a sanitized form of filename and returns its path
// relative to the static root, for example "uploads/mole.png". In original
// naming mode an existing file of the same name is overwritten.
func (s *Store) Save(ctx context.Context, filename string, data []byte) (string, error) {
	p, err := s.Stage(ctx, filename, data)
	if err != nil {
		return "", err
	}
	if err := p.Commit(); err != nil {
		_ = p.Discard()
		return "", err
	}
	return p.RelPath, nil
}

// Stage writes data without touching any existing file of the same name.
// In original naming mode the bytes go to a hidden temporary file that
// Commit renames over RelPath. In unique mode RelPath is a fresh name and
// is written directly.
func (s *Store) Stage(ctx context.Context, filename string, data []byte) (*Pending, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.minFreeMB > 0 {
		free, err := sysinfo.CheckFreeSpace(s.fs.BaseDir(), s.minFreeMB, s.freeSpace)
		if s.metrics != nil && free > 0 {
			s.metrics.SetDiskFree(free)
		}
		if err != nil {
			s.recordSave(len(data), err)
			return nil, err
		}
	}

	name := SanitizeFilename(filename)
	if name == "" {
		name = fallbackName(data)
	}

	p := &Pending{store: s, size: len(data), start: start}
	var err error
	if s.naming == conf.NamingUnique {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		name, err = s.writeFresh(data, func() string {
			return fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext)
		})
		p.RelPath = path.Join(Dir, name)
	} else {
		p.RelPath = path.Join(Dir, name)
		var tmpName string
		tmpName, err = s.writeFresh(data, func() string {
			return fmt.Sprintf(".%s.%s.tmp", name, uuid.NewString()[:8])
		})
		p.tmpPath = path.Join(Dir, tmpName)
	}
	if err != nil {
		err = storageError(err, "write", p.RelPath)
		s.recordSave(len(data), err)
		return nil, err
	}
	s.recordSave(len(data), nil)
	return p, nil
}

// writeFresh writes data under the first name from next that does not yet
// exist in Dir and returns that name.
func (s *Store) writeFresh(data []byte, next func() string) (string, error) {
	var lastErr error
	for range uniqueAttempts {
		candidate := next()
		err := s.fs.WriteNewFile(path.Join(Dir, candidate), data, filePerm)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Commit publishes the upload at RelPath, replacing an earlier file of the
// same name in original naming mode.
func (p *Pending) Commit() error {
	if p.done {
		return nil
	}
	if p.tmpPath != "" {
		if err := p.store.fs.Rename(p.tmpPath, p.RelPath); err != nil {
			return storageError(err, "rename", p.RelPath)
		}
		p.tmpPath = ""
	}
	p.done = true

	GetLogger().Info("upload stored",
		logger.String("path", p.RelPath),
		logger.Int("bytes", p.size),
		logger.Duration("elapsed", time.Since(p.start)))
	return nil
}

// Discard deletes the staged bytes. A file already published at RelPath
// before Stage is left as it was. Discard after Commit is a no-op.
func (p *Pending) Discard() error {
	if p.done {
		return nil
	}
	p.done = true
	if p.tmpPath != "" {
		return p.store.Remove(p.tmpPath)
	}
	return p.store.Remove(p.RelPath)
}

// Remove deletes a stored file, given its path relative to the static root.
func (s *Store) Remove(relPath string) error {
	if !withinDir(relPath) {
		return errors.Newf("path %q is not inside %s", relPath, Dir).
			Component("uploads").
			Category(errors.CategoryValidation).
			Build()
	}
	err := s.fs.Remove(relPath)
	if s.metrics != nil {
		s.metrics.RecordRemove(err)
	}
	if err != nil {
		return storageError(err, "remove", relPath)
	}
	return nil
}

// Serve streams the stored file named name (relative to Dir) to the client.
func (s *Store) Serve(c echo.Context, name string) error {
	relPath := path.Join(Dir, name)
	if !withinDir(relPath) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file path")
	}
	return s.fs.ServeRelativeFile(c, relPath)
}

// withinDir reports whether relPath names something below Dir.
func withinDir(relPath string) bool {
	return strings.HasPrefix(path.Clean(relPath), Dir+"/")
}

func (s *Store) recordSave(size int, err error) {
	if s.metrics != nil {
		s.metrics.RecordSave(size, err)
	}
}

func storageError(err error, op, relPath string) error {
	return errors.New(err).
		Component("uploads").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", relPath).
		Build()
}

// GetLogger returns the uploads module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("uploads")
}
