package securefs

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// GetLogger returns the securefs package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS restricts file operations to one base directory using os.Root.
// Paths given to its methods are relative to that directory; symlinks and
// ".." components cannot escape it.
type SecureFS struct {
	baseDir string
	root    *os.Root
}

// New opens baseDir, creating it if needed, as a sandbox root.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	// Owner writes, others may read for serving
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return &SecureFS{baseDir: absPath, root: root}, nil
}

// BaseDir returns the absolute sandbox directory.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// ValidateRelativePath cleans relPath and rejects absolute paths and upward
// traversal. Forward slashes are accepted on every platform.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	cleanedPath := filepath.Clean(filepath.FromSlash(relPath))

	if filepath.IsAbs(cleanedPath) || strings.HasPrefix(relPath, "/") {
		return "", fmt.Errorf("%w: path must be relative, got '%s'", ErrInvalidPath, relPath)
	}

	if cleanedPath == ".." || strings.HasPrefix(cleanedPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s' (cleaned from '%s')", ErrPathTraversal, cleanedPath, relPath)
	}

	return cleanedPath, nil
}

// createDirComponent creates one directory level, ignoring "already exists".
func (sfs *SecureFS) createDirComponent(path string, perm os.FileMode) error {
	err := sfs.root.Mkdir(path, perm)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create directory component %s: %w", path, err)
	}
	return nil
}

// MkdirAll creates relPath and any missing parents. It is idempotent.
func (sfs *SecureFS) MkdirAll(relPath string, perm os.FileMode) error {
	if relPath == "." || relPath == "" {
		return nil
	}
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}
	if validated == "." {
		return nil
	}

	currentPath := ""
	for component := range strings.SplitSeq(validated, string(filepath.Separator)) {
		if component == "" {
			continue
		}
		currentPath = filepath.Join(currentPath, component)
		if err := sfs.createDirComponent(currentPath, perm); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile creates or truncates relPath and writes data to it.
func (sfs *SecureFS) WriteFile(relPath string, data []byte, perm os.FileMode) error {
	return sfs.writeFile(relPath, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

// WriteNewFile writes data to relPath, failing with fs.ErrExist if the file
// is already present.
func (sfs *SecureFS) WriteNewFile(relPath string, data []byte, perm os.FileMode) error {
	return sfs.writeFile(relPath, data, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

func (sfs *SecureFS) writeFile(relPath string, data []byte, flag int, perm os.FileMode) error {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}

	file, err := sfs.root.OpenFile(validated, flag, perm)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Remove deletes the file at relPath.
func (sfs *SecureFS) Remove(relPath string) error {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}
	return sfs.root.Remove(validated)
}

// Rename moves oldRel to newRel, replacing newRel if it exists. Both paths
// must stay inside the root.
func (sfs *SecureFS) Rename(oldRel, newRel string) error {
	oldValidated, err := sfs.ValidateRelativePath(oldRel)
	if err != nil {
		return err
	}
	newValidated, err := sfs.ValidateRelativePath(newRel)
	if err != nil {
		return err
	}
	return sfs.root.Rename(oldValidated, newValidated)
}

// Open opens relPath for reading.
func (sfs *SecureFS) Open(relPath string) (*os.File, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return sfs.root.Open(validated)
}

// Stat returns file info for relPath.
func (sfs *SecureFS) Stat(relPath string) (fs.FileInfo, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return sfs.root.Stat(validated)
}

// Exists reports whether relPath exists. Validation and permission errors
// are returned as errors, not as false.
func (sfs *SecureFS) Exists(relPath string) (bool, error) {
	_, err := sfs.Stat(relPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// mapOpenErrorToHTTP converts file open errors to appropriate HTTP errors
func mapOpenErrorToHTTP(err error, effectivePath string) *echo.HTTPError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	case errors.Is(err, fs.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	case errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrInvalidPath):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file path").SetInternal(err)
	case errors.Is(err, ErrNotRegularFile):
		return echo.NewHTTPError(http.StatusForbidden, "Not a regular file")
	default:
		GetLogger().Error("unhandled error serving file",
			logger.String("path", effectivePath),
			logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error serving file").SetInternal(err)
	}
}

// getContentType determines the content type from the file extension.
func getContentType(path string) string {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// ServeRelativeFile writes the file at relPath to the response with
// http.ServeContent, which handles Range and conditional requests.
func (sfs *SecureFS) ServeRelativeFile(c echo.Context, relPath string) error {
	f, err := sfs.Open(relPath)
	if err != nil {
		return mapOpenErrorToHTTP(err, relPath)
	}
	defer func() {
		if err := f.Close(); err != nil {
			GetLogger().Warn("failed to close file", logger.Error(err))
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get file info").SetInternal(err)
	}
	if !stat.Mode().IsRegular() {
		return mapOpenErrorToHTTP(ErrNotRegularFile, relPath)
	}

	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, getContentType(relPath))
	}
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(c.Response(), c.Request(), filepath.Base(relPath), stat.ModTime(), f)
	return nil
}

// Close closes the underlying Root.
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
