// Package securefs provides a sandboxed file system rooted at one directory.
package securefs

import (
	"github.com/lesionscan/lesionscan/internal/errors"
)

// Sentinel errors for the securefs package.
var (
	// ErrPathTraversal indicates an attempt to leave the base directory with "..".
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates an absolute or empty path where a relative one is required.
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")

	// ErrNotRegularFile indicates an attempt to serve something that is not a regular file.
	ErrNotRegularFile = errors.NewStd("security error: not a regular file")
)
