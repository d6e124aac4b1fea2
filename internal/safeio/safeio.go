// Package safeio reads user files without following symlinks and without
// loading anything larger than a configured ceiling.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// DefaultMaxFileSize is the byte ceiling applied when none is configured.
const DefaultMaxFileSize int64 = 1 << 20

var (
	ErrSymlink          = errors.New("refusing to read symlink")
	ErrNotRegular       = errors.New("not a regular file")
	ErrTooLarge         = errors.New("file too large")
	ErrNotFound         = errors.New("file not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// TooLargeError carries the observed size. It matches ErrTooLarge with errors.Is.
type TooLargeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: file too large (%d bytes, limit %d)", e.Path, e.Size, e.Limit)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// Read returns the content of path. The entry is inspected with Lstat first so a
// symlink is rejected rather than dereferenced, and the size check happens
// before any content is read. A limit <= 0 selects DefaultMaxFileSize.
func Read(path string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, mapError(path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrSymlink)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if info.Size() > limit {
		return nil, &TooLargeError{Path: path, Size: info.Size(), Limit: limit}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, mapError(path, err)
	}
	defer f.Close()

	// The file may have grown since Lstat; never buffer more than limit+1 bytes.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read failed: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, &TooLargeError{Path: path, Size: int64(len(data)), Limit: limit}
	}
	return data, nil
}

// ReadString is Read for callers that work on text.
func ReadString(path string, limit int64) (string, error) {
	data, err := Read(path, limit)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func mapError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", path, ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}

// Rule IDs reported for read failures.
const (
	RuleSymlink    = "io::symlink"
	RuleTooLarge   = "io::too-large"
	RuleNotFound   = "io::not-found"
	RulePermission = "io::permission"
	RuleNotRegular = "io::not-regular"
	RuleRead       = "io::read"
)

// Classify maps a Read error to the rule ID it is reported under.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrSymlink):
		return RuleSymlink
	case errors.Is(err, ErrTooLarge):
		return RuleTooLarge
	case errors.Is(err, ErrNotFound):
		return RuleNotFound
	case errors.Is(err, ErrPermissionDenied):
		return RulePermission
	case errors.Is(err, ErrNotRegular):
		return RuleNotRegular
	default:
		return RuleRead
	}
}
