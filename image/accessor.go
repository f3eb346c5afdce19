// Package image implements the Image Accessor: positioned, thread-unsafe
// reads and writes against a raw filesystem image file on disk.
package image

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Accessor is the single-threaded positioned I/O primitive every other
// component in ext2fs is built on. It is not safe for concurrent use;
// the core is single-threaded by design (spec §5).
type Accessor struct {
	f      *os.File
	locked bool
}

// Open opens path for read/write and takes an advisory exclusive flock
// on it, enforcing spec §5's "one instance at a time per image"
// invariant across separate processes. The lock is released on Close.
func Open(path string) (*Accessor, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("image %s is locked by another instance: %w", path, err)
	}
	return &Accessor{f: f, locked: true}, nil
}

// ReadAt reads exactly len(p) bytes at off. A short read is an IoError;
// the image is assumed partially corrupted, but truncation mid-read is
// never an acceptable outcome for a fixed-size structural region.
func (a *Accessor) ReadAt(p []byte, off int64) error {
	n, err := a.f.ReadAt(p, off)
	if err != nil || n != len(p) {
		return &IoError{Offset: off, Len: len(p), Cause: err}
	}
	return nil
}

// WriteAt writes exactly len(p) bytes at off.
func (a *Accessor) WriteAt(p []byte, off int64) error {
	n, err := a.f.WriteAt(p, off)
	if err != nil || n != len(p) {
		return &IoError{Offset: off, Len: len(p), Cause: err}
	}
	return nil
}

// Path returns the underlying file's name.
func (a *Accessor) Path() string {
	return a.f.Name()
}

// Fd exposes the raw file descriptor for callers that need host-level
// metadata (xattrs, times) about the image file itself.
func (a *Accessor) Fd() *os.File {
	return a.f
}

// Close releases the flock and closes the underlying file.
func (a *Accessor) Close() error {
	if a.locked {
		_ = unix.Flock(int(a.f.Fd()), unix.LOCK_UN)
		a.locked = false
	}
	return a.f.Close()
}

// IoError wraps a positioned read/write failure. It is defined here
// (rather than imported from ext2fs) so the image package has no
// dependency on the higher-level package that consumes it; ext2fs
// re-exports it as a type alias, so both packages share this one type.
type IoError struct {
	Offset int64
	Len    int
	Cause  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("i/o error at offset %d (len %d): %v", e.Offset, e.Len, e.Cause)
}

func (e *IoError) Unwrap() error {
	return e.Cause
}
