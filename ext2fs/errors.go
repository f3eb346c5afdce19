package ext2fs

import (
	"fmt"

	"github.com/ext2fsck/ext2fsck/image"
)

// IoError is re-exported from the image package: any positioned read or
// write failure against the image surfaces here as this type. It is
// always fatal: the run aborts, but any writes already flushed remain on
// disk, so a subsequent run is expected to converge.
type IoError = image.IoError

// CorruptSuperblock indicates that a geometry-critical superblock field
// is implausible. No writes are performed before this is returned.
type CorruptSuperblock struct {
	Field string
	Value uint32
}

func (e *CorruptSuperblock) Error() string {
	return fmt.Sprintf("corrupt superblock: field %s has implausible value %d", e.Field, e.Value)
}

// InodeOutOfRange reports a request for an inode number outside
// [1, inodeCount]. The caller constructing such a request is a bug in
// this package, not a property of the image, so it is reported as a
// fatal assertion rather than recovered from.
type InodeOutOfRange struct {
	Number uint32
	Count  uint32
}

func (e *InodeOutOfRange) Error() string {
	return fmt.Sprintf("inode %d out of range [1, %d]", e.Number, e.Count)
}

// SkipReason classifies why a block reference was dropped instead of
// followed during a tree walk.
type SkipReason int

const (
	// SkipOutOfRange means a block pointer referenced a block number
	// at or beyond the image's block count.
	SkipOutOfRange SkipReason = iota
	// SkipTruncatedDirectory means a directory block's record chain
	// ran off the end of the block (rec_len == 0 or overran BS).
	SkipTruncatedDirectory
)

func (r SkipReason) String() string {
	switch r {
	case SkipOutOfRange:
		return "block number out of range"
	case SkipTruncatedDirectory:
		return "truncated directory record"
	default:
		return "unknown"
	}
}

// SkipEvent records one instance of the walker dropping a bad reference
// instead of faulting. These are never fatal; they are logged at debug
// level and accumulated for the caller's information.
type SkipEvent struct {
	Block  uint32
	Reason SkipReason
}
