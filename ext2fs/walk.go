package ext2fs

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// maxIndirectDepth bounds indirect-tree recursion. Well-formed ext2
// trees are acyclic and never deeper than triple-indirect, so no
// separate cycle check is required (spec §9).
const maxIndirectDepth = 3

// walker implements the Block-Tree Walker (C4): a callback-style
// traversal of every data and indirect block referenced by an inode.
type walker struct {
	acc     *Accessor
	sb      *superblock
	skipped []SkipEvent
}

// emitBlock is called for every block number the walk considers used,
// including indirect blocks themselves (Invariant 3).
type emitBlock func(b uint32)

// emitDirBlock is called for every data block of a directory inode, so
// the caller can additionally decode its directory-entry records.
type emitDirBlock func(b uint32) error

// walk traverses inode in's direct and indirect block trees. isDir
// gates whether emitDir is also invoked for data blocks (spec §4.4).
func (w *walker) walk(in *inodeRecord, isDir bool, emit emitBlock, emitDir emitDirBlock) error {
	for _, b := range in.directBlocks {
		if b == 0 {
			continue
		}
		if !w.inRange(b) {
			w.skip(b, SkipOutOfRange)
			continue
		}
		emit(b)
		if isDir {
			if err := emitDir(b); err != nil {
				return err
			}
		}
	}

	for level, ptr := range []uint32{in.singleIndirect, in.doubleIndirect, in.tripleIndirect} {
		if err := w.walkIndirect(ptr, level+1, isDir, emit, emitDir); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) inRange(b uint32) bool {
	return uint64(b) < uint64(w.sb.blockCount)
}

func (w *walker) skip(b uint32, reason SkipReason) {
	w.skipped = append(w.skipped, SkipEvent{Block: b, Reason: reason})
	logrus.WithFields(logrus.Fields{"block": b, "reason": reason.String()}).Debug("skipped block reference")
}

// walkIndirect recurses through an indirect block tree. level is the
// remaining depth (1 = the pointers in this block are data/dir blocks,
// >1 = the pointers are further indirect blocks).
func (w *walker) walkIndirect(ptr uint32, level int, isDir bool, emit emitBlock, emitDir emitDirBlock) error {
	if ptr == 0 {
		return nil
	}
	if level > maxIndirectDepth {
		// defensive: spec bounds recursion at 3 by construction, this
		// should be unreachable given the three call sites above.
		return nil
	}
	if !w.inRange(ptr) {
		w.skip(ptr, SkipOutOfRange)
		return nil
	}
	emit(ptr)

	buf := make([]byte, w.sb.blockSize)
	if err := w.acc.ReadAt(buf, int64ToOffset(w.sb, ptr)); err != nil {
		return err
	}

	n := w.sb.pointersPerBlock
	for i := int64(0); i < n; i++ {
		q := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		if q == 0 {
			continue
		}
		if level == 1 {
			if !w.inRange(q) {
				w.skip(q, SkipOutOfRange)
				continue
			}
			emit(q)
			if isDir {
				if err := emitDir(q); err != nil {
					return err
				}
			}
			continue
		}
		if err := w.walkIndirect(q, level-1, isDir, emit, emitDir); err != nil {
			return err
		}
	}
	return nil
}

// int64ToOffset converts a block number into a byte offset, isolated so
// the arithmetic reads the same way everywhere in this package.
func int64ToOffset(sb *superblock, block uint32) int64 {
	return int64(block) * sb.blockSize
}
