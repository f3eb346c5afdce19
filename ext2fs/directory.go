package ext2fs

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// directoryEntryHeaderLength is the fixed portion of a directory record
// before the variable-length name: inode(4) + rec_len(2) + name_len(1)
// + file_type(1).
const directoryEntryHeaderLength = 8

// decodeDirectoryBlock scans one directory data block for entries and
// invokes onInode for every non-tombstone inode reference found, per
// spec §4.4's "emit_dir_block". Truncated records stop the scan for
// this block only; they are recorded as Skipped, never fatal.
func decodeDirectoryBlock(b []byte, blockSize int64, inodeCount uint32, onInode func(inode uint32, name string)) []SkipEvent {
	var skipped []SkipEvent
	var o int64
	for o < blockSize {
		if o+directoryEntryHeaderLength > blockSize {
			break
		}
		recLen := binary.LittleEndian.Uint16(b[o+4 : o+6])
		if recLen == 0 || o+int64(recLen) > blockSize {
			skipped = append(skipped, SkipEvent{Block: uint32(o), Reason: SkipTruncatedDirectory})
			logrus.WithField("offset", o).Debug("truncated directory record, stopping block scan")
			break
		}
		inodeRef := binary.LittleEndian.Uint32(b[o : o+4])
		if inodeRef >= 1 && inodeRef <= inodeCount {
			nameLen := int64(b[o+6])
			nameStart := o + directoryEntryHeaderLength
			nameEnd := nameStart + nameLen
			var name string
			if nameEnd <= o+int64(recLen) && nameEnd <= blockSize {
				name = string(b[nameStart:nameEnd])
			}
			onInode(inodeRef, name)
		}
		o += int64(recLen)
	}
	return skipped
}
