package ext2fs

import "encoding/binary"

// groupDescriptor locates the three pieces of per-group metadata the
// reconciliation engine cares about. The remaining fields of the
// on-disk 32-byte descriptor (free counts, used-directory count, ...)
// are not modeled: this engine never rewrites the group descriptor
// table (spec §6, "Persisted state").
type groupDescriptor struct {
	blockBitmap uint32
	inodeBitmap uint32
	inodeTable  uint32
}

// groupDescriptorFromBytes decodes one 32-byte group descriptor record.
func groupDescriptorFromBytes(b []byte) *groupDescriptor {
	return &groupDescriptor{
		blockBitmap: binary.LittleEndian.Uint32(b[0x0:0x4]),
		inodeBitmap: binary.LittleEndian.Uint32(b[0x4:0x8]),
		inodeTable:  binary.LittleEndian.Uint32(b[0x8:0xc]),
	}
}

// groupDescriptorTableOffset returns the byte offset of the group
// descriptor table, which starts in the block immediately following
// the superblock (spec §4.2).
func groupDescriptorTableOffset() int64 {
	return superblockOffset + superblockSize
}

// groupDescriptorOffset returns the byte offset of descriptor g.
func groupDescriptorOffset(g int64) int64 {
	return groupDescriptorTableOffset() + g*int64(groupDescriptorSize)
}
