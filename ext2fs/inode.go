package ext2fs

import "encoding/binary"

// inodeTypeMask isolates the file-type nibble (top 4 bits of mode) from
// the permission bits.
const (
	inodeTypeMask      uint16 = 0xf000
	inodeTypeDirectory uint16 = 0x4000
)

// inodeRecord holds the fields of a 128-byte ext2 inode that the
// reconciliation engine consumes. Timestamps, ownership, and ACL fields
// are not modeled: this is a read path feeding only the authority
// builder and walker.
type inodeRecord struct {
	mode           uint16
	linkCount      uint16
	size           uint32
	directBlocks   [12]uint32
	singleIndirect uint32
	doubleIndirect uint32
	tripleIndirect uint32
}

func (in *inodeRecord) isDirectory() bool {
	return in.mode&inodeTypeMask == inodeTypeDirectory
}

// inodeFromBytes decodes a 128-byte inode record. Byte offsets follow
// the canonical ext2 inode layout: i_mode@0x0, i_links_count@0x1a,
// i_size@0x4, i_block[15]@0x28 (12 direct + single + double + triple).
func inodeFromBytes(b []byte) *inodeRecord {
	in := &inodeRecord{
		mode:      binary.LittleEndian.Uint16(b[0x0:0x2]),
		size:      binary.LittleEndian.Uint32(b[0x4:0x8]),
		linkCount: binary.LittleEndian.Uint16(b[0x1a:0x1c]),
	}
	for i := 0; i < 12; i++ {
		start := 0x28 + i*4
		in.directBlocks[i] = binary.LittleEndian.Uint32(b[start : start+4])
	}
	in.singleIndirect = binary.LittleEndian.Uint32(b[0x28+12*4 : 0x28+13*4])
	in.doubleIndirect = binary.LittleEndian.Uint32(b[0x28+13*4 : 0x28+14*4])
	in.tripleIndirect = binary.LittleEndian.Uint32(b[0x28+14*4 : 0x28+15*4])
	return in
}

// inodeLocation computes the block group and byte offset of inode
// number n, per spec §4.3.
func inodeLocation(sb *superblock, gds []*groupDescriptor, n uint32) (group int64, byteOffset int64) {
	group = int64(n-1) / int64(sb.inodesPerGroup)
	index := int64(n-1) % int64(sb.inodesPerGroup)
	gd := gds[group]
	byteOffset = int64(gd.inodeTable)*sb.blockSize + index*int64(inodeSize)
	return group, byteOffset
}

// readInode implements the Inode Reader (C3): given inode number n,
// returns the decoded record. n must be in [1, inodeCount] or
// InodeOutOfRange is returned.
func readInode(acc *Accessor, sb *superblock, gds []*groupDescriptor, n uint32) (*inodeRecord, error) {
	if n < 1 || n > sb.inodeCount {
		return nil, &InodeOutOfRange{Number: n, Count: sb.inodeCount}
	}
	_, offset := inodeLocation(sb, gds, n)
	b := make([]byte, inodeSize)
	if err := acc.ReadAt(b, offset); err != nil {
		return nil, err
	}
	return inodeFromBytes(b), nil
}
