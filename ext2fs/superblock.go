package ext2fs

import (
	"encoding/binary"

	uuid "github.com/satori/go.uuid"
)

const (
	// superblockSignature is the magic value at offset 0x38 of every
	// ext2/3/4 superblock.
	superblockSignature uint16 = 0xef53
	// superblockOffset is the fixed byte offset of the superblock.
	superblockOffset int64 = 1024
	// superblockSize is the canonical on-disk size reserved for the
	// superblock, regardless of how many of its bytes are meaningful
	// for a given revision.
	superblockSize int64 = 1024
	// groupDescriptorSize is the fixed size of an ext2 revision-0
	// group descriptor.
	groupDescriptorSize int = 32
	// inodeSize is fixed for the ext2 revision targeted; see spec §9
	// open question 5.
	inodeSize int = 128
	// maxLogBlockSize bounds log_block_size to keep BS sane (64 KiB).
	maxLogBlockSize uint32 = 6
)

// superblock holds the decoded fields of an ext2 revision-0 superblock
// that the reconciliation engine needs. Fields irrelevant to bitmap
// reconciliation (mount counts, timestamps, reserved-block policy, ...)
// are intentionally not modeled; this is a read path only, and the
// superblock itself is never rewritten (spec §6, "Persisted state").
type superblock struct {
	inodeCount     uint32
	blockCount     uint32
	reservedBlocks uint32
	firstDataBlock uint32
	logBlockSize   uint32
	blocksPerGroup uint32
	inodesPerGroup uint32
	volumeUUID     uuid.UUID

	// derived geometry, computed once in superblockFromBytes.
	blockSize                int64
	groupCount               int64
	inodesPerBlock           int64
	inodeTableBlocksPerGroup int64
	pointersPerBlock         int64
}

// superblockFromBytes decodes the fixed 1024-byte superblock region.
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) != int(superblockSize) {
		return nil, &CorruptSuperblock{Field: "length", Value: uint32(len(b))}
	}

	signature := binary.LittleEndian.Uint16(b[0x38:0x3a])
	if signature != superblockSignature {
		return nil, &CorruptSuperblock{Field: "magic", Value: uint32(signature)}
	}

	sb := &superblock{
		inodeCount:     binary.LittleEndian.Uint32(b[0x0:0x4]),
		blockCount:     binary.LittleEndian.Uint32(b[0x4:0x8]),
		reservedBlocks: binary.LittleEndian.Uint32(b[0x8:0xc]),
		firstDataBlock: binary.LittleEndian.Uint32(b[0x14:0x18]),
		logBlockSize:   binary.LittleEndian.Uint32(b[0x18:0x1c]),
		blocksPerGroup: binary.LittleEndian.Uint32(b[0x20:0x24]),
		inodesPerGroup: binary.LittleEndian.Uint32(b[0x28:0x2c]),
	}

	if sb.logBlockSize > maxLogBlockSize {
		return nil, &CorruptSuperblock{Field: "log_block_size", Value: sb.logBlockSize}
	}
	if sb.inodesPerGroup == 0 {
		return nil, &CorruptSuperblock{Field: "inodes_per_group", Value: sb.inodesPerGroup}
	}
	if sb.blocksPerGroup == 0 {
		return nil, &CorruptSuperblock{Field: "blocks_per_group", Value: sb.blocksPerGroup}
	}

	// volume UUID lives at the same 0x68 offset as ext3/4; reading it
	// is purely informational (pretty-printer), never gating repair.
	if vol, err := uuid.FromBytes(b[0x68:0x78]); err == nil {
		sb.volumeUUID = vol
	}

	sb.blockSize = 1024 << sb.logBlockSize
	sb.groupCount = ceilDiv64(int64(sb.blockCount), int64(sb.blocksPerGroup))
	sb.inodesPerBlock = sb.blockSize / int64(inodeSize)
	sb.inodeTableBlocksPerGroup = ceilDiv64(int64(sb.inodesPerGroup), sb.inodesPerBlock)
	sb.pointersPerBlock = sb.blockSize / 4

	return sb, nil
}

// ceilDiv64 computes ceil(a/b) for positive a, b.
func ceilDiv64(a, b int64) int64 {
	return (a + b - 1) / b
}

// ceilDivBytes computes ceil(bits/8), the byte length of a bitmap
// covering the given number of bits.
func ceilDivBytes(bits int64) int64 {
	return (bits + 7) / 8
}
