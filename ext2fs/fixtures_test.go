package ext2fs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// testLayout is a tiny, fully hand-built single-group ext2 revision-0
// image used across this package's tests. Its geometry is deliberately
// small enough to reason about by hand:
//
//	block 0: boot/padding (unused)
//	block 1: superblock
//	block 2: group descriptor table (one 32-byte record)
//	block 3: block bitmap
//	block 4: inode bitmap
//	block 5: inode table, inodes 1..8
//	block 6: inode table, inodes 9..16
//	block 7: root directory data ("." ".." "foo")
//	block 8: free, but spuriously marked used on disk
//	block 9: free, correctly unmarked
//
// inode 2 is the root directory; inode 12 is "foo", a regular file
// with no data blocks; inode 16 is spuriously marked live on the
// on-disk inode bitmap despite being free (mode 0, link count 0).
const (
	testBlockSize      = 1024
	testBlocksPerGroup = 32
	testInodesPerGroup = 16
	testBlockCount     = 10
	testInodeCount     = 16

	testBlockBitmapBlock  = 3
	testInodeBitmapBlock  = 4
	testInodeTableBlock0  = 5
	testRootDirBlock      = 7
	testSpuriousFreeBlock = 8
	testUnusedFreeBlock   = 9

	testRootInode = 2
	testFooInode  = 12
	testFreeInode = 16
)

func buildTestImage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, testBlockCount*testBlockSize)

	sb := buf[superblockOffset : superblockOffset+superblockSize]
	binary.LittleEndian.PutUint32(sb[0x0:0x4], testInodeCount)
	binary.LittleEndian.PutUint32(sb[0x4:0x8], testBlockCount)
	binary.LittleEndian.PutUint32(sb[0x8:0xc], 0)
	binary.LittleEndian.PutUint32(sb[0x14:0x18], 1)
	binary.LittleEndian.PutUint32(sb[0x18:0x1c], 0)
	binary.LittleEndian.PutUint32(sb[0x20:0x24], testBlocksPerGroup)
	binary.LittleEndian.PutUint32(sb[0x28:0x2c], testInodesPerGroup)
	binary.LittleEndian.PutUint16(sb[0x38:0x3a], superblockSignature)

	gdOff := groupDescriptorTableOffset()
	gd := buf[gdOff : gdOff+int64(groupDescriptorSize)]
	binary.LittleEndian.PutUint32(gd[0x0:0x4], testBlockBitmapBlock)
	binary.LittleEndian.PutUint32(gd[0x4:0x8], testInodeBitmapBlock)
	binary.LittleEndian.PutUint32(gd[0x8:0xc], testInodeTableBlock0)

	gds := []*groupDescriptor{{inodeTable: testInodeTableBlock0}}
	writeInode(buf, testSuperblock(), gds, testRootInode, inodeTypeDirectory|0o755, 2, [12]uint32{testRootDirBlock})
	writeInode(buf, testSuperblock(), gds, testFooInode, 0x8000|0o644, 1, [12]uint32{})

	dir := buf[testRootDirBlock*testBlockSize : (testRootDirBlock+1)*testBlockSize]
	o := writeDirEntry(dir, 0, testRootInode, 12, ".")
	o = writeDirEntry(dir, o, testRootInode, 12, "..")
	writeDirEntry(dir, o, testFooInode, testBlockSize-o, "foo")

	// spurious pre-existing state the Reconciler must correct.
	inodeBitmap := buf[testInodeBitmapBlock*testBlockSize:]
	inodeBitmap[1] = 0x80 // bit 15 -> inode 16, free on disk but marked used

	blockBitmap := buf[testBlockBitmapBlock*testBlockSize:]
	blockBitmap[1] = 0x01 // bit 8 -> block 8, unused but marked used

	return buf
}

func writeInode(buf []byte, sb *superblock, gds []*groupDescriptor, n uint32, mode uint16, linkCount uint16, directBlocks [12]uint32) {
	_, off := inodeLocation(sb, gds, n)
	rec := buf[off : off+int64(inodeSize)]
	binary.LittleEndian.PutUint16(rec[0x0:0x2], mode)
	binary.LittleEndian.PutUint16(rec[0x1a:0x1c], linkCount)
	for i, b := range directBlocks {
		start := 0x28 + i*4
		binary.LittleEndian.PutUint32(rec[start:start+4], b)
	}
}

func writeDirEntry(block []byte, offset int, inode uint32, recLen int, name string) int {
	binary.LittleEndian.PutUint32(block[offset:offset+4], inode)
	binary.LittleEndian.PutUint16(block[offset+4:offset+6], uint16(recLen))
	block[offset+6] = byte(len(name))
	block[offset+7] = 0
	copy(block[offset+8:offset+8+len(name)], name)
	return offset + recLen
}

// testSuperblock returns the decoded superblock matching buildTestImage,
// used by fixture helpers that need geometry before the real
// superblockFromBytes call in a test body.
func testSuperblock() *superblock {
	sb := &superblock{
		inodeCount:     testInodeCount,
		blockCount:     testBlockCount,
		blocksPerGroup: testBlocksPerGroup,
		inodesPerGroup: testInodesPerGroup,
	}
	sb.blockSize = testBlockSize
	sb.groupCount = ceilDiv64(testBlockCount, testBlocksPerGroup)
	sb.inodesPerBlock = sb.blockSize / int64(inodeSize)
	sb.inodeTableBlocksPerGroup = ceilDiv64(testInodesPerGroup, sb.inodesPerBlock)
	sb.pointersPerBlock = sb.blockSize / 4
	return sb
}

// Geometry for a two-group fixture, used to exercise the per-group
// loops in authority.go and reconcile.go and, specifically, Phase C's
// marking of the backup superblock/GDT replica at the start of a
// non-zero group.
//
//	group 0 (blocks 0..31):
//	  0: boot/padding
//	  1: primary superblock
//	  2: primary GDT (two 32-byte records)
//	  3: block bitmap
//	  4: inode bitmap
//	  5: inode table, inodes 1..8
//	  6: root directory data (".", "..", "foo")
//	  7..31: free
//	group 1 (blocks 32..39, a short last group):
//	  32: free (never referenced by any structure)
//	  33: backup superblock replica
//	  34: backup GDT replica
//	  35: block bitmap
//	  36: inode bitmap
//	  37: inode table, inodes 9..16
//	  38, 39: free
//
// inode 9 ("foo2") lives in group 1's inode table and is referenced
// from the root directory, so the inode sweep also crosses groups.
const (
	mgBlockSize      = 1024
	mgBlocksPerGroup = 32
	mgInodesPerGroup = 8
	mgBlockCount     = 40
	mgInodeCount     = 16

	mgG0BlockBitmap = 3
	mgG0InodeBitmap = 4
	mgG0InodeTable  = 5
	mgRootDirBlock  = 6

	mgBackupSuperblock = 33
	mgBackupGDT        = 34
	mgG1BlockBitmap    = 35
	mgG1InodeBitmap    = 36
	mgG1InodeTable     = 37
	mgG1FreeBlockA     = 32
	mgG1FreeBlockB     = 38

	mgRootInode = 2
	mgFoo2Inode = 9
)

func buildMultiGroupTestImage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, mgBlockCount*mgBlockSize)

	sbRegion := buf[superblockOffset : superblockOffset+superblockSize]
	binary.LittleEndian.PutUint32(sbRegion[0x0:0x4], mgInodeCount)
	binary.LittleEndian.PutUint32(sbRegion[0x4:0x8], mgBlockCount)
	binary.LittleEndian.PutUint32(sbRegion[0x8:0xc], 0)
	binary.LittleEndian.PutUint32(sbRegion[0x14:0x18], 1)
	binary.LittleEndian.PutUint32(sbRegion[0x18:0x1c], 0)
	binary.LittleEndian.PutUint32(sbRegion[0x20:0x24], mgBlocksPerGroup)
	binary.LittleEndian.PutUint32(sbRegion[0x28:0x2c], mgInodesPerGroup)
	binary.LittleEndian.PutUint16(sbRegion[0x38:0x3a], superblockSignature)

	gdtOff := groupDescriptorTableOffset()
	gdtBuf := buf[gdtOff : gdtOff+2*int64(groupDescriptorSize)]
	binary.LittleEndian.PutUint32(gdtBuf[0x0:0x4], mgG0BlockBitmap)
	binary.LittleEndian.PutUint32(gdtBuf[0x4:0x8], mgG0InodeBitmap)
	binary.LittleEndian.PutUint32(gdtBuf[0x8:0xc], mgG0InodeTable)
	binary.LittleEndian.PutUint32(gdtBuf[0x20:0x24], mgG1BlockBitmap)
	binary.LittleEndian.PutUint32(gdtBuf[0x24:0x28], mgG1InodeBitmap)
	binary.LittleEndian.PutUint32(gdtBuf[0x28:0x2c], mgG1InodeTable)
	// replicate the primary superblock and GDT into the backup region
	// at the start of group 1, as a real image would.
	copy(buf[mgBackupGDT*mgBlockSize:], gdtBuf)
	copy(buf[mgBackupSuperblock*mgBlockSize:], sbRegion)

	sb := mgSuperblock()
	gds := []*groupDescriptor{
		{blockBitmap: mgG0BlockBitmap, inodeBitmap: mgG0InodeBitmap, inodeTable: mgG0InodeTable},
		{blockBitmap: mgG1BlockBitmap, inodeBitmap: mgG1InodeBitmap, inodeTable: mgG1InodeTable},
	}

	writeInode(buf, sb, gds, mgRootInode, inodeTypeDirectory|0o755, 2, [12]uint32{mgRootDirBlock})
	writeInode(buf, sb, gds, mgFoo2Inode, 0x8000|0o644, 1, [12]uint32{})

	dir := buf[mgRootDirBlock*mgBlockSize : (mgRootDirBlock+1)*mgBlockSize]
	o := writeDirEntry(dir, 0, mgRootInode, 12, ".")
	o = writeDirEntry(dir, o, mgRootInode, 12, "..")
	writeDirEntry(dir, o, mgFoo2Inode, mgBlockSize-o, "foo2")

	// group 0's on-disk block bitmap correctly reflects blocks 0..6
	// (boot, superblock, gdt, the two bitmaps, the inode table, and
	// the root directory data block).
	buf[mgG0BlockBitmap*mgBlockSize] = 0x7f

	// group 1's on-disk block bitmap is missing bit 1 (block 33, the
	// backup superblock replica): bits 2 (gdt), 3 (block bitmap), 4
	// (inode bitmap) and 5 (inode table) are set, but the backup
	// superblock itself is spuriously clear. Block reconciliation is
	// monotone, so only an authority that correctly claims block 33 in
	// Phase C can ever get this bit set back.
	buf[mgG1BlockBitmap*mgBlockSize] = 0x3c

	return buf
}

// mgSuperblock returns the decoded superblock matching
// buildMultiGroupTestImage.
func mgSuperblock() *superblock {
	sb := &superblock{
		inodeCount:     mgInodeCount,
		blockCount:     mgBlockCount,
		firstDataBlock: 1,
		blocksPerGroup: mgBlocksPerGroup,
		inodesPerGroup: mgInodesPerGroup,
	}
	sb.blockSize = mgBlockSize
	sb.groupCount = ceilDiv64(mgBlockCount, mgBlocksPerGroup)
	sb.inodesPerBlock = sb.blockSize / int64(inodeSize)
	sb.inodeTableBlocksPerGroup = ceilDiv64(mgInodesPerGroup, sb.inodesPerBlock)
	sb.pointersPerBlock = sb.blockSize / 4
	return sb
}

// writeTestImage persists a built image to a temp file and returns its
// path, ready for image.Open.
func writeTestImage(t *testing.T, buf []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture image: %v", err)
	}
	return path
}
