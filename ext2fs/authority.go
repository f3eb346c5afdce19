package ext2fs

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

// reservedInodeCount is the number of low inode numbers reserved by
// ext2 (bad-blocks, root, ACL, boot loader, undelete, ...). Spec
// invariant 1: inodes 1..11 are always marked used.
const reservedInodeCount = 11

// Authority holds the two in-memory authoritative bitmaps built by a
// full sweep of the image, owned exclusively by the builder for the
// duration of one run and consumed read-only by the Reconciler (spec
// §3, "Lifetime").
type Authority struct {
	Inode   *bitset.BitSet
	Block   *bitset.BitSet
	Skipped []SkipEvent
}

// BuildAuthority runs phases A, B, and C of the Authority Builder (C5)
// and returns the completed authoritative bitmaps.
func BuildAuthority(acc *Accessor, sb *superblock, gds []*groupDescriptor) (*Authority, error) {
	a := &Authority{
		Inode: bitset.New(uint(sb.inodeCount)),
		Block: bitset.New(uint(sb.blockCount)),
	}

	seedReservedInodes(a)

	if err := sweepInodes(acc, sb, gds, a); err != nil {
		return nil, err
	}

	markMetadataBlocks(sb, gds, a)

	logrus.WithFields(logrus.Fields{
		"inodes_live": a.Inode.Count(),
		"blocks_used": a.Block.Count(),
		"skipped":     len(a.Skipped),
	}).Info("authority built")

	return a, nil
}

// seedReservedInodes is Phase A (spec §4.5).
func seedReservedInodes(a *Authority) {
	for i := uint(0); i < reservedInodeCount && i < a.Inode.Len(); i++ {
		a.Inode.Set(i)
	}
}

// sweepInodes is Phase B: walk every inode, recording link-count
// liveness, every block it reaches, and every directory entry it
// contains (spec invariants 2, 3, 5).
func sweepInodes(acc *Accessor, sb *superblock, gds []*groupDescriptor, a *Authority) error {
	w := &walker{acc: acc, sb: sb}

	for n := uint32(1); n <= sb.inodeCount; n++ {
		in, err := readInode(acc, sb, gds, n)
		if err != nil {
			return err
		}

		if in.linkCount > 0 {
			a.Inode.Set(uint(n - 1))
		}
		if in.mode == 0 || in.linkCount == 0 {
			continue
		}

		isDir := in.isDirectory()
		emit := func(b uint32) { a.Block.Set(uint(b)) }
		emitDir := func(b uint32) error {
			buf := make([]byte, sb.blockSize)
			if err := acc.ReadAt(buf, int64ToOffset(sb, b)); err != nil {
				return err
			}
			skipped := decodeDirectoryBlock(buf, sb.blockSize, sb.inodeCount, func(inodeRef uint32, _ string) {
				a.Inode.Set(uint(inodeRef - 1))
			})
			a.Skipped = append(a.Skipped, skipped...)
			return nil
		}

		if err := w.walk(in, isDir, emit, emitDir); err != nil {
			return err
		}
		a.Skipped = append(a.Skipped, w.skipped...)
		w.skipped = nil
	}
	return nil
}

// markMetadataBlocks is Phase C: structural metadata that no inode
// directly references (spec invariant 4). Invariant 4 names the
// superblock and group-descriptor table *replicas*, not just the
// primary copy, so this conservatively marks the superblock+GDT region
// at the start of every group rather than limiting itself to
// sparse-super backup groups — spec §4.5 notes the conservative choice
// is still correct.
func markMetadataBlocks(sb *superblock, gds []*groupDescriptor, a *Authority) {
	sbBlocks := ceilDiv64(superblockSize, sb.blockSize)
	gdtBlocks := ceilDiv64(int64(len(gds))*int64(groupDescriptorSize), sb.blockSize)

	for g := int64(0); g < sb.groupCount; g++ {
		start := int64(sb.firstDataBlock) + g*int64(sb.blocksPerGroup)
		count := sbBlocks + gdtBlocks
		if g == 0 {
			// group 0 additionally carries the boot/padding block
			// preceding the primary superblock.
			start = 0
			count++
		}
		for b := start; b < start+count; b++ {
			markIfInRange(a, sb, uint32(b))
		}
	}

	for _, gd := range gds {
		markIfInRange(a, sb, gd.blockBitmap)
		markIfInRange(a, sb, gd.inodeBitmap)
		for i := int64(0); i < sb.inodeTableBlocksPerGroup; i++ {
			markIfInRange(a, sb, gd.inodeTable+uint32(i))
		}
	}
}

func markIfInRange(a *Authority, sb *superblock, block uint32) {
	if uint64(block) < uint64(sb.blockCount) {
		a.Block.Set(uint(block))
	}
}
