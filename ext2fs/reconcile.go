package ext2fs

import "github.com/sirupsen/logrus"

// ReconcileStats summarizes how many bits changed during a run, for
// logging and for the informational exit path.
type ReconcileStats struct {
	InodeBitsSet     int
	InodeBitsCleared int
	BlockBitsSet     int
}

// Reconcile implements the Reconciler (C6): for each block group, read
// its on-disk bitmaps, diff against the authority, and patch
// corrections back. Inode bitmaps are brought to exact agreement
// (bits may be set or cleared); block bitmaps are only ever widened
// (spec §4.6's asymmetric policy). Groups are processed in ascending
// order, inode bitmap before block bitmap within a group (spec
// "Ordering" — there is no cross-group dependency at this stage).
func Reconcile(acc *Accessor, sb *superblock, gds []*groupDescriptor, auth *Authority) (*ReconcileStats, error) {
	stats := &ReconcileStats{}

	for g := int64(0); g < sb.groupCount; g++ {
		gd := gds[g]

		if err := reconcileInodeBitmap(acc, sb, gd, g, auth, stats); err != nil {
			return nil, err
		}
		if err := reconcileBlockBitmap(acc, sb, gd, g, auth, stats); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"inode_bits_set":     stats.InodeBitsSet,
		"inode_bits_cleared": stats.InodeBitsCleared,
		"block_bits_set":     stats.BlockBitsSet,
	}).Info("reconciliation complete")

	return stats, nil
}

// localInodeCount returns how many of this group's inode slots are
// backed by a real global inode number (the last group may be short).
func localInodeCount(sb *superblock, g int64) int64 {
	n := int64(sb.inodesPerGroup)
	if over := g*int64(sb.inodesPerGroup) + n - int64(sb.inodeCount); over > 0 {
		n -= over
	}
	return n
}

// localBlockCount returns how many of this group's block slots are
// backed by a real global block number.
func localBlockCount(sb *superblock, g int64) int64 {
	n := int64(sb.blocksPerGroup)
	if over := g*int64(sb.blocksPerGroup) + n - int64(sb.blockCount); over > 0 {
		n -= over
	}
	return n
}

func reconcileInodeBitmap(acc *Accessor, sb *superblock, gd *groupDescriptor, g int64, auth *Authority, stats *ReconcileStats) error {
	size := ceilDivBytes(int64(sb.inodesPerGroup))
	offset := int64(gd.inodeBitmap) * sb.blockSize

	buf := make([]byte, size)
	if err := acc.ReadAt(buf, offset); err != nil {
		return err
	}
	onDisk := bitmapFromBytes(buf, int64(sb.inodesPerGroup))

	n := localInodeCount(sb, g)
	changed := false
	for k := int64(0); k < n; k++ {
		globalInode := uint(g*int64(sb.inodesPerGroup)+k) // inode number minus 1
		want := auth.Inode.Test(globalInode)
		has := onDisk.Test(uint(k))
		if want == has {
			continue
		}
		changed = true
		if want {
			onDisk.Set(uint(k))
			stats.InodeBitsSet++
		} else {
			onDisk.Clear(uint(k))
			stats.InodeBitsCleared++
		}
	}

	if !changed {
		return nil
	}
	return acc.WriteAt(bitmapToBytes(onDisk, int64(sb.inodesPerGroup)), offset)
}

func reconcileBlockBitmap(acc *Accessor, sb *superblock, gd *groupDescriptor, g int64, auth *Authority, stats *ReconcileStats) error {
	size := ceilDivBytes(int64(sb.blocksPerGroup))
	offset := int64(gd.blockBitmap) * sb.blockSize

	buf := make([]byte, size)
	if err := acc.ReadAt(buf, offset); err != nil {
		return err
	}
	onDisk := bitmapFromBytes(buf, int64(sb.blocksPerGroup))

	n := localBlockCount(sb, g)
	changed := false
	for k := int64(0); k < n; k++ {
		globalBlock := uint(g*int64(sb.blocksPerGroup) + k)
		if !auth.Block.Test(globalBlock) {
			continue
		}
		if onDisk.Test(uint(k)) {
			continue
		}
		// never clear: the authority is a lower bound (spec §4.6).
		onDisk.Set(uint(k))
		stats.BlockBitsSet++
		changed = true
	}

	if !changed {
		return nil
	}
	return acc.WriteAt(bitmapToBytes(onDisk, int64(sb.blocksPerGroup)), offset)
}
