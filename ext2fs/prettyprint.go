package ext2fs

import (
	"fmt"
	"io"

	times "gopkg.in/djherbis/times.v1"
)

// PrintSuperblock writes a human-readable dump of the decoded
// superblock to w, emitted before any mutation per spec §6's
// informational-output contract. It is non-contractual: nothing reads
// this output back, and batch-mode callers may skip it entirely.
func PrintSuperblock(w io.Writer, sb *superblock, imagePath string) error {
	fmt.Fprintf(w, "ext2 superblock\n")
	fmt.Fprintf(w, "  inode count:        %d\n", sb.inodeCount)
	fmt.Fprintf(w, "  block count:        %d\n", sb.blockCount)
	fmt.Fprintf(w, "  reserved blocks:    %d\n", sb.reservedBlocks)
	fmt.Fprintf(w, "  first data block:   %d\n", sb.firstDataBlock)
	fmt.Fprintf(w, "  block size:         %d\n", sb.blockSize)
	fmt.Fprintf(w, "  blocks per group:   %d\n", sb.blocksPerGroup)
	fmt.Fprintf(w, "  inodes per group:   %d\n", sb.inodesPerGroup)
	fmt.Fprintf(w, "  block group count:  %d\n", sb.groupCount)
	fmt.Fprintf(w, "  volume uuid:        %s\n", sb.volumeUUID.String())

	if imagePath == "" {
		return nil
	}
	t, err := times.Stat(imagePath)
	if err != nil {
		// host timestamp metadata is informational only; a failure to
		// read it must never block the dump or the repair that follows.
		return nil
	}
	fmt.Fprintf(w, "  image mtime:        %s\n", t.ModTime())
	fmt.Fprintf(w, "  image atime:        %s\n", t.AccessTime())
	if t.HasChangeTime() {
		fmt.Fprintf(w, "  image ctime:        %s\n", t.ChangeTime())
	}
	if t.HasBirthTime() {
		fmt.Fprintf(w, "  image btime:        %s\n", t.BirthTime())
	}
	return nil
}

// PrintInode writes a human-readable dump of a single decoded inode.
func PrintInode(w io.Writer, n uint32, in *inodeRecord) {
	fmt.Fprintf(w, "inode %d\n", n)
	fmt.Fprintf(w, "  mode:            0x%04x\n", in.mode)
	fmt.Fprintf(w, "  directory:       %v\n", in.isDirectory())
	fmt.Fprintf(w, "  link count:      %d\n", in.linkCount)
	fmt.Fprintf(w, "  size:            %d\n", in.size)
	fmt.Fprintf(w, "  direct blocks:   %v\n", in.directBlocks)
	fmt.Fprintf(w, "  single indirect: %d\n", in.singleIndirect)
	fmt.Fprintf(w, "  double indirect: %d\n", in.doubleIndirect)
	fmt.Fprintf(w, "  triple indirect: %d\n", in.tripleIndirect)
}
