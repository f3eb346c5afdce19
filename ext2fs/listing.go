package ext2fs

import (
	"fmt"
	"io"
)

// rootInode is the fixed inode number of the filesystem root (spec
// glossary: reserved inodes 1..11, root is conventionally 2).
const rootInode uint32 = 2

// ListTree renders an indented directory tree starting at the root
// inode, reusing the same inode reader and block walker the Authority
// Builder uses. This is the "optional post-repair directory-tree
// listing" external collaborator anticipated by spec §1: it is
// read-only and never influences the authoritative bitmaps or the
// bytes written during reconciliation.
func ListTree(w io.Writer, acc *Accessor, sb *superblock, gds []*groupDescriptor) error {
	return listInode(w, acc, sb, gds, rootInode, "/", 0, map[uint32]bool{})
}

func listInode(w io.Writer, acc *Accessor, sb *superblock, gds []*groupDescriptor, n uint32, name string, depth int, visited map[uint32]bool) error {
	if visited[n] {
		// a corrupted image may link a directory to itself; the depth
		// bound on the block walker protects block trees, but nothing
		// stops a directory entry cycle, so guard explicitly here.
		return nil
	}
	visited[n] = true

	in, err := readInode(acc, sb, gds, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s%s (inode %d)\n", indent(depth), name, n)
	if !in.isDirectory() {
		return nil
	}

	wlk := &walker{acc: acc, sb: sb}
	type child struct {
		inode uint32
		name  string
	}
	var children []child
	emit := func(uint32) {}
	emitDir := func(b uint32) error {
		buf := make([]byte, sb.blockSize)
		if err := acc.ReadAt(buf, int64ToOffset(sb, b)); err != nil {
			return err
		}
		decodeDirectoryBlock(buf, sb.blockSize, sb.inodeCount, func(inodeRef uint32, name string) {
			if inodeRef != n && name != "." && name != ".." {
				children = append(children, child{inode: inodeRef, name: name})
			}
		})
		return nil
	}
	if err := wlk.walk(in, true, emit, emitDir); err != nil {
		return err
	}

	for _, c := range children {
		name := c.name
		if name == "" {
			name = fmt.Sprintf("<inode %d>", c.inode)
		}
		if err := listInode(w, acc, sb, gds, c.inode, name, depth+1, visited); err != nil {
			return err
		}
	}
	return nil
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
