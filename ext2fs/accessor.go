package ext2fs

import "github.com/ext2fsck/ext2fsck/image"

// Accessor is the Image Accessor (C1) this package is built on. It is
// re-exported rather than redefined so ext2fs has exactly one
// positioned-I/O seam, opened once by the caller and threaded through
// every component.
type Accessor = image.Accessor
