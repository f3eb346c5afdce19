package image

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lz4 "github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

var (
	xzMagic  = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Prepare inspects path for a recognized compression container and, if
// found, transparently decompresses it into a sibling "<path>.img"
// scratch file, returning that file's path. The original compressed
// input is left untouched: spec §1's "no backup is written" rule binds
// the decoded image, which is the one actually reconciled in place.
//
// If path does not look compressed, it is returned unchanged.
func Prepare(path string) (string, error) {
	header := make([]byte, 6)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s to detect compression: %w", path, err)
	}
	n, _ := io.ReadFull(f, header)
	f.Close()
	header = header[:n]

	var reader func(io.Reader) (io.Reader, error)
	switch {
	case bytes.HasPrefix(header, xzMagic):
		reader = func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }
	case bytes.HasPrefix(header, lz4Magic):
		reader = func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil }
	default:
		return path, nil
	}

	scratch := path + ".img"
	logrus.WithFields(logrus.Fields{"source": path, "scratch": scratch}).
		Info("decompressing image before repair; original left untouched")

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening compressed image %s: %w", path, err)
	}
	defer src.Close()

	decoded, err := reader(src)
	if err != nil {
		return "", fmt.Errorf("initializing decompressor for %s: %w", path, err)
	}

	dst, err := os.Create(scratch)
	if err != nil {
		return "", fmt.Errorf("creating scratch image %s: %w", scratch, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, decoded); err != nil {
		return "", fmt.Errorf("decompressing %s into %s: %w", path, scratch, err)
	}

	return filepath.Clean(scratch), nil
}
