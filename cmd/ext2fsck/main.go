// Command ext2fsck repairs the on-disk inode and block bitmaps of an
// ext2 revision-0 image so they match what the inode table and
// directory tree actually reference.
package main

import (
	"fmt"
	"os"

	"github.com/ext2fsck/ext2fsck/ext2fs"
	"github.com/ext2fsck/ext2fsck/identifier"
	"github.com/ext2fsck/ext2fsck/image"
	"github.com/sirupsen/logrus"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ext2fsck <image_path> <data_identifier>")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is split out from main so tests can exercise the exit-code
// contract of spec §6 without actually calling os.Exit.
func run(args []string) int {
	if len(args) < 2 {
		usage()
		return 1
	}

	imagePath := args[0]
	dataID, err := identifier.Parse(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		return 1
	}

	preparedPath, err := image.Prepare(imagePath)
	if err != nil {
		logrus.WithError(err).Error("failed to prepare image")
		return 1
	}

	acc, err := image.Open(preparedPath)
	if err != nil {
		logrus.WithError(err).Error("failed to open image")
		return 1
	}
	defer acc.Close()

	if err := ext2fs.DescribeImage(os.Stdout, acc, imagePath); err != nil {
		logrus.WithError(err).Debug("skipping informational superblock dump")
	}

	result, err := ext2fs.Run(acc, dataID.String())
	if err != nil {
		logrus.WithError(err).WithField("state", result.State).Error("reconciliation failed")
		return 2
	}

	logrus.WithFields(logrus.Fields{
		"inode_bits_set":     result.Stats.InodeBitsSet,
		"inode_bits_cleared": result.Stats.InodeBitsCleared,
		"block_bits_set":     result.Stats.BlockBitsSet,
		"skipped":            len(result.Skipped),
		"run_id":             result.RunID.String(),
	}).Info("reconciliation complete")

	return 0
}
