package ext2fs

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/xattr"
	"github.com/sirupsen/logrus"
)

// State is one of the three terminal states of a run (spec §4.7).
type State int

const (
	// StateOk means reconciliation completed.
	StateOk State = iota
	// StateCorruptSuperblock means the Layout Decoder rejected the
	// image before any write was performed.
	StateCorruptSuperblock
	// StateIoError means a positioned read or write failed mid-run;
	// partial writes may already be on disk, and re-running is safe.
	StateIoError
)

// provenanceXattr is the name of the marker attribute stamped on the
// host file after a successful run (SPEC_FULL.md §5). It is advisory
// only: no component reads it back to decide whether to run.
const provenanceXattr = "user.ext2fsck.last_repair"

// Result is the outcome of one Run.
type Result struct {
	State   State
	Stats   *ReconcileStats
	Skipped []SkipEvent
	RunID   uuid.UUID
}

// Run drives the full pipeline: decode layout, build the authority,
// reconcile every group's bitmaps, and stamp a provenance marker. The
// returned Result.State distinguishes the three terminal states of
// spec §4.7; a non-Ok state means no further action was taken beyond
// what had already reached disk.
func Run(acc *Accessor, dataIdentifier string) (*Result, error) {
	runID := uuid.New()
	log := logrus.WithField("run_id", runID.String())

	sb, gds, state, err := loadLayout(acc)
	if err != nil {
		return &Result{State: state, RunID: runID}, err
	}

	log.WithFields(logrus.Fields{
		"data_identifier": dataIdentifier,
		"groups":          sb.groupCount,
		"inodes":          sb.inodeCount,
		"blocks":          sb.blockCount,
	}).Info("starting reconciliation")

	auth, err := BuildAuthority(acc, sb, gds)
	if err != nil {
		return &Result{State: StateIoError, RunID: runID, Skipped: auth.skippedOrNil()}, err
	}

	stats, err := Reconcile(acc, sb, gds, auth)
	if err != nil {
		return &Result{State: StateIoError, RunID: runID, Skipped: auth.Skipped}, err
	}

	stampProvenance(acc, runID, dataIdentifier, log)

	return &Result{State: StateOk, Stats: stats, Skipped: auth.Skipped, RunID: runID}, nil
}

// skippedOrNil tolerates a nil Authority from an early BuildAuthority
// failure while still giving callers a slice to range over.
func (a *Authority) skippedOrNil() []SkipEvent {
	if a == nil {
		return nil
	}
	return a.Skipped
}

// loadLayout performs the Layout Decoder's job (C2): read the
// superblock and the full group descriptor table, validating the
// superblock before trusting anything derived from it. The returned
// State is only meaningful when err != nil.
func loadLayout(acc *Accessor) (*superblock, []*groupDescriptor, State, error) {
	sbBytes := make([]byte, superblockSize)
	if err := acc.ReadAt(sbBytes, superblockOffset); err != nil {
		return nil, nil, StateIoError, err
	}
	sb, err := superblockFromBytes(sbBytes)
	if err != nil {
		logrus.WithError(err).Error("rejecting image: corrupt superblock")
		return nil, nil, StateCorruptSuperblock, err
	}

	gds, err := readGroupDescriptors(acc, sb)
	if err != nil {
		return nil, nil, StateIoError, err
	}
	return sb, gds, StateOk, nil
}

// DescribeImage decodes just enough of the image to print the
// informational superblock dump described in spec §6, without running
// any part of the reconciliation pipeline. Intended for the CLI's
// pre-mutation, non-batch output.
func DescribeImage(w io.Writer, acc *Accessor, imagePath string) error {
	sb, _, _, err := loadLayout(acc)
	if err != nil {
		return err
	}
	return PrintSuperblock(w, sb, imagePath)
}

// readGroupDescriptors reads and decodes the full group descriptor
// table, one record per positioned read.
func readGroupDescriptors(acc *Accessor, sb *superblock) ([]*groupDescriptor, error) {
	gds := make([]*groupDescriptor, sb.groupCount)
	buf := make([]byte, groupDescriptorSize)
	for g := int64(0); g < sb.groupCount; g++ {
		if err := acc.ReadAt(buf, groupDescriptorOffset(g)); err != nil {
			return nil, err
		}
		gds[g] = groupDescriptorFromBytes(buf)
	}
	return gds, nil
}

// stampProvenance records a small advisory xattr on the image file
// itself once repair succeeds (SPEC_FULL.md §5). Failure to set it
// (e.g. the host filesystem does not support xattrs) is logged but
// never fails the run: the Reconciler's idempotence property does not
// depend on this marker.
func stampProvenance(acc *Accessor, runID uuid.UUID, dataIdentifier string, log *logrus.Entry) {
	value := fmt.Sprintf("run=%s identifier=%s at=%s", runID, dataIdentifier, time.Now().UTC().Format(time.RFC3339))
	if err := xattr.FSet(acc.Fd(), provenanceXattr, []byte(value)); err != nil {
		log.WithError(err).Debug("could not stamp provenance xattr")
	}
}
